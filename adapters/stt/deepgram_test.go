package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestDeepgramTranscribe(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"results": {
				"channels": [{
					"alternatives": [{
						"transcript": "turn on the lights",
						"confidence": 0.98
					}]
				}]
			}
		}`)
	}))
	defer server.Close()

	transcriber, err := NewDeepgramTranscriber(DeepgramConfig{
		APIKey:  "secret-key",
		BaseURL: server.URL,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDeepgramTranscriber: %v", err)
	}

	audio := []byte{0xFF, 0xFB, 0x90, 0x00}
	transcript, err := transcriber.Transcribe(context.Background(), audio, "audio/mpeg")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if transcript != "turn on the lights" {
		t.Errorf("transcript = %q", transcript)
	}
	if gotAuth != "Token secret-key" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
	if gotContentType != "audio/mpeg" {
		t.Errorf("Content-Type header = %q", gotContentType)
	}
	if string(gotBody) != string(audio) {
		t.Error("request body did not carry the recording verbatim")
	}
}

func TestDeepgramTranscribeNoSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"","confidence":0}]}]}}`)
	}))
	defer server.Close()

	transcriber, err := NewDeepgramTranscriber(DeepgramConfig{APIKey: "k", BaseURL: server.URL}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	transcript, err := transcriber.Transcribe(context.Background(), []byte("RIFFdata"), "audio/wav")
	if err != nil {
		t.Fatalf("silence must not be an error: %v", err)
	}
	if transcript != "" {
		t.Errorf("transcript = %q, want empty", transcript)
	}
}

func TestDeepgramTranscribeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"err_msg":"unsupported encoding"}`)
	}))
	defer server.Close()

	transcriber, err := NewDeepgramTranscriber(DeepgramConfig{APIKey: "k", BaseURL: server.URL}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	_, err = transcriber.Transcribe(context.Background(), []byte("RIFFdata"), "audio/wav")
	if err == nil {
		t.Fatal("expected an error for a 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func TestDeepgramRequiresAPIKey(t *testing.T) {
	if _, err := NewDeepgramTranscriber(DeepgramConfig{}, zap.NewNop()); err == nil {
		t.Fatal("expected an error without an API key")
	}
}

func TestDeepgramRejectsEmptyAudio(t *testing.T) {
	transcriber, err := NewDeepgramTranscriber(DeepgramConfig{APIKey: "k"}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := transcriber.Transcribe(context.Background(), nil, "audio/wav"); err == nil {
		t.Fatal("expected an error for empty audio")
	}
}
