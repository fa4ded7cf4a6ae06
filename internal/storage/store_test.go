package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/internal/audio"
)

func newTestStore(t *testing.T) (*ResponseStore, string) {
	t.Helper()
	baseDir := t.TempDir()
	store, err := NewResponseStore(baseDir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewResponseStore: %v", err)
	}
	return store, baseDir
}

func TestStoreCreatesSessionTree(t *testing.T) {
	store, baseDir := newTestStore(t)

	for _, sub := range []string{"audio", "text"} {
		dir := filepath.Join(baseDir, store.SessionID(), sub)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("session subdirectory %s missing: %v", sub, err)
		}
	}
	if !strings.Contains(store.SessionID(), "_") {
		t.Errorf("session ID %q should carry a date prefix", store.SessionID())
	}
}

func TestSaveExchangeWritesAllThreeFiles(t *testing.T) {
	store, baseDir := newTestStore(t)

	meta, err := store.SaveExchange("what time is it", "It is noon.", []byte("mp3-bytes"), audio.FormatMP3)
	if err != nil {
		t.Fatalf("SaveExchange: %v", err)
	}

	text, err := os.ReadFile(meta.TextPath)
	if err != nil {
		t.Fatalf("text file missing: %v", err)
	}
	if string(text) != "It is noon." {
		t.Errorf("text content = %q", text)
	}

	audioData, err := os.ReadFile(meta.AudioPath)
	if err != nil {
		t.Fatalf("audio file missing: %v", err)
	}
	if string(audioData) != "mp3-bytes" {
		t.Errorf("audio content = %q", audioData)
	}
	if !strings.HasSuffix(meta.AudioPath, ".mp3") {
		t.Errorf("audio path %q should use the format extension", meta.AudioPath)
	}
	if meta.AudioSize != len("mp3-bytes") {
		t.Errorf("AudioSize = %d", meta.AudioSize)
	}
	if meta.Transcript != "what time is it" {
		t.Errorf("Transcript = %q", meta.Transcript)
	}

	sessionDir := filepath.Join(baseDir, store.SessionID())
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	var metaFile string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "metadata_") && strings.HasSuffix(e.Name(), ".json") {
			metaFile = e.Name()
		}
	}
	if metaFile == "" {
		t.Fatal("metadata document not written")
	}

	doc, err := os.ReadFile(filepath.Join(sessionDir, metaFile))
	if err != nil {
		t.Fatal(err)
	}
	var stored ResponseMetadata
	if err := json.Unmarshal(doc, &stored); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if stored.Format != "mp3" {
		t.Errorf("stored format = %q", stored.Format)
	}
}

func TestSaveExchangeTextOnly(t *testing.T) {
	store, _ := newTestStore(t)

	meta, err := store.SaveExchange("hello", "Hi there.", nil, audio.FormatPCM)
	if err != nil {
		t.Fatalf("SaveExchange: %v", err)
	}
	if meta.AudioPath != "" {
		t.Errorf("AudioPath = %q, want empty for a text-only exchange", meta.AudioPath)
	}
}

func TestLibraryListAndGet(t *testing.T) {
	store, baseDir := newTestStore(t)
	if _, err := store.SaveExchange("q1", "a1", []byte("x"), audio.FormatWAV); err != nil {
		t.Fatal(err)
	}
	// Filenames are timestamped to the millisecond; keep the saves apart.
	time.Sleep(5 * time.Millisecond)
	if _, err := store.SaveExchange("q2", "a2", nil, audio.FormatPCM); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(baseDir)

	sessions, err := lib.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	if sessions[0].ID != store.SessionID() {
		t.Errorf("session ID = %q", sessions[0].ID)
	}
	if sessions[0].TextCount != 2 || sessions[0].AudioCount != 1 {
		t.Errorf("counts = %d text / %d audio, want 2/1",
			sessions[0].TextCount, sessions[0].AudioCount)
	}

	detail, err := lib.GetSession(store.SessionID())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if detail == nil {
		t.Fatal("GetSession returned nil for an existing session")
	}
	if len(detail.Responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(detail.Responses))
	}

	text, err := lib.ReadText(store.SessionID(), detail.Responses[0].Text)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if string(text) != "a1" {
		t.Errorf("first text = %q", text)
	}

	data, mimeType, err := lib.ReadAudio(store.SessionID(), detail.Responses[0].Audio)
	if err != nil {
		t.Fatalf("ReadAudio: %v", err)
	}
	if string(data) != "x" {
		t.Errorf("audio data = %q", data)
	}
	if mimeType != "audio/wav" {
		t.Errorf("mime type = %q", mimeType)
	}
}

func TestLibraryMissingSession(t *testing.T) {
	lib := NewLibrary(t.TempDir())

	detail, err := lib.GetSession("2026-01-01_zzzzzz")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if detail != nil {
		t.Error("GetSession should return nil for a missing session")
	}

	sessions, err := lib.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(sessions))
	}
}

func TestLibraryRejectsTraversal(t *testing.T) {
	store, baseDir := newTestStore(t)
	if _, err := store.SaveExchange("q", "a", nil, audio.FormatPCM); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(baseDir)

	cases := []struct {
		name    string
		session string
		file    string
	}{
		{"dotdot session", "../" + store.SessionID(), "response.txt"},
		{"dotdot file", store.SessionID(), "../../secret.txt"},
		{"absolute file", store.SessionID(), "/etc/passwd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := lib.ReadText(tc.session, tc.file); err == nil {
				t.Error("expected traversal to be rejected")
			}
		})
	}
}
