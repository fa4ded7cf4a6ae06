package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultDeepgramBaseURL = "https://api.deepgram.com/v1"
	defaultDeepgramModel   = "nova-2"
)

// DeepgramConfig holds configuration for the Deepgram transcriber.
// APIKey is required; BaseURL and Model fall back to the hosted API
// and the nova-2 general model.
type DeepgramConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// DeepgramTranscriber recognizes finalized recordings with Deepgram's
// prerecorded audio API. The whole recording goes up in one request
// body; the container format travels as the Content-Type header.
type DeepgramTranscriber struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func NewDeepgramTranscriber(config DeepgramConfig, logger *zap.Logger) (*DeepgramTranscriber, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
	}
	model := config.Model
	if model == "" {
		model = defaultDeepgramModel
	}
	return &DeepgramTranscriber{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}, nil
}

func (d *DeepgramTranscriber) Transcribe(ctx context.Context, audioData []byte, mimeType string) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("audio data cannot be empty")
	}

	url := fmt.Sprintf("%s/listen?model=%s&smart_format=true", d.baseURL, d.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(audioData))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", mimeType)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepgram API returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	var parsed deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	best := parsed.Results.Channels[0].Alternatives[0]

	d.logger.Info("Transcription completed",
		zap.Int("audioBytes", len(audioData)),
		zap.Float64("confidence", best.Confidence),
		zap.Duration("elapsed", time.Since(start)))

	return best.Transcript, nil
}
