package tts

import (
	"context"
	"fmt"
	"strings"
)

// MockTTS produces deterministic placeholder bytes. Used when no
// synthesis backend is configured and in tests.
type MockTTS struct {
	Audio []byte
	Err   error
}

func NewMockTTS() *MockTTS {
	return &MockTTS{}
}

func (m *MockTTS) Name() string { return "mock" }

func (m *MockTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if m.Audio != nil {
		return m.Audio, nil
	}
	return []byte("AUDIO:" + text), nil
}
