package stt

import "context"

// MockTranscriber returns a fixed transcript. Used when no speech
// service is configured so the rest of the pipeline stays exercisable.
type MockTranscriber struct {
	Transcript string
	Err        error
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{Transcript: "Hello, this is a test recording."}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audioData []byte, mimeType string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Transcript, nil
}
