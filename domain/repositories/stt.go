package repositories

import "context"

// Transcriber abstracts speech recognition services. The recording is
// complete by the time it is handed over; mimeType carries the
// container classification made at ingest.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte, mimeType string) (string, error)
}
