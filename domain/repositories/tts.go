package repositories

import "context"

// Synthesizer converts reply text into audio bytes ready for chunked
// delivery to the device.
type Synthesizer interface {
	// Name identifies the strategy in logs and fallback errors.
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
