package repositories

import "context"

// Responder abstracts the language model that turns a transcript into
// a reply. Implementations own their streaming/retry behavior; callers
// see a single completed reply or an error.
type Responder interface {
	Complete(ctx context.Context, prompt string, systemPrompt string) (string, error)
}
