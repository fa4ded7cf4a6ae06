package llm

import (
	"context"
	"fmt"
)

// MockResponder echoes a canned reply. Used when no language model is
// configured so a device still gets a coherent round trip.
type MockResponder struct {
	Reply string
	Err   error
}

func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

func (m *MockResponder) Complete(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	return fmt.Sprintf("I heard you say: %s", prompt), nil
}
