package tts

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/domain/repositories"
)

// Chain tries synthesizers in order and returns the first success.
// A hosted service backed by a local command gives devices audio even
// when the network side is down or unconfigured.
type Chain struct {
	synthesizers []repositories.Synthesizer
	logger       *zap.Logger
}

func NewChain(logger *zap.Logger, synthesizers ...repositories.Synthesizer) *Chain {
	return &Chain{synthesizers: synthesizers, logger: logger}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if len(c.synthesizers) == 0 {
		return nil, fmt.Errorf("no synthesizers configured")
	}

	var lastErr error
	for _, s := range c.synthesizers {
		audio, err := s.Synthesize(ctx, text)
		if err == nil {
			return audio, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("Synthesizer failed, trying next",
			zap.String("synthesizer", s.Name()),
			zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("all synthesizers failed: %w", lastErr)
}
