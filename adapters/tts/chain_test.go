package tts

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestChainFirstSuccessWins(t *testing.T) {
	primary := &MockTTS{Audio: []byte("primary-audio")}
	secondary := &MockTTS{Audio: []byte("secondary-audio")}

	chain := NewChain(zap.NewNop(), primary, secondary)
	audio, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "primary-audio" {
		t.Errorf("audio = %q, want the primary's output", audio)
	}
}

func TestChainFallsThrough(t *testing.T) {
	primary := &MockTTS{Err: errors.New("quota exceeded")}
	secondary := &MockTTS{Audio: []byte("secondary-audio")}

	chain := NewChain(zap.NewNop(), primary, secondary)
	audio, err := chain.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "secondary-audio" {
		t.Errorf("audio = %q, want the fallback's output", audio)
	}
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(zap.NewNop(),
		&MockTTS{Err: errors.New("down")},
		&MockTTS{Err: errors.New("also down")},
	)
	if _, err := chain.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error when every synthesizer fails")
	}
}

func TestChainEmpty(t *testing.T) {
	chain := NewChain(zap.NewNop())
	if _, err := chain.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error with no synthesizers configured")
	}
}

func TestChainStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := &MockTTS{Err: errors.New("slow failure")}
	secondary := &MockTTS{Audio: []byte("never-reached")}
	chain := NewChain(zap.NewNop(), primary, secondary)

	cancel()
	if _, err := chain.Synthesize(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
