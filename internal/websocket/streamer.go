package websocket

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/internal/metrics"
)

const (
	// replyChunkSize is what a small embedded receiver can absorb in
	// one frame.
	replyChunkSize = 1024

	// chunkInterval paces chunks so the device buffer is not overrun.
	chunkInterval = 10 * time.Millisecond

	// settleDelay lets the last chunk drain before the completion
	// signal is announced.
	settleDelay = 100 * time.Millisecond
)

// Sender delivers frames to one device connection.
type Sender interface {
	SendText(payload []byte) error
	SendBinary(payload []byte) error
}

// Broadcaster fans a text frame out to all interested listeners.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Streamer emits synthesized reply audio back over a connection as
// fixed-size, paced chunks followed by exactly one completion signal.
type Streamer struct {
	chunkSize int
	interval  time.Duration
	settle    time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewStreamer creates a streamer with the standard pacing.
func NewStreamer(logger *zap.Logger) *Streamer {
	return &Streamer{
		chunkSize: replyChunkSize,
		interval:  chunkInterval,
		settle:    settleDelay,
		logger:    logger,
		metrics:   metrics.Default,
	}
}

// Send splits data into chunks and sends them strictly in order. After
// the last chunk and a short settle delay it sends the completion
// signal to the originating connection and broadcasts the same signal
// to other listeners. A chunk send failure aborts the remaining chunks
// and no completion signal is sent; audio already delivered is not
// retracted — the device discards streams lacking the completion
// signal.
func (s *Streamer) Send(ctx context.Context, conn Sender, broadcast Broadcaster, data []byte) error {
	total := (len(data) + s.chunkSize - 1) / s.chunkSize
	s.logger.Info("Streaming reply audio",
		zap.Int("bytes", len(data)),
		zap.Int("chunks", total))

	for offset := 0; offset < len(data); offset += s.chunkSize {
		end := offset + s.chunkSize
		if end > len(data) {
			end = len(data)
		}

		if err := conn.SendBinary(data[offset:end]); err != nil {
			return fmt.Errorf("failed to send audio chunk at offset %d: %w", offset, err)
		}
		s.metrics.ReplyChunksSent.Inc()
		s.metrics.ReplyBytesOut.Add(float64(end - offset))

		if end < len(data) {
			select {
			case <-time.After(s.interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	select {
	case <-time.After(s.settle):
	case <-ctx.Done():
		return ctx.Err()
	}

	complete := newAudioComplete()
	if err := conn.SendText(complete); err != nil {
		return fmt.Errorf("failed to send completion signal: %w", err)
	}
	if broadcast != nil {
		broadcast.Broadcast(complete)
	}
	return nil
}
