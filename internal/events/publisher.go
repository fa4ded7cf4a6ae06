// Package events publishes completed conversation exchanges to Kafka
// for downstream consumers. Publishing is best-effort and disabled
// when no brokers are configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ExchangeEvent is the wire document for one completed exchange.
type ExchangeEvent struct {
	DeviceID   string `json:"device_id"`
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
	AudioBytes int    `json:"audio_bytes"`
	Format     string `json:"format,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes exchange events to a Kafka topic.
type Publisher struct {
	writer  *kafka.Writer
	enabled bool
	logger  *zap.Logger
}

// New creates a publisher. With no brokers it runs in log-only mode.
func New(cfg Config, logger *zap.Logger) *Publisher {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		logger.Info("Kafka publishing disabled")
		return &Publisher{logger: logger}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("Kafka publishing enabled",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return &Publisher{writer: writer, enabled: true, logger: logger}
}

// PublishExchange emits one event keyed by device ID.
func (p *Publisher) PublishExchange(ctx context.Context, event ExchangeEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if !p.enabled {
		p.logger.Debug("Exchange event (kafka disabled)",
			zap.String("deviceID", event.DeviceID),
			zap.Int("audioBytes", event.AudioBytes))
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode exchange event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.DeviceID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish exchange event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
