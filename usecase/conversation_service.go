package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/domain/entities"
	"github.com/halcyonlabs/murmur/server/domain/repositories"
	"github.com/halcyonlabs/murmur/server/internal/audio"
	"github.com/halcyonlabs/murmur/server/internal/events"
	"github.com/halcyonlabs/murmur/server/internal/metrics"
	"github.com/halcyonlabs/murmur/server/internal/storage"
)

// DefaultSystemPrompt bounds reply length so synthesized audio stays
// short enough for the device to play back.
const DefaultSystemPrompt = "You are a helpful assistant. Keep your response concise and under 70 words. Be direct and to the point."

// NoSpeechReply is returned when transcription hears nothing; an
// inaudible recording is answered, not treated as a pipeline failure.
const NoSpeechReply = "I didn't hear anything."

// Exchange is the outcome of one recording run through the pipeline.
type Exchange struct {
	Transcript  string
	Reply       string
	ReplyAudio  []byte
	ReplyFormat audio.Format
	StartedAt   time.Time
}

// ConversationService orchestrates the transcribe, respond, and
// synthesize collaborators and archives completed exchanges.
type ConversationService struct {
	transcriber   repositories.Transcriber
	responder     repositories.Responder
	synthesizer   repositories.Synthesizer
	store         *storage.ResponseStore
	conversations repositories.ConversationRepository
	publisher     *events.Publisher
	systemPrompt  string
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewConversationService wires the pipeline. store, conversations, and
// publisher may be nil; archiving skips what is absent.
func NewConversationService(
	transcriber repositories.Transcriber,
	responder repositories.Responder,
	synthesizer repositories.Synthesizer,
	store *storage.ResponseStore,
	conversations repositories.ConversationRepository,
	publisher *events.Publisher,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		transcriber:   transcriber,
		responder:     responder,
		synthesizer:   synthesizer,
		store:         store,
		conversations: conversations,
		publisher:     publisher,
		systemPrompt:  DefaultSystemPrompt,
		logger:        logger,
		metrics:       metrics.Default,
	}
}

// SetSystemPrompt overrides the default responder instructions.
func (s *ConversationService) SetSystemPrompt(prompt string) {
	if strings.TrimSpace(prompt) != "" {
		s.systemPrompt = prompt
	}
}

// Reply transcribes a finalized recording and generates the reply
// text. A transcription failure is treated as silence rather than an
// error; a responder failure is fatal for the exchange.
func (s *ConversationService) Reply(ctx context.Context, recording []byte, format audio.Format) (Exchange, error) {
	ex := Exchange{StartedAt: time.Now()}

	transcript, err := s.transcriber.Transcribe(ctx, recording, format.MIMEType())
	if err != nil {
		s.metrics.PipelineFailures.WithLabelValues("transcribe").Inc()
		s.logger.Warn("Transcription failed, treating as silence", zap.Error(err))
		transcript = ""
	}
	ex.Transcript = strings.TrimSpace(transcript)

	if ex.Transcript == "" {
		s.logger.Info("No speech detected in recording",
			zap.Int("bytes", len(recording)),
			zap.String("format", format.String()))
		ex.Reply = NoSpeechReply
		return ex, nil
	}

	s.logger.Info("Transcription completed", zap.String("transcript", ex.Transcript))

	reply, err := s.responder.Complete(ctx, ex.Transcript, s.systemPrompt)
	if err != nil {
		s.metrics.PipelineFailures.WithLabelValues("respond").Inc()
		return ex, fmt.Errorf("failed to generate reply: %w", err)
	}
	ex.Reply = reply
	return ex, nil
}

// Synthesize converts reply text to audio through the configured
// synthesizer (usually an ordered fallback chain).
func (s *ConversationService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	data, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		s.metrics.PipelineFailures.WithLabelValues("synthesize").Inc()
		return nil, fmt.Errorf("failed to synthesize reply: %w", err)
	}
	return data, nil
}

// Archive persists one completed exchange: response store files,
// conversation history, and the Kafka event. Each sink is best-effort
// and failures never propagate back to the device session.
func (s *ConversationService) Archive(ctx context.Context, deviceID string, ex Exchange) {
	if s.store != nil {
		if _, err := s.store.SaveExchange(ex.Transcript, ex.Reply, ex.ReplyAudio, ex.ReplyFormat); err != nil {
			s.logger.Error("Failed to archive exchange to response store", zap.Error(err))
		}
	}

	if s.conversations != nil {
		if err := s.appendHistory(ctx, deviceID, ex); err != nil {
			s.logger.Error("Failed to append conversation history",
				zap.String("deviceID", deviceID),
				zap.Error(err))
		}
	}

	if s.publisher != nil {
		err := s.publisher.PublishExchange(ctx, events.ExchangeEvent{
			DeviceID:   deviceID,
			Transcript: ex.Transcript,
			Reply:      ex.Reply,
			AudioBytes: len(ex.ReplyAudio),
			Format:     ex.ReplyFormat.String(),
		})
		if err != nil {
			s.logger.Error("Failed to publish exchange event", zap.Error(err))
		}
	}
}

func (s *ConversationService) appendHistory(ctx context.Context, deviceID string, ex Exchange) error {
	conversation, err := s.conversations.GetLastByDeviceID(ctx, deviceID)
	if err != nil {
		return err
	}
	created := false
	if conversation == nil {
		conversation = entities.NewConversation(deviceID)
		created = true
	}

	now := time.Now()
	conversation.Append(
		entities.ConversationMessage{
			Timestamp:  ex.StartedAt,
			Role:       entities.MessageRoleUser,
			Content:    ex.Transcript,
			DurationMs: now.Sub(ex.StartedAt).Milliseconds(),
		},
		entities.ConversationMessage{
			Timestamp: now,
			Role:      entities.MessageRoleAssistant,
			Content:   ex.Reply,
		},
	)

	if created {
		return s.conversations.Create(ctx, conversation)
	}
	return s.conversations.Update(ctx, conversation)
}
