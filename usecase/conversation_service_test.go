package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/domain/entities"
	"github.com/halcyonlabs/murmur/server/internal/audio"
)

type fakeTranscriber struct {
	transcript string
	err        error
	gotMIME    string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioData []byte, mimeType string) (string, error) {
	f.gotMIME = mimeType
	return f.transcript, f.err
}

type fakeResponder struct {
	reply     string
	err       error
	gotPrompt string
	gotSystem string
}

func (f *fakeResponder) Complete(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	f.gotPrompt = prompt
	f.gotSystem = systemPrompt
	return f.reply, f.err
}

type fakeSynthesizer struct {
	audio []byte
	err   error
}

func (f *fakeSynthesizer) Name() string { return "fake" }

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

type fakeConversations struct {
	last    *entities.Conversation
	created []*entities.Conversation
	updated []*entities.Conversation
	err     error
}

func (f *fakeConversations) Create(ctx context.Context, c *entities.Conversation) error {
	f.created = append(f.created, c)
	return f.err
}

func (f *fakeConversations) GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Conversation, error) {
	return f.last, f.err
}

func (f *fakeConversations) Update(ctx context.Context, c *entities.Conversation) error {
	f.updated = append(f.updated, c)
	return f.err
}

func TestReplyHappyPath(t *testing.T) {
	transcriber := &fakeTranscriber{transcript: "what is the capital of France"}
	responder := &fakeResponder{reply: "Paris."}
	service := NewConversationService(transcriber, responder, &fakeSynthesizer{}, nil, nil, nil, zap.NewNop())

	ex, err := service.Reply(context.Background(), []byte("RIFFdata"), audio.FormatWAV)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if ex.Transcript != "what is the capital of France" {
		t.Errorf("Transcript = %q", ex.Transcript)
	}
	if ex.Reply != "Paris." {
		t.Errorf("Reply = %q", ex.Reply)
	}
	if transcriber.gotMIME != "audio/wav" {
		t.Errorf("mime = %q", transcriber.gotMIME)
	}
	if responder.gotPrompt != ex.Transcript {
		t.Errorf("responder prompt = %q", responder.gotPrompt)
	}
	if responder.gotSystem != DefaultSystemPrompt {
		t.Errorf("system prompt = %q", responder.gotSystem)
	}
}

func TestReplyTranscriptionFailureTreatedAsSilence(t *testing.T) {
	transcriber := &fakeTranscriber{err: errors.New("service unavailable")}
	responder := &fakeResponder{reply: "never used"}
	service := NewConversationService(transcriber, responder, &fakeSynthesizer{}, nil, nil, nil, zap.NewNop())

	ex, err := service.Reply(context.Background(), []byte("RIFFdata"), audio.FormatWAV)
	if err != nil {
		t.Fatalf("a transcription failure must not fail the exchange: %v", err)
	}
	if ex.Reply != NoSpeechReply {
		t.Errorf("Reply = %q, want the no-speech reply", ex.Reply)
	}
	if responder.gotPrompt != "" {
		t.Error("responder must not run for silence")
	}
}

func TestReplyWhitespaceTranscriptIsSilence(t *testing.T) {
	transcriber := &fakeTranscriber{transcript: "   \n  "}
	service := NewConversationService(transcriber, &fakeResponder{reply: "unused"}, &fakeSynthesizer{}, nil, nil, nil, zap.NewNop())

	ex, err := service.Reply(context.Background(), []byte("RIFFdata"), audio.FormatWAV)
	if err != nil {
		t.Fatal(err)
	}
	if ex.Reply != NoSpeechReply {
		t.Errorf("Reply = %q, want the no-speech reply", ex.Reply)
	}
}

func TestReplyResponderFailureIsFatal(t *testing.T) {
	transcriber := &fakeTranscriber{transcript: "hello"}
	responder := &fakeResponder{err: errors.New("model overloaded")}
	service := NewConversationService(transcriber, responder, &fakeSynthesizer{}, nil, nil, nil, zap.NewNop())

	if _, err := service.Reply(context.Background(), []byte("RIFFdata"), audio.FormatWAV); err == nil {
		t.Fatal("a responder failure must fail the exchange")
	}
}

func TestSetSystemPrompt(t *testing.T) {
	responder := &fakeResponder{reply: "ok"}
	service := NewConversationService(&fakeTranscriber{transcript: "hi"}, responder, &fakeSynthesizer{}, nil, nil, nil, zap.NewNop())

	service.SetSystemPrompt("Answer in French.")
	if _, err := service.Reply(context.Background(), []byte("RIFFdata"), audio.FormatWAV); err != nil {
		t.Fatal(err)
	}
	if responder.gotSystem != "Answer in French." {
		t.Errorf("system prompt = %q", responder.gotSystem)
	}

	// Blank overrides are ignored.
	service.SetSystemPrompt("   ")
	if _, err := service.Reply(context.Background(), []byte("RIFFdata"), audio.FormatWAV); err != nil {
		t.Fatal(err)
	}
	if responder.gotSystem != "Answer in French." {
		t.Errorf("system prompt after blank override = %q", responder.gotSystem)
	}
}

func TestSynthesizeWrapsError(t *testing.T) {
	service := NewConversationService(&fakeTranscriber{}, &fakeResponder{}, &fakeSynthesizer{err: errors.New("down")}, nil, nil, nil, zap.NewNop())
	if _, err := service.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected synthesis error to propagate")
	}
}

func TestArchiveStartsNewConversation(t *testing.T) {
	conversations := &fakeConversations{}
	service := NewConversationService(&fakeTranscriber{}, &fakeResponder{}, &fakeSynthesizer{}, nil, conversations, nil, zap.NewNop())

	service.Archive(context.Background(), "esp32-01", Exchange{
		Transcript: "hello",
		Reply:      "hi there",
	})

	if len(conversations.created) != 1 {
		t.Fatalf("created = %d, want 1", len(conversations.created))
	}
	conv := conversations.created[0]
	if conv.DeviceID != "esp32-01" {
		t.Errorf("DeviceID = %q", conv.DeviceID)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("messages = %d, want user+assistant pair", len(conv.Messages))
	}
	if conv.Messages[0].Role != entities.MessageRoleUser || conv.Messages[0].Content != "hello" {
		t.Errorf("first message = %+v", conv.Messages[0])
	}
	if conv.Messages[1].Role != entities.MessageRoleAssistant || conv.Messages[1].Content != "hi there" {
		t.Errorf("second message = %+v", conv.Messages[1])
	}
}

func TestArchiveAppendsToExistingConversation(t *testing.T) {
	existing := entities.NewConversation("esp32-01")
	existing.ID = "conv-1"
	conversations := &fakeConversations{last: existing}
	service := NewConversationService(&fakeTranscriber{}, &fakeResponder{}, &fakeSynthesizer{}, nil, conversations, nil, zap.NewNop())

	service.Archive(context.Background(), "esp32-01", Exchange{Transcript: "q", Reply: "a"})

	if len(conversations.created) != 0 {
		t.Error("existing conversation must be updated, not recreated")
	}
	if len(conversations.updated) != 1 {
		t.Fatalf("updated = %d, want 1", len(conversations.updated))
	}
	if len(conversations.updated[0].Messages) != 2 {
		t.Errorf("messages = %d", len(conversations.updated[0].Messages))
	}
}

func TestArchiveToleratesNilSinks(t *testing.T) {
	service := NewConversationService(&fakeTranscriber{}, &fakeResponder{}, &fakeSynthesizer{}, nil, nil, nil, zap.NewNop())
	// Must not panic with every sink absent.
	service.Archive(context.Background(), "esp32-01", Exchange{Transcript: "q", Reply: "a"})
}
