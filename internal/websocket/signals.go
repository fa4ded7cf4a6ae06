package websocket

import (
	"encoding/json"
	"time"
)

// Outbound signal frames. The device discriminates on the "type"
// field; timestamps are RFC 3339 strings on the wire.

// TextResponseSignal carries the generated reply text.
type TextResponseSignal struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// InfoSignal marks pipeline progress (synthesis started/finished).
type InfoSignal struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ErrorSignal reports a pipeline or protocol failure. The message is
// short and human-readable; internals never cross the wire.
type ErrorSignal struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AudioCompleteSignal marks the end of a reply's audio chunks.
type AudioCompleteSignal struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

func signalTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func marshalSignal(v interface{}) []byte {
	payload, _ := json.Marshal(v)
	return payload
}

func newTextResponse(content string) []byte {
	return marshalSignal(TextResponseSignal{
		Type:      "text_response",
		Content:   content,
		Timestamp: signalTimestamp(),
	})
}

func newInfoSignal(message string) []byte {
	return marshalSignal(InfoSignal{
		Type:      "info",
		Message:   message,
		Timestamp: signalTimestamp(),
	})
}

func newErrorSignal(message string) []byte {
	return marshalSignal(ErrorSignal{
		Type:    "error",
		Message: message,
	})
}

func newAudioComplete() []byte {
	return marshalSignal(AudioCompleteSignal{
		Type:      "audio_response_complete",
		Timestamp: signalTimestamp(),
	})
}
