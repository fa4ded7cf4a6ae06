package entities

import "time"

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one turn of a device conversation.
type ConversationMessage struct {
	Timestamp  time.Time   `json:"timestamp" bson:"timestamp"`
	Role       MessageRole `json:"role" bson:"role"`
	Content    string      `json:"content" bson:"content"`
	DurationMs int64       `json:"duration_ms,omitempty" bson:"duration_ms,omitempty"`
}

// Conversation is the persisted message history for one device. A
// conversation accumulates user/assistant message pairs as recordings
// complete.
type Conversation struct {
	ID            string                `json:"id" bson:"_id,omitempty"`
	DeviceID      string                `json:"device_id" bson:"device_id"`
	CreatedAt     time.Time             `json:"created_at" bson:"created_at"`
	LastMessageAt time.Time             `json:"last_message_at" bson:"last_message_at"`
	Messages      []ConversationMessage `json:"messages" bson:"messages"`
}

// NewConversation starts an empty conversation for a device.
func NewConversation(deviceID string) *Conversation {
	now := time.Now()
	return &Conversation{
		DeviceID:      deviceID,
		CreatedAt:     now,
		LastMessageAt: now,
		Messages:      make([]ConversationMessage, 0),
	}
}

// Append adds messages and advances the last-message timestamp.
func (c *Conversation) Append(messages ...ConversationMessage) {
	c.Messages = append(c.Messages, messages...)
	for _, m := range messages {
		if m.Timestamp.After(c.LastMessageAt) {
			c.LastMessageAt = m.Timestamp
		}
	}
}
