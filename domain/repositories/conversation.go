package repositories

import (
	"context"

	"github.com/halcyonlabs/murmur/server/domain/entities"
)

// ConversationRepository persists per-device conversation history.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entities.Conversation) error
	// GetLastByDeviceID returns the most recent conversation for a
	// device, or nil when the device has none.
	GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Conversation, error)
	Update(ctx context.Context, conversation *entities.Conversation) error
}
