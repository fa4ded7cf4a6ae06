package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/halcyonlabs/murmur/server/domain/entities"
	"github.com/halcyonlabs/murmur/server/domain/repositories"
)

type ConversationRepository struct {
	collection *mongo.Collection
}

// conversationDoc is the stored shape; the _id round-trips through
// ObjectID while the entity carries its hex form.
type conversationDoc struct {
	ID            primitive.ObjectID             `bson:"_id,omitempty"`
	DeviceID      string                         `bson:"device_id"`
	CreatedAt     time.Time                      `bson:"created_at"`
	LastMessageAt time.Time                      `bson:"last_message_at"`
	Messages      []entities.ConversationMessage `bson:"messages"`
}

// NewConversationRepository creates a MongoDB conversation repository.
func NewConversationRepository(db *mongo.Database) repositories.ConversationRepository {
	return &ConversationRepository{
		collection: db.Collection("conversations"),
	}
}

// Create implements repositories.ConversationRepository.
func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}

	now := time.Now()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	if conversation.LastMessageAt.IsZero() {
		conversation.LastMessageAt = now
	}

	doc := conversationDoc{
		DeviceID:      conversation.DeviceID,
		CreatedAt:     conversation.CreatedAt,
		LastMessageAt: conversation.LastMessageAt,
		Messages:      conversation.Messages,
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		conversation.ID = oid.Hex()
	}
	return nil
}

// GetLastByDeviceID implements repositories.ConversationRepository.
func (r *ConversationRepository) GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Conversation, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	filter := bson.M{"device_id": deviceID}
	opts := options.FindOne().SetSort(bson.M{"last_message_at": -1})

	var doc conversationDoc
	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last conversation for device %s: %w", deviceID, err)
	}

	return &entities.Conversation{
		ID:            doc.ID.Hex(),
		DeviceID:      doc.DeviceID,
		CreatedAt:     doc.CreatedAt,
		LastMessageAt: doc.LastMessageAt,
		Messages:      doc.Messages,
	}, nil
}

// Update implements repositories.ConversationRepository.
func (r *ConversationRepository) Update(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if conversation.ID == "" {
		return errors.New("conversation ID cannot be empty")
	}

	objectID, err := primitive.ObjectIDFromHex(conversation.ID)
	if err != nil {
		return fmt.Errorf("invalid conversation ID format: %w", err)
	}

	update := bson.M{
		"$set": bson.M{
			"device_id":       conversation.DeviceID,
			"last_message_at": conversation.LastMessageAt,
			"messages":        conversation.Messages,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("conversation with ID %s not found", conversation.ID)
	}
	return nil
}
