package repositories

import (
	"context"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
)

// MessageRepository defines persistence operations for messages. The
// enrichment pipeline only ever creates system messages; regular messages
// are written by the chat surface before the pipeline runs.
type MessageRepository interface {
	// Create persists a new message
	Create(ctx context.Context, message *entities.Message) error

	// GetByID retrieves a message by ID
	GetByID(ctx context.Context, id string) (*entities.Message, error)

	// ListRecent returns the most recent messages of a conversation in
	// chronological order, capped at limit
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*entities.Message, error)
}
