package repositories

import (
	"context"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
)

// ConversationRepository defines persistence operations for the
// per-conversation health state register and the derived topic segments.
type ConversationRepository interface {
	// GetHealthState retrieves the conversation's health state. A
	// conversation with no register yet reports HealthStateNone.
	GetHealthState(ctx context.Context, conversationID string) (*entities.ConversationHealthState, error)

	// SaveHealthState upserts the conversation's health state register
	SaveHealthState(ctx context.Context, state *entities.ConversationHealthState) error

	// ReplaceSegments atomically replaces all of a conversation's segments
	ReplaceSegments(ctx context.Context, conversationID string, segments []*entities.ConversationSegment) error
}
