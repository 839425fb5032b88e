package providers

import (
	"context"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// conversation-scoped events. Publishing is fire-and-forget from the
// pipeline's perspective: a missing subscriber set is not an error.
type EventBus interface {
	// Publish publishes an event to the conversation's channel
	Publish(ctx context.Context, channel string, event *entities.ChatEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ChatEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus
	Close() error
}

// ConversationChannel returns the pub/sub channel for one conversation
func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}
