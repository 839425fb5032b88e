package entities

import (
	"time"
)

// ConversationSegment is a derived topic grouping over a conversation's
// messages. Segments are fully regenerated after every new message and are
// never authoritative.
type ConversationSegment struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Topic          string    `json:"topic" db:"topic"`
	Summary        string    `json:"summary" db:"summary"`
	StartIndex     int       `json:"start_index" db:"start_index"`
	EndIndex       int       `json:"end_index" db:"end_index"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
