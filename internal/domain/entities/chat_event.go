package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatEventType represents the type of conversation event
type ChatEventType string

const (
	ChatEventMessageUpdated ChatEventType = "message-updated"
	ChatEventNewMessage     ChatEventType = "new-message"
	ChatEventStateUpdated   ChatEventType = "conversation-state-updated"
)

// ChatEvent is a real-time update event scoped to one conversation
type ChatEvent struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	EventType      ChatEventType   `json:"event_type"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// NewChatEvent creates a new conversation event. The payload is marshaled
// here; a payload that fails to marshal is published without one.
func NewChatEvent(conversationID string, eventType ChatEventType, payload interface{}) *ChatEvent {
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	return &ChatEvent{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		EventType:      eventType,
		Timestamp:      time.Now(),
		Payload:        raw,
	}
}
