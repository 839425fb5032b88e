package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the kind of content a message carries
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// SenderRole identifies which side of the conversation sent a message
type SenderRole string

const (
	RoleWorker  SenderRole = "worker"
	RoleManager SenderRole = "manager"
	RoleSystem  SenderRole = "system"
)

// Message represents a chat message. Messages are immutable once created;
// the enrichment pipeline never mutates them.
type Message struct {
	ID             string          `json:"id" db:"id"`
	ConversationID string          `json:"conversation_id" db:"conversation_id"`
	SenderID       string          `json:"sender_id" db:"sender_id"`
	SenderRole     SenderRole      `json:"sender_role" db:"sender_role"`
	Body           string          `json:"body" db:"body"`
	Language       string          `json:"language" db:"language"`
	Type           MessageType     `json:"type" db:"type"`
	ContentURL     string          `json:"content_url,omitempty" db:"content_url"`
	Metadata       json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// SystemMessageType discriminates the structured payload of a system message
type SystemMessageType string

const (
	SystemMessageConfirmation    SystemMessageType = "confirmation"
	SystemMessageInquiry         SystemMessageType = "inquiry"
	SystemMessageScheduleRequest SystemMessageType = "schedule_request"
	SystemMessageFacilities      SystemMessageType = "facilities"
	SystemMessageError           SystemMessageType = "error"
)

// SystemMessageMetadata is the metadata payload attached to system messages
// emitted by the health consultation flow.
type SystemMessageMetadata struct {
	Type            SystemMessageType  `json:"type"`
	Facilities      []*MedicalFacility `json:"facilities,omitempty"`
	Translation     string             `json:"translation,omitempty"`
	TranslationLang string             `json:"translation_lang,omitempty"`
}

// NewSystemMessage builds a system message for a conversation. The metadata
// payload is marshaled here so callers always produce a well-formed record.
func NewSystemMessage(conversationID, body, language string, meta SystemMessageMetadata) *Message {
	raw, _ := json.Marshal(meta)
	return &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       "system",
		SenderRole:     RoleSystem,
		Body:           body,
		Language:       language,
		Type:           MessageTypeSystem,
		Metadata:       raw,
		CreatedAt:      time.Now(),
	}
}
