package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/repositories"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/kakehashi-app/kakehashi-backend/pkg/errors"
)

// MessageAdapter implements the MessageRepository interface
type MessageAdapter struct {
	client *postgres.Client
}

// NewMessageAdapter creates a new message adapter
func NewMessageAdapter(client *postgres.Client) repositories.MessageRepository {
	return &MessageAdapter{
		client: client,
	}
}

// Create persists a new message. Only system messages are created through
// this path; regular messages are written by the chat surface.
func (a *MessageAdapter) Create(ctx context.Context, message *entities.Message) error {
	if message == nil {
		return apperrors.NewValidationError("message is required")
	}

	metadata := message.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	query := `
		INSERT INTO messages (
			id, conversation_id, sender_id, sender_role, body,
			language, type, content_url, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
	`

	_, err := a.client.DB().ExecContext(ctx, query,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.SenderRole,
		message.Body,
		message.Language,
		message.Type,
		message.ContentURL,
		[]byte(metadata),
		message.CreatedAt,
	)

	if err != nil {
		return apperrors.NewInternalError("failed to create message", err)
	}

	return nil
}

// GetByID retrieves a message by ID
func (a *MessageAdapter) GetByID(ctx context.Context, id string) (*entities.Message, error) {
	query := `
		SELECT
			id, conversation_id, sender_id, sender_role, body,
			language, type, content_url, metadata, created_at
		FROM messages
		WHERE id = $1
	`

	message, err := scanMessage(a.client.DB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("message with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get message", err)
	}

	return message, nil
}

// ListRecent returns the most recent messages of a conversation in
// chronological order, capped at limit.
func (a *MessageAdapter) ListRecent(ctx context.Context, conversationID string, limit int) ([]*entities.Message, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT
			id, conversation_id, sender_id, sender_role, body,
			language, type, content_url, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := a.client.DB().QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list messages", err)
	}
	defer rows.Close()

	messages := make([]*entities.Message, 0, limit)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan message", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate messages", err)
	}

	// Query is newest-first for the LIMIT; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*entities.Message, error) {
	message := &entities.Message{}
	var contentURL sql.NullString
	var metadata []byte

	err := row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.SenderRole,
		&message.Body,
		&message.Language,
		&message.Type,
		&contentURL,
		&metadata,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	message.ContentURL = contentURL.String
	if len(metadata) > 0 {
		message.Metadata = json.RawMessage(metadata)
	}

	return message, nil
}
