package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/repositories"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/kakehashi-app/kakehashi-backend/pkg/errors"
)

// ConversationAdapter implements the ConversationRepository interface. It
// owns the per-conversation health state register and the derived topic
// segments.
type ConversationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewConversationAdapter creates a new conversation adapter
func NewConversationAdapter(client *postgres.Client) repositories.ConversationRepository {
	return &ConversationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetHealthState retrieves the conversation's health state register. A
// conversation with no register yet reports HealthStateNone.
func (a *ConversationAdapter) GetHealthState(ctx context.Context, conversationID string) (*entities.ConversationHealthState, error) {
	query, args, err := a.db.Select(
		"conversation_id",
		"state",
		"state_data",
		"updated_at",
	).
		From("conversation_health_states").
		Where(goqu.Ex{"conversation_id": conversationID}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build health state query", err)
	}

	var stateDataRaw []byte
	state := &entities.ConversationHealthState{}

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&state.ConversationID,
		&state.State,
		&stateDataRaw,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return &entities.ConversationHealthState{
			ConversationID: conversationID,
			State:          entities.HealthStateNone,
		}, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get health state", err)
	}

	if len(stateDataRaw) > 0 {
		_ = json.Unmarshal(stateDataRaw, &state.StateData)
	}

	return state, nil
}

// SaveHealthState upserts the conversation's health state register.
// Last-writer-wins: concurrent enrichment tasks are not serialized.
func (a *ConversationAdapter) SaveHealthState(ctx context.Context, state *entities.ConversationHealthState) error {
	if state == nil {
		return apperrors.NewValidationError("state is required")
	}
	if state.ConversationID == "" {
		return apperrors.NewValidationError("state conversation_id is required")
	}

	state.UpdatedAt = time.Now()
	stateDataBytes, _ := json.Marshal(state.StateData)

	query := `
		INSERT INTO conversation_health_states
			(conversation_id, state, state_data, updated_at)
		VALUES
			($1, $2, $3::jsonb, $4)
		ON CONFLICT (conversation_id)
		DO UPDATE SET
			state = EXCLUDED.state,
			state_data = EXCLUDED.state_data,
			updated_at = EXCLUDED.updated_at
	`

	_, err := a.client.DB().ExecContext(ctx, query,
		state.ConversationID,
		state.State,
		stateDataBytes,
		state.UpdatedAt,
	)

	if err != nil {
		return apperrors.NewInternalError("failed to save health state", err)
	}

	return nil
}

// ReplaceSegments atomically replaces all of a conversation's topic
// segments (delete then bulk insert in one transaction).
func (a *ConversationAdapter) ReplaceSegments(ctx context.Context, conversationID string, segments []*entities.ConversationSegment) error {
	if conversationID == "" {
		return apperrors.NewValidationError("conversation_id is required")
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin segment transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_segments WHERE conversation_id = $1`,
		conversationID,
	); err != nil {
		return apperrors.NewInternalError("failed to delete segments", err)
	}

	insert := `
		INSERT INTO conversation_segments
			(id, conversation_id, topic, summary, start_index, end_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now()
	for _, segment := range segments {
		if segment.ID == "" {
			segment.ID = uuid.New().String()
		}
		if segment.CreatedAt.IsZero() {
			segment.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, insert,
			segment.ID,
			conversationID,
			segment.Topic,
			segment.Summary,
			segment.StartIndex,
			segment.EndIndex,
			segment.CreatedAt,
		); err != nil {
			return apperrors.NewInternalError("failed to insert segment", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit segment transaction", err)
	}

	return nil
}
