package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/repositories"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/kakehashi-app/kakehashi-backend/pkg/errors"
)

// ProfileAdapter implements the ProfileRepository interface. Profiles are
// owned by the admin surface; this adapter only reads them.
type ProfileAdapter struct {
	db *sqlx.DB
}

// NewProfileAdapter creates a new profile adapter
func NewProfileAdapter(client *postgres.Client) repositories.ProfileRepository {
	return &ProfileAdapter{
		db: sqlx.NewDb(client.DB(), "postgres"),
	}
}

// NewProfileAdapterWithDB creates a profile adapter over an existing sqlx
// handle (used for tests).
func NewProfileAdapterWithDB(db *sqlx.DB) repositories.ProfileRepository {
	return &ProfileAdapter{db: db}
}

// GetWorkerProfile retrieves the worker profile attached to a conversation
func (a *ProfileAdapter) GetWorkerProfile(ctx context.Context, conversationID string) (*entities.WorkerProfile, error) {
	query := `
		SELECT
			w.id, w.name, w.locale, w.country_of_origin, w.birth_date,
			w.gender, w.address, w.phone, w.job_description, w.hired_at, w.notes
		FROM worker_profiles w
		JOIN conversations c ON c.worker_id = w.id
		WHERE c.id = $1
	`

	profile := &entities.WorkerProfile{}
	err := a.db.GetContext(ctx, profile, query, conversationID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("worker profile for conversation %s not found", conversationID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get worker profile", err)
	}

	return profile, nil
}

// GetGroupProfile retrieves the group profile attached to a conversation
func (a *ProfileAdapter) GetGroupProfile(ctx context.Context, conversationID string) (*entities.GroupProfile, error) {
	query := `
		SELECT
			g.id, g.name, g.phone, g.address, g.language
		FROM group_profiles g
		JOIN conversations c ON c.group_id = g.id
		WHERE c.id = $1
	`

	profile := &entities.GroupProfile{}
	err := a.db.GetContext(ctx, profile, query, conversationID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("group profile for conversation %s not found", conversationID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get group profile", err)
	}

	return profile, nil
}
