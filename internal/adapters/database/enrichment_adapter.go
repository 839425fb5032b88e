package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/repositories"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/kakehashi-app/kakehashi-backend/pkg/errors"
)

// EnrichmentAdapter implements the EnrichmentRepository interface
type EnrichmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEnrichmentAdapter creates a new enrichment adapter
func NewEnrichmentAdapter(client *postgres.Client) repositories.EnrichmentRepository {
	return &EnrichmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByMessageID retrieves the enrichment artifact for a message
func (a *EnrichmentAdapter) GetByMessageID(ctx context.Context, messageID string) (*entities.EnrichmentArtifact, error) {
	query, args, err := a.db.Select(
		"id",
		"message_id",
		"translation",
		"translation_lang",
		"suggestions",
		"extra",
		"created_at",
		"updated_at",
	).
		From("message_enrichments").
		Where(goqu.Ex{"message_id": messageID}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build enrichment query", err)
	}

	var translation, translationLang sql.NullString
	var suggestionsRaw, extraRaw []byte
	artifact := &entities.EnrichmentArtifact{}

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&artifact.ID,
		&artifact.MessageID,
		&translation,
		&translationLang,
		&suggestionsRaw,
		&extraRaw,
		&artifact.CreatedAt,
		&artifact.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("enrichment for message %s not found", messageID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get enrichment", err)
	}

	if translation.Valid {
		artifact.Translation = &translation.String
	}
	artifact.TranslationLang = translationLang.String

	if len(suggestionsRaw) > 0 {
		_ = json.Unmarshal(suggestionsRaw, &artifact.Suggestions)
	}
	if len(extraRaw) > 0 {
		_ = json.Unmarshal(extraRaw, &artifact.Extra)
	}

	return artifact, nil
}

// Upsert inserts or updates the artifact for a message. At most one
// artifact exists per message; no history is retained.
func (a *EnrichmentAdapter) Upsert(ctx context.Context, artifact *entities.EnrichmentArtifact) error {
	if artifact == nil {
		return apperrors.NewValidationError("artifact is required")
	}
	if artifact.MessageID == "" {
		return apperrors.NewValidationError("artifact message_id is required")
	}
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}

	now := time.Now()
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = now
	}
	artifact.UpdatedAt = now

	suggestionsBytes, _ := json.Marshal(artifact.Suggestions)
	extraBytes, _ := json.Marshal(artifact.Extra)

	query := `
		INSERT INTO message_enrichments
			(id, message_id, translation, translation_lang, suggestions, extra, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8)
		ON CONFLICT (message_id)
		DO UPDATE SET
			translation = EXCLUDED.translation,
			translation_lang = EXCLUDED.translation_lang,
			suggestions = EXCLUDED.suggestions,
			extra = EXCLUDED.extra,
			updated_at = EXCLUDED.updated_at
	`

	_, err := a.client.DB().ExecContext(ctx, query,
		artifact.ID,
		artifact.MessageID,
		artifact.Translation,
		artifact.TranslationLang,
		suggestionsBytes,
		extraBytes,
		artifact.CreatedAt,
		artifact.UpdatedAt,
	)

	if err != nil {
		return apperrors.NewInternalError("failed to upsert enrichment", err)
	}

	return nil
}
