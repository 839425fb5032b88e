package repositories

import (
	"context"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
)

// EnrichmentRepository defines persistence operations for enrichment
// artifacts. At most one artifact exists per message; Upsert creates the
// record when absent and updates it in place otherwise.
type EnrichmentRepository interface {
	// GetByMessageID retrieves the artifact for a message
	GetByMessageID(ctx context.Context, messageID string) (*entities.EnrichmentArtifact, error)

	// Upsert inserts or updates the artifact for a message
	Upsert(ctx context.Context, artifact *entities.EnrichmentArtifact) error
}
