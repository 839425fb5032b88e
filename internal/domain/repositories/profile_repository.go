package repositories

import (
	"context"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
)

// ProfileRepository reads the worker and group profiles attached to a
// conversation. Profiles are owned by the admin surface; the pipeline only
// reads them.
type ProfileRepository interface {
	// GetWorkerProfile retrieves the worker profile for a conversation
	GetWorkerProfile(ctx context.Context, conversationID string) (*entities.WorkerProfile, error)

	// GetGroupProfile retrieves the group profile for a conversation
	GetGroupProfile(ctx context.Context, conversationID string) (*entities.GroupProfile, error)
}
