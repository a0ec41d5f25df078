package repositories

import (
	"context"

	"github.com/streamhub/backend/internal/models"
)

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByIDs(ctx context.Context, ids []string) ([]models.Video, error)
}
