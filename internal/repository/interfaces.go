// Package repository provides data access layers for scenevault models.
package repository

import (
	"context"

	"github.com/scenevault/scenevault/internal/models"
)

// MediaItemRepository defines data access operations for media items.
type MediaItemRepository interface {
	Create(ctx context.Context, item *models.MediaItem) error
	GetByID(ctx context.Context, id models.ULID) (*models.MediaItem, error)
	GetByPath(ctx context.Context, path string) (*models.MediaItem, error)
	GetAll(ctx context.Context) ([]*models.MediaItem, error)
	Update(ctx context.Context, item *models.MediaItem) error
	Delete(ctx context.Context, id models.ULID) error
	ExistingIDs(ctx context.Context, ids []models.ULID) (map[models.ULID]bool, error)
}
