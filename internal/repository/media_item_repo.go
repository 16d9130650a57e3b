package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/scenevault/scenevault/internal/models"
)

// mediaItemRepo implements MediaItemRepository using GORM.
type mediaItemRepo struct {
	db *gorm.DB
}

// NewMediaItemRepository creates a new MediaItemRepository.
func NewMediaItemRepository(db *gorm.DB) MediaItemRepository {
	return &mediaItemRepo{db: db}
}

// Create creates a new media item.
func (r *mediaItemRepo) Create(ctx context.Context, item *models.MediaItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("creating media item: %w", err)
	}
	return nil
}

// GetByID retrieves a media item by ID. Returns (nil, nil) when not found.
func (r *mediaItemRepo) GetByID(ctx context.Context, id models.ULID) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media item by ID: %w", err)
	}
	return &item, nil
}

// GetByPath retrieves a media item by file path. Returns (nil, nil) when not found.
func (r *mediaItemRepo) GetByPath(ctx context.Context, path string) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := r.db.WithContext(ctx).Where("path = ?", path).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media item by path: %w", err)
	}
	return &item, nil
}

// GetAll retrieves all media items ordered by title.
func (r *mediaItemRepo) GetAll(ctx context.Context) ([]*models.MediaItem, error) {
	var items []*models.MediaItem
	if err := r.db.WithContext(ctx).Order("title ASC, created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting all media items: %w", err)
	}
	return items, nil
}

// Update updates an existing media item.
func (r *mediaItemRepo) Update(ctx context.Context, item *models.MediaItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("updating media item: %w", err)
	}
	return nil
}

// Delete deletes a media item by ID.
func (r *mediaItemRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.MediaItem{}).Error; err != nil {
		return fmt.Errorf("deleting media item: %w", err)
	}
	return nil
}

// ExistingIDs reports which of the given IDs still exist in the store.
// Used by the plan-cache janitor to drop plans for deleted items.
func (r *mediaItemRepo) ExistingIDs(ctx context.Context, ids []models.ULID) (map[models.ULID]bool, error) {
	result := make(map[models.ULID]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var found []models.ULID
	err := r.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, fmt.Errorf("checking existing media item IDs: %w", err)
	}

	for _, id := range found {
		result[id] = true
	}
	return result, nil
}
