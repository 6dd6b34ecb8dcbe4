// Package catalog persists image metadata rows in Postgres through gorm.
package catalog

import (
	"context"
	"fmt"

	"imagehub/models"

	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the image_metadata table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.ImageMetadata{}); err != nil {
		return fmt.Errorf("migrate image_metadata: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rec *models.ImageMetadata) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert image metadata: %w", err)
	}
	return nil
}

// All returns every row ordered by id. There is no paging.
func (s *Store) All(ctx context.Context) ([]models.ImageMetadata, error) {
	var items []models.ImageMetadata
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list image metadata: %w", err)
	}
	return items, nil
}

// FindByName returns every row with the given name; names are not unique.
func (s *Store) FindByName(ctx context.Context, name string) ([]models.ImageMetadata, error) {
	var items []models.ImageMetadata
	if err := s.db.WithContext(ctx).Where("name = ?", name).Order("id asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find image metadata %q: %w", name, err)
	}
	return items, nil
}

func (s *Store) Delete(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Delete(&models.ImageMetadata{}, id).Error; err != nil {
		return fmt.Errorf("delete image metadata %d: %w", id, err)
	}
	return nil
}
