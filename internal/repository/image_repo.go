package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
)

// ImageRepository persists metadata about uploaded images.
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	GetByID(ctx context.Context, id string) (models.Image, error)
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository constructs a repository for image records.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *imageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	var image models.Image
	err := r.db.WithContext(ctx).First(&image, "id = ?", id).Error
	return image, err
}
