package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
)

// LeadRepository stores contact form enquiries.
type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	List(ctx context.Context, status string, limit int) ([]models.Lead, error)
	UpdateStatus(ctx context.Context, id uint, status string) (models.Lead, error)
}

type leadRepository struct {
	db *gorm.DB
}

// NewLeadRepository constructs a lead repository.
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{db: db}
}

func (r *leadRepository) Create(ctx context.Context, lead *models.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

func (r *leadRepository) List(ctx context.Context, status string, limit int) ([]models.Lead, error) {
	query := r.db.WithContext(ctx).Model(&models.Lead{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var leads []models.Lead
	err := query.Order("created_at DESC").Order("id DESC").Find(&leads).Error
	return leads, err
}

func (r *leadRepository) UpdateStatus(ctx context.Context, id uint, status string) (models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&lead, id).Error; err != nil {
			return err
		}
		lead.Status = status
		return tx.Model(&lead).Update("status", status).Error
	})
	return lead, err
}
