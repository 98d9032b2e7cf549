package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
)

// ProductCounts summarises the catalogue.
type ProductCounts struct {
	Total      int64
	Published  int64
	Draft      int64
	LowStock   int64
	OutOfStock int64
}

// ReviewCounts summarises moderation state.
type ReviewCounts struct {
	Total         int64
	Approved      int64
	Pending       int64
	Hidden        int64
	AverageRating float64
}

// LeadCounts summarises the lead pipeline.
type LeadCounts struct {
	Total     int64
	New       int64 `gorm:"column:new_count"`
	Contacted int64
	Converted int64
}

// AnalyticsRepository supplies aggregates for the admin dashboard and records visits.
type AnalyticsRepository interface {
	CreateVisit(ctx context.Context, visit *models.Visit) error
	ProductCounts(ctx context.Context, lowStockThreshold int) (ProductCounts, error)
	TopViewedProducts(ctx context.Context, limit int) ([]models.Product, error)
	UserRoleCounts(ctx context.Context) (map[string]int64, error)
	CountUsersSince(ctx context.Context, since time.Time) (int64, error)
	ReviewCounts(ctx context.Context) (ReviewCounts, error)
	VisitsSince(ctx context.Context, since time.Time) ([]models.Visit, error)
	LeadCountsSince(ctx context.Context, since time.Time) (LeadCounts, error)
	RecentLeads(ctx context.Context, limit int) ([]models.Lead, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository constructs the analytics repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) CreateVisit(ctx context.Context, visit *models.Visit) error {
	return r.db.WithContext(ctx).Create(visit).Error
}

func (r *analyticsRepository) ProductCounts(ctx context.Context, lowStockThreshold int) (ProductCounts, error) {
	var counts ProductCounts
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS published, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS draft, "+
				"COALESCE(SUM(CASE WHEN stock > 0 AND stock <= ? THEN 1 ELSE 0 END), 0) AS low_stock, "+
				"COALESCE(SUM(CASE WHEN stock <= 0 THEN 1 ELSE 0 END), 0) AS out_of_stock",
			models.ProductStatusPublished, models.ProductStatusDraft, lowStockThreshold,
		).
		Scan(&counts).Error
	return counts, err
}

func (r *analyticsRepository) TopViewedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	var products []models.Product
	err := r.db.WithContext(ctx).Order("views DESC").Order("id ASC").Limit(limit).Find(&products).Error
	return products, err
}

func (r *analyticsRepository) UserRoleCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Role  string
		Count int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

func (r *analyticsRepository) CountUsersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

func (r *analyticsRepository) ReviewCounts(ctx context.Context) (ReviewCounts, error) {
	var counts ReviewCounts
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN approved = ? THEN 1 ELSE 0 END), 0) AS approved, "+
				"COALESCE(SUM(CASE WHEN approved = ? AND hidden = ? THEN 1 ELSE 0 END), 0) AS pending, "+
				"COALESCE(SUM(CASE WHEN hidden = ? THEN 1 ELSE 0 END), 0) AS hidden, "+
				"COALESCE(AVG(rating), 0) AS average_rating",
			true, false, false, true,
		).
		Scan(&counts).Error
	return counts, err
}

func (r *analyticsRepository) VisitsSince(ctx context.Context, since time.Time) ([]models.Visit, error) {
	var visits []models.Visit
	err := r.db.WithContext(ctx).Where("created_at >= ?", since).Order("created_at ASC").Find(&visits).Error
	return visits, err
}

func (r *analyticsRepository) LeadCountsSince(ctx context.Context, since time.Time) (LeadCounts, error) {
	var counts LeadCounts
	err := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("created_at >= ?", since).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS new_count, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS contacted, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS converted",
			models.LeadStatusNew, models.LeadStatusContacted, models.LeadStatusConverted,
		).
		Scan(&counts).Error
	return counts, err
}

func (r *analyticsRepository) RecentLeads(ctx context.Context, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 10
	}
	var leads []models.Lead
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&leads).Error
	return leads, err
}
