package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
)

// Review sort keys.
const (
	ReviewSortRating = "rating"
	ReviewSortNewest = "newest"
)

const reviewDeleteBatchSize = 500

// ReviewFilter narrows review queries. Nil pointers are not applied.
type ReviewFilter struct {
	Approved      *bool
	UserID        string
	ProductID     *uint
	Hidden        *bool
	IncludeHidden bool
	SortBy        string
	Limit         int
}

// ReviewRepository manages reviews and their moderation flags.
type ReviewRepository interface {
	List(ctx context.Context, filter ReviewFilter) ([]models.Review, error)
	GetByID(ctx context.Context, id uint) (models.Review, error)
	Create(ctx context.Context, review *models.Review) error
	Save(ctx context.Context, review *models.Review) error
	SetModeration(ctx context.Context, id uint, approved, hidden bool) error
	Delete(ctx context.Context, id uint) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	ApprovedRatings(ctx context.Context, productID *uint) ([]int, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository constructs a review repository.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) List(ctx context.Context, filter ReviewFilter) ([]models.Review, error) {
	query := r.db.WithContext(ctx).Model(&models.Review{})
	if filter.Approved != nil {
		query = query.Where("approved = ?", *filter.Approved)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	switch {
	case filter.Hidden != nil:
		query = query.Where("hidden = ?", *filter.Hidden)
	case !filter.IncludeHidden:
		query = query.Where("hidden = ?", false)
	}

	if filter.SortBy == ReviewSortRating {
		query = query.Order("rating DESC")
	}
	query = query.Order("created_at DESC").Order("id DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var reviews []models.Review
	err := query.Find(&reviews).Error
	return reviews, err
}

func (r *reviewRepository) GetByID(ctx context.Context, id uint) (models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).First(&review, id).Error
	return review, err
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *reviewRepository) Save(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Save(review).Error
}

func (r *reviewRepository) SetModeration(ctx context.Context, id uint, approved, hidden bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"approved": approved, "hidden": hidden})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reviewRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Review{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByUser removes every review authored by userID in fixed size batches.
func (r *reviewRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	for {
		var ids []uint
		if err := r.db.WithContext(ctx).
			Model(&models.Review{}).
			Where("user_id = ?", userID).
			Limit(reviewDeleteBatchSize).
			Pluck("id", &ids).Error; err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Review{})
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected

		if len(ids) < reviewDeleteBatchSize {
			return total, nil
		}
	}
}

func (r *reviewRepository) ApprovedRatings(ctx context.Context, productID *uint) ([]int, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("approved = ? AND hidden = ?", true, false)
	if productID != nil {
		query = query.Where("product_id = ?", *productID)
	}

	var ratings []int
	err := query.Pluck("rating", &ratings).Error
	return ratings, err
}
