package dto

import (
	"time"

	"github.com/mitcstore/mitc-api/internal/models"
)

// ReviewCreateRequest submits a testimonial for moderation.
type ReviewCreateRequest struct {
	ProductID *uint  `json:"product_id"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Text      string `json:"text" validate:"required,min=1,max=512"`
}

// ReviewUpdateRequest lets the author edit their review.
type ReviewUpdateRequest struct {
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Text   *string `json:"text" validate:"omitempty,min=1,max=512"`
}

// ReviewListQuery filters review listings.
type ReviewListQuery struct {
	ProductID *uint  `query:"productId"`
	SortBy    string `query:"sortBy" validate:"omitempty,oneof=rating newest"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Status    string `query:"status" validate:"omitempty,oneof=pending approved hidden all"`
}

// ReviewResponse is the serialized review.
type ReviewResponse struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	ProductID *uint     `json:"product_id,omitempty"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	Approved  bool      `json:"approved"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewStatsResponse summarises approved reviews.
type ReviewStatsResponse struct {
	Count        int           `json:"count"`
	Average      float64       `json:"average"`
	Distribution map[int]int64 `json:"distribution"`
}

// NewReviewResponse converts a review model into a DTO.
func NewReviewResponse(review models.Review) ReviewResponse {
	return ReviewResponse{
		ID:        review.ID,
		UserID:    review.UserID,
		UserName:  review.UserName,
		ProductID: review.ProductID,
		Rating:    review.Rating,
		Text:      review.Text,
		Approved:  review.Approved,
		Hidden:    review.Hidden,
		CreatedAt: review.CreatedAt,
	}
}

// NewReviewResponseSlice converts reviews into DTOs.
func NewReviewResponseSlice(reviews []models.Review) []ReviewResponse {
	out := make([]ReviewResponse, 0, len(reviews))
	for _, review := range reviews {
		out = append(out, NewReviewResponse(review))
	}
	return out
}
