package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
)

// Review moderation filters accepted by AdminList.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusHidden   = "hidden"
	ReviewStatusAll      = "all"
)

// ReviewService handles testimonials and their moderation.
type ReviewService interface {
	Submit(ctx context.Context, identity Identity, req dto.ReviewCreateRequest) (dto.ReviewResponse, error)
	List(ctx context.Context, query dto.ReviewListQuery) ([]dto.ReviewResponse, error)
	Mine(ctx context.Context, identity Identity) ([]dto.ReviewResponse, error)
	UpdateOwn(ctx context.Context, identity Identity, id uint, req dto.ReviewUpdateRequest) (dto.ReviewResponse, error)
	DeleteOwn(ctx context.Context, identity Identity, id uint) error
	AdminList(ctx context.Context, identity Identity, query dto.ReviewListQuery) ([]dto.ReviewResponse, error)
	Approve(ctx context.Context, identity Identity, id uint) error
	Hide(ctx context.Context, identity Identity, id uint) error
	Delete(ctx context.Context, identity Identity, id uint) error
	Stats(ctx context.Context, productID *uint) (dto.ReviewStatsResponse, error)
}

type reviewService struct {
	reviews   repository.ReviewRepository
	users     repository.UserRepository
	products  repository.ProductRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewReviewService constructs the review service.
func NewReviewService(reviews repository.ReviewRepository, users repository.UserRepository, products repository.ProductRepository, validate *validator.Validate, logger zerolog.Logger) ReviewService {
	return &reviewService{
		reviews:   reviews,
		users:     users,
		products:  products,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "review_service").Logger(),
	}
}

// Submit stores a review pending moderation.
func (s *reviewService) Submit(ctx context.Context, identity Identity, req dto.ReviewCreateRequest) (dto.ReviewResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return dto.ReviewResponse{}, err
	}
	req.Text = strings.TrimSpace(s.sanitizer.Sanitize(req.Text))
	if err := s.validator.Struct(req); err != nil {
		return dto.ReviewResponse{}, validationFailed(err)
	}
	if req.ProductID != nil {
		if _, err := s.products.GetByID(ctx, *req.ProductID); err != nil {
			return dto.ReviewResponse{}, notFoundOr(err, "product")
		}
	}

	review := models.Review{
		UserID:    identity.UserID,
		UserName:  s.displayName(ctx, identity.UserID),
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Text:      req.Text,
	}
	if err := s.reviews.Create(ctx, &review); err != nil {
		return dto.ReviewResponse{}, fmt.Errorf("create review: %w", err)
	}
	s.logger.Info().Uint("review_id", review.ID).Str("user_id", identity.UserID).Msg("review submitted")
	return dto.NewReviewResponse(review), nil
}

// List returns approved, visible reviews.
func (s *reviewService) List(ctx context.Context, query dto.ReviewListQuery) ([]dto.ReviewResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, validationFailed(err)
	}
	approved := true
	reviews, err := s.reviews.List(ctx, repository.ReviewFilter{
		Approved:  &approved,
		ProductID: query.ProductID,
		SortBy:    query.SortBy,
		Limit:     query.Limit,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewReviewResponseSlice(reviews), nil
}

func (s *reviewService) Mine(ctx context.Context, identity Identity) ([]dto.ReviewResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.List(ctx, repository.ReviewFilter{UserID: identity.UserID, IncludeHidden: true})
	if err != nil {
		return nil, err
	}
	return dto.NewReviewResponseSlice(reviews), nil
}

// UpdateOwn edits the caller's review and sends it back to moderation.
func (s *reviewService) UpdateOwn(ctx context.Context, identity Identity, id uint, req dto.ReviewUpdateRequest) (dto.ReviewResponse, error) {
	review, err := s.owned(ctx, identity, id)
	if err != nil {
		return dto.ReviewResponse{}, err
	}
	if req.Text != nil {
		text := strings.TrimSpace(s.sanitizer.Sanitize(*req.Text))
		req.Text = &text
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ReviewResponse{}, validationFailed(err)
	}

	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Text != nil {
		review.Text = *req.Text
	}
	review.Approved = false
	if err := s.reviews.Save(ctx, &review); err != nil {
		return dto.ReviewResponse{}, err
	}
	return dto.NewReviewResponse(review), nil
}

func (s *reviewService) DeleteOwn(ctx context.Context, identity Identity, id uint) error {
	if _, err := s.owned(ctx, identity, id); err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return notFoundOr(err, "review")
	}
	return nil
}

func (s *reviewService) AdminList(ctx context.Context, identity Identity, query dto.ReviewListQuery) ([]dto.ReviewResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, validationFailed(err)
	}

	filter := repository.ReviewFilter{ProductID: query.ProductID, SortBy: query.SortBy, Limit: query.Limit}
	yes, no := true, false
	switch query.Status {
	case ReviewStatusPending:
		filter.Approved = &no
		filter.Hidden = &no
	case ReviewStatusApproved:
		filter.Approved = &yes
	case ReviewStatusHidden:
		filter.Hidden = &yes
	default:
		filter.IncludeHidden = true
	}

	reviews, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewReviewResponseSlice(reviews), nil
}

func (s *reviewService) Approve(ctx context.Context, identity Identity, id uint) error {
	return s.moderate(ctx, identity, id, true, false)
}

func (s *reviewService) Hide(ctx context.Context, identity Identity, id uint) error {
	return s.moderate(ctx, identity, id, false, true)
}

func (s *reviewService) Delete(ctx context.Context, identity Identity, id uint) error {
	if err := requireAdmin(identity); err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return notFoundOr(err, "review")
	}
	s.logger.Info().Uint("review_id", id).Str("actor", identity.UserID).Msg("review deleted")
	return nil
}

// Stats summarises approved reviews, optionally for one product.
func (s *reviewService) Stats(ctx context.Context, productID *uint) (dto.ReviewStatsResponse, error) {
	ratings, err := s.reviews.ApprovedRatings(ctx, productID)
	if err != nil {
		return dto.ReviewStatsResponse{}, err
	}

	stats := dto.ReviewStatsResponse{
		Count:        len(ratings),
		Distribution: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
	if len(ratings) == 0 {
		return stats, nil
	}

	sum := 0
	for _, rating := range ratings {
		sum += rating
		if rating >= 1 && rating <= 5 {
			stats.Distribution[rating]++
		}
	}
	stats.Average = roundOne(float64(sum) / float64(len(ratings)))
	return stats, nil
}

func (s *reviewService) moderate(ctx context.Context, identity Identity, id uint, approved, hidden bool) error {
	if err := requireAdmin(identity); err != nil {
		return err
	}
	if err := s.reviews.SetModeration(ctx, id, approved, hidden); err != nil {
		return notFoundOr(err, "review")
	}
	s.logger.Info().Uint("review_id", id).Bool("approved", approved).Bool("hidden", hidden).Msg("review moderated")
	return nil
}

func (s *reviewService) owned(ctx context.Context, identity Identity, id uint) (models.Review, error) {
	if err := requireIdentity(identity); err != nil {
		return models.Review{}, err
	}
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return models.Review{}, notFoundOr(err, "review")
	}
	if review.UserID != identity.UserID && !identity.IsAdmin() {
		return models.Review{}, ErrPermissionDenied
	}
	return review, nil
}

func (s *reviewService) displayName(ctx context.Context, uid string) string {
	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("user_id", uid).Msg("failed to load reviewer profile")
		}
		return "Anonymous"
	}
	if user.Name == "" {
		return "Anonymous"
	}
	return user.Name
}
