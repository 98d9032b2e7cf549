package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
)

func newTestReviewService(t *testing.T) (ReviewService, *models.Product) {
	t.Helper()
	db := setupServiceDB(t)
	require.NoError(t, db.Create(&models.User{UID: customer.UserID, Name: "Asha", Email: "asha@example.com", Role: models.RoleUser}).Error)
	product := &models.Product{Title: "ThinkPad", Brand: "Lenovo", PriceLow: 1, PriceHigh: 2, Status: models.ProductStatusPublished}
	require.NoError(t, db.Create(product).Error)

	svc := NewReviewService(
		repository.NewReviewRepository(db),
		repository.NewUserRepository(db),
		repository.NewProductRepository(db),
		validator.New(),
		zerolog.Nop(),
	)
	return svc, product
}

func TestReviewServiceSubmitAndModerate(t *testing.T) {
	svc, product := newTestReviewService(t)
	ctx := context.Background()

	review, err := svc.Submit(ctx, customer, dto.ReviewCreateRequest{ProductID: &product.ID, Rating: 5, Text: "<b>Great</b> laptop"})
	require.NoError(t, err)
	require.False(t, review.Approved)
	require.Equal(t, "Great laptop", review.Text)
	require.Equal(t, "Asha", review.UserName)

	anonymous, err := svc.Submit(ctx, other, dto.ReviewCreateRequest{Rating: 4, Text: "Fast delivery"})
	require.NoError(t, err)
	require.Equal(t, "Anonymous", anonymous.UserName)

	public, err := svc.List(ctx, dto.ReviewListQuery{})
	require.NoError(t, err)
	require.Empty(t, public)

	pending, err := svc.AdminList(ctx, admin, dto.ReviewListQuery{Status: ReviewStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, svc.Approve(ctx, admin, review.ID))
	require.NoError(t, svc.Hide(ctx, admin, anonymous.ID))
	require.ErrorIs(t, svc.Approve(ctx, customer, review.ID), ErrPermissionDenied)
	require.ErrorIs(t, svc.Approve(ctx, admin, 999), ErrNotFound)

	public, err = svc.List(ctx, dto.ReviewListQuery{})
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.Equal(t, review.ID, public[0].ID)

	hidden, err := svc.AdminList(ctx, admin, dto.ReviewListQuery{Status: ReviewStatusHidden})
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	require.Equal(t, anonymous.ID, hidden[0].ID)

	all, err := svc.AdminList(ctx, admin, dto.ReviewListQuery{Status: ReviewStatusAll})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestReviewServiceSubmitValidation(t *testing.T) {
	svc, product := newTestReviewService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, Identity{}, dto.ReviewCreateRequest{Rating: 5, Text: "ok"})
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Submit(ctx, customer, dto.ReviewCreateRequest{Rating: 6, Text: "ok"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "rating")

	_, err = svc.Submit(ctx, customer, dto.ReviewCreateRequest{Rating: 3, Text: "<script>alert(1)</script>"})
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "text")

	missing := product.ID + 10
	_, err = svc.Submit(ctx, customer, dto.ReviewCreateRequest{ProductID: &missing, Rating: 3, Text: "ok"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReviewServiceOwnership(t *testing.T) {
	svc, _ := newTestReviewService(t)
	ctx := context.Background()

	review, err := svc.Submit(ctx, customer, dto.ReviewCreateRequest{Rating: 4, Text: "Good"})
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, admin, review.ID))

	text := "Good, still working"
	_, err = svc.UpdateOwn(ctx, other, review.ID, dto.ReviewUpdateRequest{Text: &text})
	require.ErrorIs(t, err, ErrPermissionDenied)

	updated, err := svc.UpdateOwn(ctx, customer, review.ID, dto.ReviewUpdateRequest{Text: &text})
	require.NoError(t, err)
	require.Equal(t, text, updated.Text)
	require.False(t, updated.Approved)

	mine, err := svc.Mine(ctx, customer)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.ErrorIs(t, svc.DeleteOwn(ctx, other, review.ID), ErrPermissionDenied)
	require.NoError(t, svc.DeleteOwn(ctx, customer, review.ID))
	require.ErrorIs(t, svc.DeleteOwn(ctx, customer, review.ID), ErrNotFound)
}

func TestReviewServiceStats(t *testing.T) {
	svc, product := newTestReviewService(t)
	ctx := context.Background()

	empty, err := svc.Stats(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, empty.Count)
	require.Zero(t, empty.Average)
	require.Len(t, empty.Distribution, 5)

	for _, rating := range []int{5, 4, 4} {
		review, err := svc.Submit(ctx, customer, dto.ReviewCreateRequest{ProductID: &product.ID, Rating: rating, Text: "ok"})
		require.NoError(t, err)
		require.NoError(t, svc.Approve(ctx, admin, review.ID))
	}
	_, err = svc.Submit(ctx, customer, dto.ReviewCreateRequest{Rating: 1, Text: "pending"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Count)
	require.InDelta(t, 4.3, stats.Average, 0.001)
	require.EqualValues(t, 2, stats.Distribution[4])
	require.EqualValues(t, 1, stats.Distribution[5])
	require.EqualValues(t, 0, stats.Distribution[1])

	byProduct, err := svc.Stats(ctx, &product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, byProduct.Count)
}
