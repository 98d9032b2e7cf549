package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
)

func TestDetectDevice(t *testing.T) {
	cases := []struct {
		agent    string
		expected string
	}{
		{agent: "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", expected: models.DeviceTablet},
		{agent: "Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari", expected: models.DeviceMobile},
		{agent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", expected: models.DeviceMobile},
		{agent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0", expected: models.DeviceDesktop},
		{agent: "", expected: models.DeviceDesktop},
	}
	for _, tc := range cases {
		require.Equal(t, tc.expected, DetectDevice(tc.agent), tc.agent)
	}
}

func TestAnalyticsServiceSummary(t *testing.T) {
	db := setupServiceDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewAnalyticsService(repository.NewAnalyticsRepository(db), client, time.Minute, "test", "salt", validator.New(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, db.Create(&[]models.Product{
		{Title: "A", Brand: "Dell", PriceLow: 1, PriceHigh: 2, Stock: 10, Status: models.ProductStatusPublished, Views: 9},
		{Title: "B", Brand: "HP", PriceLow: 1, PriceHigh: 2, Stock: 2, Status: models.ProductStatusDraft, Views: 3},
	}).Error)
	require.NoError(t, db.Create(&[]models.User{
		{UID: "u1", Email: "u1@example.com", Role: models.RoleUser},
		{UID: "a1", Email: "a1@example.com", Role: models.RoleAdmin},
	}).Error)
	require.NoError(t, db.Create(&[]models.Review{
		{UserID: "u1", Rating: 5, Text: "x", Approved: true},
		{UserID: "u1", Rating: 4, Text: "y"},
	}).Error)
	require.NoError(t, db.Create(&models.Lead{Name: "L", Email: "l@example.com", Message: "hello", Status: models.LeadStatusNew}).Error)

	svc.TrackVisit(ctx, dto.VisitRequest{Path: "/"}, VisitMeta{UserAgent: "iPhone", IP: "10.0.0.1"})
	svc.TrackVisit(ctx, dto.VisitRequest{Path: "/products"}, VisitMeta{UserAgent: "iPhone", IP: "10.0.0.1"})
	svc.TrackVisit(ctx, dto.VisitRequest{Path: "/"}, VisitMeta{UserAgent: "Windows", IP: "10.0.0.2"})
	svc.TrackVisit(ctx, dto.VisitRequest{Path: ""}, VisitMeta{UserAgent: "Windows", IP: "10.0.0.3"})

	_, err := svc.Summary(ctx, customer, dto.AnalyticsQuery{})
	require.ErrorIs(t, err, ErrPermissionDenied)

	summary, err := svc.Summary(ctx, admin, dto.AnalyticsQuery{})
	require.NoError(t, err)
	require.False(t, summary.CacheHit)
	require.Equal(t, 7, summary.Days)

	require.EqualValues(t, 2, summary.Products.Total)
	require.EqualValues(t, 1, summary.Products.Published)
	require.EqualValues(t, 1, summary.Products.LowStock)
	require.Equal(t, "A", summary.Products.TopViewed[0].Title)

	require.EqualValues(t, 2, summary.Users.Total)
	require.EqualValues(t, 1, summary.Users.Admins)
	require.EqualValues(t, 2, summary.Users.NewUsers)

	require.EqualValues(t, 2, summary.Reviews.Total)
	require.EqualValues(t, 1, summary.Reviews.Pending)
	require.InDelta(t, 4.5, summary.Reviews.AverageRating, 0.001)

	require.Equal(t, 3, summary.Visitors.Total)
	require.Equal(t, 2, summary.Visitors.UniqueVisitors)
	require.Equal(t, 2, summary.Visitors.Mobile)
	require.Equal(t, 1, summary.Visitors.Desktop)
	require.Len(t, summary.Visitors.Daily, 1)

	require.EqualValues(t, 1, summary.Leads.New)
	require.Len(t, summary.Leads.Recent, 1)

	cached, err := svc.Summary(ctx, admin, dto.AnalyticsQuery{})
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, summary.Products.Total, cached.Products.Total)

	monthly, err := svc.Summary(ctx, admin, dto.AnalyticsQuery{Days: 30})
	require.NoError(t, err)
	require.False(t, monthly.CacheHit)

	_, err = svc.Summary(ctx, admin, dto.AnalyticsQuery{Days: 400})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAnalyticsServiceWithoutCache(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewAnalyticsService(repository.NewAnalyticsRepository(db), nil, time.Minute, "", "", validator.New(), zerolog.Nop())

	first, err := svc.Summary(context.Background(), admin, dto.AnalyticsQuery{Days: 1})
	require.NoError(t, err)
	second, err := svc.Summary(context.Background(), admin, dto.AnalyticsQuery{Days: 1})
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.False(t, second.CacheHit)
	require.Empty(t, second.Products.TopViewed)
}
