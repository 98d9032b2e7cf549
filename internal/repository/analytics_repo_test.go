package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/models"
)

func TestAnalyticsRepositoryCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnalyticsRepository(db)
	ctx := context.Background()

	products := []models.Product{
		{Title: "A", Brand: "Dell", PriceLow: 1, PriceHigh: 2, Stock: 0, Status: models.ProductStatusPublished, Views: 3},
		{Title: "B", Brand: "Dell", PriceLow: 1, PriceHigh: 2, Stock: 4, Status: models.ProductStatusPublished, Views: 9},
		{Title: "C", Brand: "HP", PriceLow: 1, PriceHigh: 2, Stock: 30, Status: models.ProductStatusDraft, Views: 1},
	}
	require.NoError(t, db.Create(&products).Error)

	counts, err := repo.ProductCounts(ctx, models.LowStockThreshold)
	require.NoError(t, err)
	require.Equal(t, ProductCounts{Total: 3, Published: 2, Draft: 1, LowStock: 1, OutOfStock: 1}, counts)

	top, err := repo.TopViewedProducts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "B", top[0].Title)

	reviews := []models.Review{
		{UserID: "u1", Rating: 4, Text: "x", Approved: true},
		{UserID: "u2", Rating: 5, Text: "y", Approved: true},
		{UserID: "u3", Rating: 1, Text: "z"},
	}
	require.NoError(t, db.Create(&reviews).Error)

	reviewCounts, err := repo.ReviewCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), reviewCounts.Total)
	require.Equal(t, int64(2), reviewCounts.Approved)
	require.Equal(t, int64(1), reviewCounts.Pending)
	require.InDelta(t, 10.0/3.0, reviewCounts.AverageRating, 0.001)
}

func TestAnalyticsRepositoryEmptyTables(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnalyticsRepository(db)
	ctx := context.Background()

	counts, err := repo.ProductCounts(ctx, models.LowStockThreshold)
	require.NoError(t, err)
	require.Zero(t, counts.Total)

	reviewCounts, err := repo.ReviewCounts(ctx)
	require.NoError(t, err)
	require.Zero(t, reviewCounts.AverageRating)

	leads, err := repo.LeadCountsSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, leads.Total)
}

func TestAnalyticsRepositoryUsersVisitsLeads(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAnalyticsRepository(db)
	ctx := context.Background()
	now := time.Now()

	users := []models.User{
		{UID: "a1", Email: "a1@example.com", Role: models.RoleAdmin, CreatedAt: now.AddDate(0, 0, -40)},
		{UID: "u1", Email: "u1@example.com", Role: models.RoleUser, CreatedAt: now.AddDate(0, 0, -2)},
		{UID: "u2", Email: "u2@example.com", Role: models.RoleUser, CreatedAt: now.AddDate(0, 0, -1)},
	}
	require.NoError(t, db.Create(&users).Error)

	roles, err := repo.UserRoleCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), roles[models.RoleAdmin])
	require.Equal(t, int64(2), roles[models.RoleUser])

	fresh, err := repo.CountUsersSince(ctx, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Equal(t, int64(2), fresh)

	require.NoError(t, repo.CreateVisit(ctx, &models.Visit{Path: "/", DeviceType: models.DeviceMobile, IPHash: "h1", Day: now.Format("2006-01-02")}))
	visits, err := repo.VisitsSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, visits, 1)

	leads := []models.Lead{
		{Name: "A", Email: "a@example.com", Message: "quote", Status: models.LeadStatusNew},
		{Name: "B", Email: "b@example.com", Message: "bulk", Status: models.LeadStatusConverted},
	}
	require.NoError(t, db.Create(&leads).Error)

	leadCounts, err := repo.LeadCountsSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, LeadCounts{Total: 2, New: 1, Converted: 1}, leadCounts)

	recent, err := repo.RecentLeads(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "B", recent[0].Name)
}
