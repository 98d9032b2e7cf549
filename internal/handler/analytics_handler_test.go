package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/handler"
	"github.com/mitcstore/mitc-api/internal/service"
)

type mockAnalyticsService struct {
	visits    []dto.VisitRequest
	meta      service.VisitMeta
	lastQuery dto.AnalyticsQuery
}

func (m *mockAnalyticsService) TrackVisit(_ context.Context, req dto.VisitRequest, meta service.VisitMeta) {
	m.visits = append(m.visits, req)
	m.meta = meta
}

func (m *mockAnalyticsService) Summary(_ context.Context, identity service.Identity, query dto.AnalyticsQuery) (dto.AnalyticsSummaryResponse, error) {
	if !identity.IsAdmin() {
		return dto.AnalyticsSummaryResponse{}, service.ErrPermissionDenied
	}
	m.lastQuery = query
	return dto.AnalyticsSummaryResponse{Days: query.Days}, nil
}

func newAnalyticsApp(svc service.AnalyticsService, uid, role string) *fiber.App {
	app := fiber.New()
	h := handler.NewAnalyticsHandler(svc, zerolog.Nop())
	h.RegisterVisits(app.Group("/api/v1/visits", asUser(uid, role)))
	h.RegisterAdmin(app.Group("/api/v1/admin/analytics", asUser(uid, role)))
	return app
}

func TestAnalyticsHandlerVisitAccepted(t *testing.T) {
	svc := &mockAnalyticsService{}
	app := newAnalyticsApp(svc, "", "")

	req := jsonRequest(t, http.MethodPost, "/api/v1/visits", dto.VisitRequest{Path: "/products/4"})
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone)")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, svc.visits, 1)
	require.Equal(t, "/products/4", svc.visits[0].Path)
	require.Equal(t, "Mozilla/5.0 (iPhone)", svc.meta.UserAgent)

	malformed := httptest.NewRequest(http.MethodPost, "/api/v1/visits", bytes.NewBufferString("{"))
	malformed.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(malformed, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, svc.visits, 1)
}

func TestAnalyticsHandlerSummary(t *testing.T) {
	svc := &mockAnalyticsService{}

	resp, _ := do(t, newAnalyticsApp(svc, "a1", "admin"), jsonRequest(t, http.MethodGet, "/api/v1/admin/analytics?days=30", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 30, svc.lastQuery.Days)

	resp, _ = do(t, newAnalyticsApp(svc, "a1", "admin"), jsonRequest(t, http.MethodGet, "/api/v1/admin/analytics?days=week", nil))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, newAnalyticsApp(svc, "u1", "user"), jsonRequest(t, http.MethodGet, "/api/v1/admin/analytics", nil))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
