package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/handler"
	"github.com/mitcstore/mitc-api/internal/service"
)

type mockProductService struct {
	getErr       error
	lastIdentity service.Identity
	lastQuery    dto.ProductListQuery
	viewed       []uint
}

func (m *mockProductService) List(_ context.Context, query dto.ProductListQuery) ([]dto.ProductResponse, error) {
	m.lastQuery = query
	return []dto.ProductResponse{{ID: 1, Title: "ThinkPad X1"}}, nil
}

func (m *mockProductService) AdminList(_ context.Context, identity service.Identity, query dto.ProductListQuery) ([]dto.ProductResponse, error) {
	m.lastIdentity = identity
	return []dto.ProductResponse{}, nil
}

func (m *mockProductService) Search(context.Context, dto.ProductSearchQuery) ([]dto.ProductResponse, error) {
	return []dto.ProductResponse{}, nil
}

func (m *mockProductService) Get(_ context.Context, identity service.Identity, id uint) (dto.ProductResponse, error) {
	m.lastIdentity = identity
	if m.getErr != nil {
		return dto.ProductResponse{}, m.getErr
	}
	return dto.ProductResponse{ID: id}, nil
}

func (m *mockProductService) Create(context.Context, service.Identity, dto.ProductCreateRequest) (dto.ProductResponse, error) {
	return dto.ProductResponse{ID: 9}, nil
}

func (m *mockProductService) Update(_ context.Context, _ service.Identity, id uint, _ dto.ProductUpdateRequest) (dto.ProductResponse, error) {
	return dto.ProductResponse{ID: id}, nil
}

func (m *mockProductService) Delete(context.Context, service.Identity, uint) error { return nil }

func (m *mockProductService) TrackView(_ context.Context, id uint) {
	m.viewed = append(m.viewed, id)
}

func newProductApp(svc service.ProductService, uid, role string) *fiber.App {
	app := fiber.New()
	h := handler.NewProductHandler(svc, zerolog.Nop())
	h.Register(app.Group("/api/v1/products", asUser(uid, role)))
	h.RegisterAdmin(app.Group("/api/v1/admin/products", asUser(uid, role)))
	return app
}

func TestProductHandlerListParsesQuery(t *testing.T) {
	svc := &mockProductService{}
	app := newProductApp(svc, "", "")

	resp, env := do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/products?brand=Lenovo&sortBy=price-asc&limit=5", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
	require.Equal(t, dto.ProductListQuery{Brand: "Lenovo", SortBy: "price-asc", Limit: 5}, svc.lastQuery)
	require.Equal(t, "price-asc", env.Meta["sortBy"])
	require.Contains(t, env.Meta, "count")
}

func TestProductHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "not found", err: fmt.Errorf("product: %w", service.ErrNotFound), status: fiber.StatusNotFound},
		{name: "denied", err: service.ErrPermissionDenied, status: fiber.StatusForbidden},
		{name: "unauthenticated", err: service.ErrUnauthenticated, status: fiber.StatusUnauthorized},
		{name: "rate limited", err: service.ErrRateLimited, status: fiber.StatusTooManyRequests},
		{name: "internal", err: errors.New("connection reset"), status: fiber.StatusInternalServerError, message: "failed to load product"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newProductApp(&mockProductService{getErr: tc.err}, "u1", "user")
			resp, env := do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/products/3", nil))
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, env.Success)
			if tc.message != "" {
				require.Equal(t, tc.message, env.Message)
			}
		})
	}
}

func TestProductHandlerValidationDetails(t *testing.T) {
	validation := &service.ValidationError{Fields: service.FieldErrors{"price": {"Minimum price must be greater than 0"}}}
	app := newProductApp(&mockProductService{getErr: validation}, "", "")

	resp, env := do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/products/3", nil))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation failed", env.Message)
	require.Equal(t, []string{"Minimum price must be greater than 0"}, env.Details["price"])
}

func TestProductHandlerInvalidID(t *testing.T) {
	app := newProductApp(&mockProductService{}, "", "")
	resp, _ := do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/products/abc", nil))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProductHandlerViewAccepted(t *testing.T) {
	svc := &mockProductService{}
	app := newProductApp(svc, "", "")

	resp, _ := do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/products/4/view", nil))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Equal(t, []uint{4}, svc.viewed)
}

func TestProductHandlerAdminRoutesGuarded(t *testing.T) {
	resp, _ := do(t, newProductApp(&mockProductService{}, "", ""), jsonRequest(t, http.MethodPost, "/api/v1/admin/products", map[string]string{"title": "x"}))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, newProductApp(&mockProductService{}, "u1", "user"), jsonRequest(t, http.MethodPost, "/api/v1/admin/products", map[string]string{"title": "x"}))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, newProductApp(&mockProductService{}, "a1", "admin"), jsonRequest(t, http.MethodPost, "/api/v1/admin/products", map[string]string{"title": "x"}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}
