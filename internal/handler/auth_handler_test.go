package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/handler"
	"github.com/mitcstore/mitc-api/internal/service"
)

type mockAuthService struct {
	service.AuthService

	resetErr   error
	likedID    uint
	profileFor service.Identity
}

func (m *mockAuthService) SignUp(_ context.Context, req dto.SignUpRequest) (dto.AuthResponse, error) {
	if len(req.Password) < 8 {
		return dto.AuthResponse{}, &service.ValidationError{Fields: service.FieldErrors{"password": {"failed min=8 validation"}}}
	}
	return dto.AuthResponse{Token: "signed", ExpiresAt: time.Now().Add(time.Hour), User: dto.UserResponse{UID: "u1", Email: req.Email, Role: "user"}}, nil
}

func (m *mockAuthService) SignIn(_ context.Context, req dto.SignInRequest) (dto.AuthResponse, error) {
	if req.Password != "Sup3rSecret" {
		return dto.AuthResponse{}, service.ErrUnauthenticated
	}
	return dto.AuthResponse{Token: "signed", User: dto.UserResponse{UID: "u1", Email: req.Email}}, nil
}

func (m *mockAuthService) RequestPasswordReset(_ context.Context, _ dto.PasswordResetRequest) (string, error) {
	if m.resetErr != nil {
		return "", m.resetErr
	}
	return "reset-token", nil
}

func (m *mockAuthService) Me(_ context.Context, identity service.Identity) (dto.UserResponse, error) {
	m.profileFor = identity
	return dto.UserResponse{UID: identity.UserID, Role: identity.Role}, nil
}

func (m *mockAuthService) LikeProduct(_ context.Context, identity service.Identity, productID uint) (dto.UserResponse, error) {
	m.likedID = productID
	return dto.UserResponse{UID: identity.UserID, LikedProducts: []uint{productID}}, nil
}

func newAuthApp(svc service.AuthService, reveal bool, uid, role string) *fiber.App {
	app := fiber.New()
	h := handler.NewAuthHandler(svc, reveal, zerolog.Nop())
	h.RegisterPublic(app.Group("/api/v1/auth"))
	h.RegisterMe(app.Group("/api/v1/me", asUser(uid, role)))
	return app
}

func TestAuthHandlerSignUpAndSignIn(t *testing.T) {
	app := newAuthApp(&mockAuthService{}, false, "", "")

	resp, env := do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/auth/signup", dto.SignUpRequest{Name: "Asha", Email: "asha@example.com", Password: "Sup3rSecret"}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	var auth dto.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.Equal(t, "signed", auth.Token)
	require.Equal(t, "u1", auth.User.UID)

	resp, env = do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/auth/signup", dto.SignUpRequest{Name: "Asha", Email: "asha@example.com", Password: "short"}))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Contains(t, env.Details, "password")

	resp, env = do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", dto.SignInRequest{Email: "asha@example.com", Password: "wrong"}))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid email or password", env.Message)
}

func TestAuthHandlerPasswordResetRevealsTokenOnlyWhenEnabled(t *testing.T) {
	hidden := newAuthApp(&mockAuthService{}, false, "", "")
	resp, env := do(t, hidden, jsonRequest(t, http.MethodPost, "/api/v1/auth/password-reset", dto.PasswordResetRequest{Email: "asha@example.com"}))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.True(t, env.Success)
	require.NotContains(t, string(env.Data), "reset-token")

	revealed := newAuthApp(&mockAuthService{}, true, "", "")
	resp, env = do(t, revealed, jsonRequest(t, http.MethodPost, "/api/v1/auth/password-reset", dto.PasswordResetRequest{Email: "asha@example.com"}))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Contains(t, string(env.Data), "reset-token")

	unavailable := newAuthApp(&mockAuthService{resetErr: service.ErrResetUnavailable}, true, "", "")
	resp, _ = do(t, unavailable, jsonRequest(t, http.MethodPost, "/api/v1/auth/password-reset", dto.PasswordResetRequest{Email: "asha@example.com"}))
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuthHandlerProfileRoutesRequireUser(t *testing.T) {
	anonymous := newAuthApp(&mockAuthService{}, false, "", "")
	resp, _ := do(t, anonymous, jsonRequest(t, http.MethodGet, "/api/v1/me", nil))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	svc := &mockAuthService{}
	app := newAuthApp(svc, false, "u1", "user")

	resp, env := do(t, app, jsonRequest(t, http.MethodGet, "/api/v1/me", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
	require.Equal(t, service.Identity{UserID: "u1", Role: "user"}, svc.profileFor)

	resp, _ = do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/me/likes/42", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(42), svc.likedID)

	resp, _ = do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/me/likes/0", nil))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
