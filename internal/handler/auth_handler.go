package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// AuthHandler exposes sign-up, sign-in and the caller's profile.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
	// revealResetTokens returns reset tokens in the response instead of only logging them.
	revealResetTokens bool
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(service service.AuthService, revealResetTokens bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service:           service,
		logger:            logger.With().Str("component", "auth_handler").Logger(),
		revealResetTokens: revealResetTokens,
	}
}

// RegisterPublic wires the unauthenticated auth routes.
func (h *AuthHandler) RegisterPublic(router fiber.Router) {
	router.Post("/signup", h.signUp)
	router.Post("/login", h.signIn)
	router.Post("/google", h.google)
	router.Post("/password-reset", h.requestReset)
	router.Post("/password-reset/confirm", h.confirmReset)
}

// RegisterSession wires auth routes that need a valid token.
func (h *AuthHandler) RegisterSession(router fiber.Router) {
	router.Post("/logout", middleware.WithAuth(h.signOut, middleware.AuthOptions{RequireUser: true}))
	router.Post("/bootstrap-admin", middleware.WithAuth(h.bootstrapAdmin, middleware.AuthOptions{RequireUser: true}))
}

// RegisterMe wires the profile routes under /me.
func (h *AuthHandler) RegisterMe(router fiber.Router) {
	signedIn := middleware.AuthOptions{RequireUser: true}
	router.Get("", middleware.WithAuth(h.me, signedIn))
	router.Patch("", middleware.WithAuth(h.updateProfile, signedIn))
	router.Get("/favorites", middleware.WithAuth(h.favorites, signedIn))
	router.Post("/likes/:productId", middleware.WithAuth(h.like, signedIn))
	router.Delete("/likes/:productId", middleware.WithAuth(h.unlike, signedIn))
}

func (h *AuthHandler) signUp(c *fiber.Ctx) error {
	var payload dto.SignUpRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SignUp(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create account")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "account created", response)
}

func (h *AuthHandler) signIn(c *fiber.Ctx) error {
	var payload dto.SignInRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SignIn(c.UserContext(), payload)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid email or password")
		}
		return respondError(c, h.logger, err, "failed to sign in")
	}
	return utils.SendSuccess(c, "signed in", response)
}

func (h *AuthHandler) google(c *fiber.Ctx) error {
	var payload dto.GoogleSignInRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SignInWithGoogle(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to sign in with google")
	}
	return utils.SendSuccess(c, "signed in", response)
}

func (h *AuthHandler) signOut(c *fiber.Ctx) error {
	tokenID, expiresAt := middleware.TokenID(c)
	if err := h.service.SignOut(c.UserContext(), identityFrom(c).UserID, tokenID, expiresAt); err != nil {
		return respondError(c, h.logger, err, "failed to sign out")
	}
	return utils.SendSuccess(c, "signed out", nil)
}

func (h *AuthHandler) requestReset(c *fiber.Ctx) error {
	var payload dto.PasswordResetRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	token, err := h.service.RequestPasswordReset(c.UserContext(), payload)
	if err != nil {
		if errors.Is(err, service.ErrResetUnavailable) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, "password reset unavailable")
		}
		return respondError(c, h.logger, err, "failed to start password reset")
	}

	var data interface{}
	if h.revealResetTokens && token != "" {
		data = fiber.Map{"token": token}
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "if the account exists a reset link was sent", data)
}

func (h *AuthHandler) confirmReset(c *fiber.Ctx) error {
	var payload dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.ConfirmPasswordReset(c.UserContext(), payload); err != nil {
		if errors.Is(err, service.ErrResetUnavailable) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, "password reset unavailable")
		}
		return respondError(c, h.logger, err, "failed to reset password")
	}
	return utils.SendSuccess(c, "password updated", nil)
}

func (h *AuthHandler) bootstrapAdmin(c *fiber.Ctx) error {
	response, err := h.service.BootstrapAdmin(c.UserContext(), identityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to bootstrap admin")
	}
	return utils.SendSuccess(c, "admin role granted", response)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	response, err := h.service.Me(c.UserContext(), identityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load profile")
	}
	return utils.SendSuccess(c, "profile retrieved", response)
}

func (h *AuthHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.ProfileUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.UpdateProfile(c.UserContext(), identityFrom(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update profile")
	}
	return utils.SendSuccess(c, "profile updated", response)
}

func (h *AuthHandler) favorites(c *fiber.Ctx) error {
	products, err := h.service.Favorites(c.UserContext(), identityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load favorites")
	}
	return utils.SendSuccess(c, "favorites retrieved", products)
}

func (h *AuthHandler) like(c *fiber.Ctx) error {
	productID, err := parseUintParam(c, "productId")
	if err != nil {
		return respondError(c, h.logger, err, "invalid product id")
	}

	response, err := h.service.LikeProduct(c.UserContext(), identityFrom(c), productID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to like product")
	}
	return utils.SendSuccess(c, "product liked", response)
}

func (h *AuthHandler) unlike(c *fiber.Ctx) error {
	productID, err := parseUintParam(c, "productId")
	if err != nil {
		return respondError(c, h.logger, err, "invalid product id")
	}

	response, err := h.service.UnlikeProduct(c.UserContext(), identityFrom(c), productID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to unlike product")
	}
	return utils.SendSuccess(c, "product unliked", response)
}
