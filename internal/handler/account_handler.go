package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// AccountHandler serves self-service account deletion and admin user management.
type AccountHandler struct {
	accounts service.AccountService
	auth     service.AuthService
	logger   zerolog.Logger
}

// NewAccountHandler constructs an account handler.
func NewAccountHandler(accounts service.AccountService, auth service.AuthService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		auth:     auth,
		logger:   logger.With().Str("component", "account_handler").Logger(),
	}
}

// RegisterMe wires POST /me/delete.
func (h *AccountHandler) RegisterMe(router fiber.Router) {
	router.Post("/delete", middleware.WithAuth(h.deleteSelf, middleware.AuthOptions{RequireUser: true}))
}

// RegisterAdmin wires user management under /admin/users.
func (h *AccountHandler) RegisterAdmin(router fiber.Router) {
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}
	router.Get("", middleware.WithAuth(h.listUsers, admin))
	router.Patch("/:uid/role", middleware.WithAuth(h.changeRole, admin))
	router.Delete("/:uid", middleware.WithAuth(h.deleteUser, admin))
}

func (h *AccountHandler) deleteSelf(c *fiber.Ctx) error {
	var payload dto.AccountDeleteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	identity := identityFrom(c)
	result, err := h.accounts.RequestDeletion(c.UserContext(), identity, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to delete account")
	}

	if payload.DeleteAuthUser {
		tokenID, expiresAt := middleware.TokenID(c)
		if tokenID != "" {
			if err := h.auth.SignOut(c.UserContext(), identity.UserID, tokenID, expiresAt); err != nil {
				requestLogger(h.logger, c).Warn().Err(err).Msg("failed to revoke token after account deletion")
			}
		}
	}

	message := "account deleted"
	if len(result.FailedThreads) > 0 {
		message = "account deleted with incomplete chat cleanup"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *AccountHandler) listUsers(c *fiber.Ctx) error {
	var query dto.UserListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	users, err := h.auth.ListUsers(c.UserContext(), identityFrom(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load users")
	}
	return utils.SendSuccess(c, "users retrieved", users)
}

func (h *AccountHandler) changeRole(c *fiber.Ctx) error {
	var payload dto.RoleUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.auth.ChangeRole(c.UserContext(), identityFrom(c), c.Params("uid"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to change role")
	}
	return utils.SendSuccess(c, "role updated", user)
}

func (h *AccountHandler) deleteUser(c *fiber.Ctx) error {
	result, err := h.accounts.DeleteUser(c.UserContext(), identityFrom(c), c.Params("uid"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to delete user")
	}
	return utils.SendSuccess(c, "user deleted", result)
}
