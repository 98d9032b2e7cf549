package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// ReviewHandler serves testimonials and their moderation.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler constructs a review handler.
func NewReviewHandler(service service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register wires the public review routes.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/stats", h.stats)
	router.Post("", middleware.WithAuth(h.submit, middleware.AuthOptions{RequireUser: true}))
}

// RegisterMine wires the author's own review routes under /me/reviews.
func (h *ReviewHandler) RegisterMine(router fiber.Router) {
	signedIn := middleware.AuthOptions{RequireUser: true}
	router.Get("", middleware.WithAuth(h.mine, signedIn))
	router.Patch("/:id", middleware.WithAuth(h.updateOwn, signedIn))
	router.Delete("/:id", middleware.WithAuth(h.deleteOwn, signedIn))
}

// RegisterAdmin wires moderation routes.
func (h *ReviewHandler) RegisterAdmin(router fiber.Router) {
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}
	router.Get("", middleware.WithAuth(h.adminList, admin))
	router.Post("/:id/approve", middleware.WithAuth(h.approve, admin))
	router.Post("/:id/hide", middleware.WithAuth(h.hide, admin))
	router.Delete("/:id", middleware.WithAuth(h.delete, admin))
}

func (h *ReviewHandler) parseQuery(c *fiber.Ctx) (dto.ReviewListQuery, error) {
	var query dto.ReviewListQuery
	query.SortBy = c.Query("sortBy")
	query.Status = c.Query("status")

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return query, fiber.NewError(fiber.StatusBadRequest, "invalid limit")
	}
	query.Limit = limit

	productID, err := parseOptionalUintQuery(c, "productId")
	if err != nil {
		return query, fiber.NewError(fiber.StatusBadRequest, "invalid productId")
	}
	query.ProductID = productID
	return query, nil
}

func (h *ReviewHandler) list(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return respondError(c, h.logger, err, "invalid query parameters")
	}

	reviews, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load reviews")
	}
	return utils.SendSuccess(c, "reviews retrieved", reviews)
}

func (h *ReviewHandler) stats(c *fiber.Ctx) error {
	productID, err := parseOptionalUintQuery(c, "productId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid productId")
	}

	stats, err := h.service.Stats(c.UserContext(), productID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load review stats")
	}
	return utils.SendSuccess(c, "review stats", stats)
}

func (h *ReviewHandler) submit(c *fiber.Ctx) error {
	var payload dto.ReviewCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	review, err := h.service.Submit(c.UserContext(), identityFrom(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit review")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "review submitted for moderation", review)
}

func (h *ReviewHandler) mine(c *fiber.Ctx) error {
	reviews, err := h.service.Mine(c.UserContext(), identityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load reviews")
	}
	return utils.SendSuccess(c, "reviews retrieved", reviews)
}

func (h *ReviewHandler) updateOwn(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err, "invalid review id")
	}

	var payload dto.ReviewUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	review, err := h.service.UpdateOwn(c.UserContext(), identityFrom(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update review")
	}
	return utils.SendSuccess(c, "review updated", review)
}

func (h *ReviewHandler) deleteOwn(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err, "invalid review id")
	}

	if err := h.service.DeleteOwn(c.UserContext(), identityFrom(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete review")
	}
	return utils.SendSuccess(c, "review deleted", nil)
}

func (h *ReviewHandler) adminList(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return respondError(c, h.logger, err, "invalid query parameters")
	}

	reviews, err := h.service.AdminList(c.UserContext(), identityFrom(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load reviews")
	}
	return utils.SendSuccess(c, "reviews retrieved", reviews)
}

func (h *ReviewHandler) approve(c *fiber.Ctx) error {
	return h.moderate(c, h.service.Approve, "review approved")
}

func (h *ReviewHandler) hide(c *fiber.Ctx) error {
	return h.moderate(c, h.service.Hide, "review hidden")
}

func (h *ReviewHandler) delete(c *fiber.Ctx) error {
	return h.moderate(c, h.service.Delete, "review deleted")
}

func (h *ReviewHandler) moderate(c *fiber.Ctx, action func(ctx context.Context, identity service.Identity, id uint) error, message string) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err, "invalid review id")
	}

	if err := action(c.UserContext(), identityFrom(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to moderate review")
	}
	return utils.SendSuccess(c, message, nil)
}
