package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// LeadHandler handles contact form submissions.
type LeadHandler struct {
	service service.LeadService
	logger  zerolog.Logger
}

// NewLeadHandler constructs a lead handler.
func NewLeadHandler(service service.LeadService, logger zerolog.Logger) *LeadHandler {
	return &LeadHandler{
		service: service,
		logger:  logger.With().Str("component", "lead_handler").Logger(),
	}
}

// Register wires the public contact form.
func (h *LeadHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
}

// RegisterAdmin wires the lead inbox.
func (h *LeadHandler) RegisterAdmin(router fiber.Router) {
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}
	router.Get("", middleware.WithAuth(h.list, admin))
	router.Patch("/:id/status", middleware.WithAuth(h.updateStatus, admin))
}

func (h *LeadHandler) submit(c *fiber.Ctx) error {
	var payload dto.LeadCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	lead, err := h.service.Submit(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit contact form")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "thanks, we will be in touch", lead)
}

func (h *LeadHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	leads, err := h.service.List(c.UserContext(), identityFrom(c), c.Query("status"), limit)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load leads")
	}
	return utils.SendSuccess(c, "leads retrieved", leads)
}

func (h *LeadHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err, "invalid lead id")
	}

	var payload dto.LeadStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	lead, err := h.service.UpdateStatus(c.UserContext(), identityFrom(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update lead")
	}
	return utils.SendSuccess(c, "lead updated", lead)
}
