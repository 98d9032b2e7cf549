package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// AnalyticsHandler records storefront visits and serves the admin dashboard.
type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  zerolog.Logger
}

// NewAnalyticsHandler constructs an analytics handler.
func NewAnalyticsHandler(service service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// RegisterVisits wires the visit beacon.
func (h *AnalyticsHandler) RegisterVisits(router fiber.Router) {
	router.Post("", h.visit)
}

// RegisterAdmin wires the dashboard summary.
func (h *AnalyticsHandler) RegisterAdmin(router fiber.Router) {
	router.Get("", middleware.WithAuth(h.summary, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
}

// visit always answers 202; malformed beacons are dropped.
func (h *AnalyticsHandler) visit(c *fiber.Ctx) error {
	var payload dto.VisitRequest
	if err := c.BodyParser(&payload); err != nil {
		requestLogger(h.logger, c).Debug().Err(err).Msg("discarding malformed visit beacon")
		return c.SendStatus(fiber.StatusAccepted)
	}

	meta := service.VisitMeta{UserAgent: c.Get(fiber.HeaderUserAgent), IP: c.IP()}
	h.service.TrackVisit(c.UserContext(), payload, meta)
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *AnalyticsHandler) summary(c *fiber.Ctx) error {
	days, err := parseQueryInt(c, "days")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	summary, err := h.service.Summary(c.UserContext(), identityFrom(c), dto.AnalyticsQuery{Days: days})
	if err != nil {
		return respondError(c, h.logger, err, "failed to load analytics")
	}
	return utils.SendSuccess(c, "analytics summary", summary)
}
