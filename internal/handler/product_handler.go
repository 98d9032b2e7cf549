package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// ProductHandler serves the catalogue.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler constructs a product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("component", "product_handler").Logger(),
	}
}

// Register wires the public catalogue routes.
func (h *ProductHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/search", h.search)
	router.Get("/:id", h.get)
	router.Post("/:id/view", h.view)
}

// RegisterAdmin wires catalogue management routes.
func (h *ProductHandler) RegisterAdmin(router fiber.Router) {
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}
	router.Get("", middleware.WithAuth(h.adminList, admin))
	router.Post("", middleware.WithAuth(h.create, admin))
	router.Put("/:id", middleware.WithAuth(h.update, admin))
	router.Delete("/:id", middleware.WithAuth(h.delete, admin))
}

func (h *ProductHandler) list(c *fiber.Ctx) error {
	var query dto.ProductListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	products, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load products")
	}
	return utils.OK(c, products, "products retrieved", fiber.Map{"count": len(products), "sortBy": query.SortBy})
}

func (h *ProductHandler) adminList(c *fiber.Ctx) error {
	var query dto.ProductListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	products, err := h.service.AdminList(c.UserContext(), identityFrom(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load products")
	}
	return utils.SendSuccess(c, "products retrieved", products)
}

func (h *ProductHandler) search(c *fiber.Ctx) error {
	var query dto.ProductSearchQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	products, err := h.service.Search(c.UserContext(), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to search products")
	}
	return utils.SendSuccess(c, "products retrieved", products)
}

func (h *ProductHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err, "invalid product id")
	}

	product, err := h.service.Get(c.UserContext(), identityFrom(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load product")
	}
	return utils.SendSuccess(c, "product retrieved", product)
}

// view records a product page view. Tracking failures are logged by the service.
func (h *ProductHandler) view(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err, "invalid product id")
	}
	h.service.TrackView(c.UserContext(), id)
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "view recorded", nil)
}

func (h *ProductHandler) create(c *fiber.Ctx) error {
	var payload dto.ProductCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	product, err := h.service.Create(c.UserContext(), identityFrom(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create product")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "product created", product)
}

func (h *ProductHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err, "invalid product id")
	}

	var payload dto.ProductUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	product, err := h.service.Update(c.UserContext(), identityFrom(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update product")
	}
	return utils.SendSuccess(c, "product updated", product)
}

func (h *ProductHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err, "invalid product id")
	}

	if err := h.service.Delete(c.UserContext(), identityFrom(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete product")
	}
	return utils.SendSuccess(c, "product deleted", nil)
}
