package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// UploadHandler accepts product images as multipart files or base64 JSON.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("", middleware.WithAuth(h.upload, middleware.AuthOptions{RequireUser: true}))
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	var (
		result dto.ImageUploadResponse
		err    error
	)

	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		file, ferr := c.FormFile("file")
		if ferr != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "file is required")
		}
		result, err = h.service.UploadFile(c.UserContext(), identityFrom(c), file, c.FormValue("folder"))
	} else {
		var payload dto.ImageUploadRequest
		if perr := c.BodyParser(&payload); perr != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		result, err = h.service.UploadBase64(c.UserContext(), identityFrom(c), payload)
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrUploadUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "image storage unavailable")
		default:
			return respondError(c, h.logger, err, "upload failed")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upload successful", result)
}
