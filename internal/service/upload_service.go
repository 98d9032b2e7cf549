package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/observability"
	"github.com/mitcstore/mitc-api/internal/repository"
	"github.com/mitcstore/mitc-api/internal/utils"
	"github.com/mitcstore/mitc-api/pkg/cloudinary"
	"github.com/mitcstore/mitc-api/pkg/imagepipe"
)

const imageProvider = "cloudinary"

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = fmt.Errorf("%w: file exceeds maximum allowed size", ErrInvalidArgument)
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = fmt.Errorf("%w: only jpeg, png and webp images are allowed", ErrInvalidArgument)
	// ErrUploadUnavailable indicates no image storage is configured.
	ErrUploadUnavailable = errors.New("image storage not configured")
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// ImageStorage uploads a data URI to the image CDN.
type ImageStorage interface {
	Upload(ctx context.Context, folder, name, dataURI string) (cloudinary.Asset, error)
}

// UploadService validates, compresses and stores product images.
type UploadService interface {
	UploadFile(ctx context.Context, identity Identity, file *multipart.FileHeader, folder string) (dto.ImageUploadResponse, error)
	UploadBase64(ctx context.Context, identity Identity, req dto.ImageUploadRequest) (dto.ImageUploadResponse, error)
}

type uploadService struct {
	storage ImageStorage
	repo    repository.ImageRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewUploadService constructs an upload service. storage may be nil when the CDN is not configured.
func NewUploadService(storage ImageStorage, repo repository.ImageRepository, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &uploadService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/mitcstore/mitc-api/internal/service/upload"),
	}
}

func (s *uploadService) UploadFile(ctx context.Context, identity Identity, file *multipart.FileHeader, folder string) (dto.ImageUploadResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return dto.ImageUploadResponse{}, err
	}
	if file == nil {
		return dto.ImageUploadResponse{}, invalidArgument("file is required")
	}
	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return dto.ImageUploadResponse{}, s.tooLarge()
	}

	handle, err := file.Open()
	if err != nil {
		return dto.ImageUploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return dto.ImageUploadResponse{}, err
	}
	return s.store(ctx, identity, file.Filename, folder, buf.Bytes())
}

func (s *uploadService) UploadBase64(ctx context.Context, identity Identity, req dto.ImageUploadRequest) (dto.ImageUploadResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return dto.ImageUploadResponse{}, err
	}
	if strings.TrimSpace(req.Base64) == "" {
		return dto.ImageUploadResponse{}, invalidArgument("no image provided")
	}
	if int64(len(req.Base64)) > s.maxSize*4/3+64 {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return dto.ImageUploadResponse{}, s.tooLarge()
	}

	payload, err := imagepipe.DecodeBase64(req.Base64)
	if err != nil {
		return dto.ImageUploadResponse{}, invalidArgument("%s", err.Error())
	}
	return s.store(ctx, identity, "image", req.Folder, payload)
}

func (s *uploadService) store(ctx context.Context, identity Identity, name, folder string, payload []byte) (dto.ImageUploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	span.SetAttributes(
		attribute.Int64("upload.max_bytes", s.maxSize),
		attribute.Int("upload.request_size", len(payload)),
		attribute.String("upload.uploader_id", identity.UserID),
	)

	if int64(len(payload)) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.ImageUploadResponse{}, s.tooLarge()
	}

	detected := mimetype.Detect(payload).String()
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(detected, ";", 2)[0]))
	span.SetAttributes(attribute.String("upload.detected_mime", mime))
	if _, ok := allowedImageTypes[mime]; !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.ImageUploadResponse{}, ErrUploadTypeNotAllowed
	}

	compressed, err := imagepipe.Compress(payload, imagepipe.Options{})
	if errors.Is(err, imagepipe.ErrTooManyPixels) {
		observability.UploadRejected().WithLabelValues("dimensions").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "image too large")
		return dto.ImageUploadResponse{}, invalidArgument("image exceeds %d megapixels", imagepipe.DefaultMaxPixels/1_000_000)
	}
	if err != nil {
		observability.UploadRejected().WithLabelValues("decode").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return dto.ImageUploadResponse{}, invalidArgument("image could not be decoded")
	}

	if s.storage == nil {
		span.SetStatus(codes.Error, "storage unavailable")
		return dto.ImageUploadResponse{}, ErrUploadUnavailable
	}

	folder = strings.Trim(strings.TrimSpace(folder), "/")
	asset, err := s.storage.Upload(ctx, folder, sanitizeFileName(name), imagepipe.DataURI(compressed.Data, compressed.MIME))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.ImageUploadResponse{}, fmt.Errorf("upload image: %w", err)
	}

	record := models.Image{
		ID:         uuid.NewString(),
		URL:        asset.URL,
		Provider:   imageProvider,
		PublicID:   asset.PublicID,
		Folder:     folder,
		UploaderID: identity.UserID,
		SizeBytes:  asset.Bytes,
		Width:      asset.Width,
		Height:     asset.Height,
	}
	if record.SizeBytes == 0 {
		record.SizeBytes = int64(len(compressed.Data))
	}
	if record.Width == 0 || record.Height == 0 {
		record.Width, record.Height = compressed.Width, compressed.Height
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.ImageUploadResponse{}, err
	}

	observability.UploadRequests().WithLabelValues(mime).Inc()
	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().Str("image_id", record.ID).Int64("bytes", record.SizeBytes).Str("uploader", identity.UserID).Msg("image stored")

	return dto.ImageUploadResponse{
		URL:     record.URL,
		ImageID: record.ID,
		Bytes:   record.SizeBytes,
		Width:   record.Width,
		Height:  record.Height,
	}, nil
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "image"
	}
	return base
}

func (s *uploadService) tooLarge() error {
	return fmt.Errorf("%w (limit %s)", ErrUploadTooLarge, utils.FormatFileSize(s.maxSize))
}
