package cloudinary

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// DefaultFolder receives uploads that do not name a folder.
const DefaultFolder = "mitc/products"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Asset describes an uploaded image as reported by Cloudinary.
type Asset struct {
	URL      string
	PublicID string
	Bytes    int64
	Width    int
	Height   int
}

// Service uploads images to Cloudinary with automatic quality and format.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = DefaultFolder
	}

	return &Service{
		client: cld,
		folder: folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends a data URI to Cloudinary. An empty folder uses the configured default.
func (s *Service) Upload(ctx context.Context, folder, name, dataURI string) (Asset, error) {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = s.folder
	}

	params := uploader.UploadParams{
		Folder:         folder,
		PublicID:       BuildPublicID(name, time.Now()),
		ResourceType:   "image",
		Transformation: "q_auto,f_auto",
	}

	result, err := s.client.Upload.Upload(ctx, dataURI, params)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return Asset{}, fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("image uploaded to cloudinary")

	return Asset{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Bytes:    int64(result.Bytes),
		Width:    result.Width,
		Height:   result.Height,
	}, nil
}

// BuildPublicID derives a URL-safe public id from a file name.
func BuildPublicID(name string, now time.Time) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "image"
	}

	return fmt.Sprintf("%s-%d", strings.ToLower(base), now.Unix())
}
