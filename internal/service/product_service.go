package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
	"github.com/mitcstore/mitc-api/internal/utils"
)

const productSpecsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "ram": {"type": "string", "maxLength": 64},
    "storage": {"type": "string", "maxLength": 64},
    "processor": {"type": "string", "maxLength": 128},
    "gpu": {"type": "string", "maxLength": 128},
    "display": {"type": "string", "maxLength": 128},
    "color": {"type": "string", "maxLength": 64},
    "generation": {"type": "string", "maxLength": 64},
    "model": {"type": "string", "maxLength": 128}
  }
}`

var specsSchema = jsonschema.MustCompileString("product_specs.json", productSpecsSchema)

// ProductService manages the catalogue.
type ProductService interface {
	List(ctx context.Context, query dto.ProductListQuery) ([]dto.ProductResponse, error)
	AdminList(ctx context.Context, identity Identity, query dto.ProductListQuery) ([]dto.ProductResponse, error)
	Search(ctx context.Context, query dto.ProductSearchQuery) ([]dto.ProductResponse, error)
	Get(ctx context.Context, identity Identity, id uint) (dto.ProductResponse, error)
	Create(ctx context.Context, identity Identity, req dto.ProductCreateRequest) (dto.ProductResponse, error)
	Update(ctx context.Context, identity Identity, id uint, req dto.ProductUpdateRequest) (dto.ProductResponse, error)
	Delete(ctx context.Context, identity Identity, id uint) error
	TrackView(ctx context.Context, id uint)
}

type productService struct {
	repo      repository.ProductRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProductService constructs the catalogue service.
func NewProductService(repo repository.ProductRepository, validate *validator.Validate, logger zerolog.Logger) ProductService {
	return &productService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "product_service").Logger(),
	}
}

// List returns published products only.
func (s *productService) List(ctx context.Context, query dto.ProductListQuery) ([]dto.ProductResponse, error) {
	return s.list(ctx, models.ProductStatusPublished, query)
}

func (s *productService) AdminList(ctx context.Context, identity Identity, query dto.ProductListQuery) ([]dto.ProductResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return nil, err
	}
	return s.list(ctx, "", query)
}

func (s *productService) list(ctx context.Context, status string, query dto.ProductListQuery) ([]dto.ProductResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, validationFailed(err)
	}
	products, err := s.repo.List(ctx, repository.ProductFilter{
		Status: status,
		Brand:  query.Brand,
		SortBy: query.SortBy,
		Limit:  query.Limit,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewProductResponseSlice(products), nil
}

func (s *productService) Search(ctx context.Context, query dto.ProductSearchQuery) ([]dto.ProductResponse, error) {
	query.Q = strings.TrimSpace(query.Q)
	if err := s.validator.Struct(query); err != nil {
		return nil, validationFailed(err)
	}
	products, err := s.repo.Search(ctx, query.Q, models.ProductStatusPublished, query.Limit)
	if err != nil {
		return nil, err
	}
	return dto.NewProductResponseSlice(products), nil
}

// Get returns one product. Drafts are only visible to admins.
func (s *productService) Get(ctx context.Context, identity Identity, id uint) (dto.ProductResponse, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ProductResponse{}, notFoundOr(err, "product")
	}
	if product.Status != models.ProductStatusPublished && !identity.IsAdmin() {
		return dto.ProductResponse{}, fmt.Errorf("product: %w", ErrNotFound)
	}
	return dto.NewProductResponse(product), nil
}

func (s *productService) Create(ctx context.Context, identity Identity, req dto.ProductCreateRequest) (dto.ProductResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return dto.ProductResponse{}, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Brand = strings.TrimSpace(req.Brand)
	if err := s.validator.Struct(req); err != nil {
		return dto.ProductResponse{}, validationFailed(err)
	}
	if errs := utils.ValidatePriceRange(req.PriceLow, req.PriceHigh); len(errs) > 0 {
		return dto.ProductResponse{}, fieldError("price", errs...)
	}
	specs, err := decodeSpecs(req.Specs)
	if err != nil {
		return dto.ProductResponse{}, err
	}

	status := req.Status
	if status == "" {
		status = models.ProductStatusDraft
	}
	product := models.Product{
		Title:            req.Title,
		Brand:            req.Brand,
		ShortDescription: strings.TrimSpace(req.ShortDescription),
		Specs:            datatypes.NewJSONType(specs),
		PriceLow:         req.PriceLow,
		PriceHigh:        req.PriceHigh,
		Stock:            req.Stock,
		BulkAvailable:    req.BulkAvailable,
		BulkETA:          strings.TrimSpace(req.BulkETA),
		Status:           status,
		FeaturedImage:    strings.TrimSpace(req.FeaturedImage),
		Gallery:          datatypes.NewJSONSlice(req.Gallery),
	}
	if err := s.repo.Create(ctx, &product); err != nil {
		return dto.ProductResponse{}, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info().Uint("product_id", product.ID).Str("actor", identity.UserID).Msg("product created")
	return dto.NewProductResponse(product), nil
}

func (s *productService) Update(ctx context.Context, identity Identity, id uint, req dto.ProductUpdateRequest) (dto.ProductResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return dto.ProductResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ProductResponse{}, validationFailed(err)
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ProductResponse{}, notFoundOr(err, "product")
	}

	if req.Title != nil {
		product.Title = strings.TrimSpace(*req.Title)
	}
	if req.Brand != nil {
		product.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.ShortDescription != nil {
		product.ShortDescription = strings.TrimSpace(*req.ShortDescription)
	}
	if len(req.Specs) > 0 {
		specs, err := decodeSpecs(req.Specs)
		if err != nil {
			return dto.ProductResponse{}, err
		}
		product.Specs = datatypes.NewJSONType(specs)
	}
	if req.PriceLow != nil {
		product.PriceLow = *req.PriceLow
	}
	if req.PriceHigh != nil {
		product.PriceHigh = *req.PriceHigh
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.BulkAvailable != nil {
		product.BulkAvailable = *req.BulkAvailable
	}
	if req.BulkETA != nil {
		product.BulkETA = strings.TrimSpace(*req.BulkETA)
	}
	if req.Status != nil {
		product.Status = *req.Status
	}
	if req.FeaturedImage != nil {
		product.FeaturedImage = strings.TrimSpace(*req.FeaturedImage)
	}
	if req.Gallery != nil {
		product.Gallery = datatypes.NewJSONSlice(*req.Gallery)
	}

	if errs := utils.ValidatePriceRange(product.PriceLow, product.PriceHigh); len(errs) > 0 {
		return dto.ProductResponse{}, fieldError("price", errs...)
	}
	if product.Title == "" || product.Brand == "" {
		return dto.ProductResponse{}, invalidArgument("title and brand are required")
	}

	if err := s.repo.Save(ctx, &product); err != nil {
		return dto.ProductResponse{}, fmt.Errorf("update product: %w", err)
	}
	s.logger.Info().Uint("product_id", product.ID).Str("actor", identity.UserID).Msg("product updated")
	return dto.NewProductResponse(product), nil
}

func (s *productService) Delete(ctx context.Context, identity Identity, id uint) error {
	if err := requireAdmin(identity); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "product")
	}
	s.logger.Info().Uint("product_id", id).Str("actor", identity.UserID).Msg("product deleted")
	return nil
}

// TrackView increments the view counter. Failures are logged and never surfaced.
func (s *productService) TrackView(ctx context.Context, id uint) {
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.logger.Warn().Err(err).Uint("product_id", id).Msg("failed to track product view")
	}
}

// decodeSpecs validates raw against the specs schema before decoding it.
func decodeSpecs(raw json.RawMessage) (models.ProductSpecs, error) {
	var specs models.ProductSpecs
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return specs, nil
	}

	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return specs, fieldError("specs", "specs must be a JSON object")
	}
	if err := specsSchema.Validate(document); err != nil {
		var schemaErr *jsonschema.ValidationError
		if errors.As(err, &schemaErr) {
			return specs, fieldError("specs", schemaMessages(schemaErr)...)
		}
		return specs, fieldError("specs", err.Error())
	}
	if err := json.Unmarshal(raw, &specs); err != nil {
		return specs, fieldError("specs", "specs must be a JSON object")
	}
	return specs, nil
}

func schemaMessages(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		location := strings.TrimPrefix(err.InstanceLocation, "/")
		if location == "" {
			return []string{err.Message}
		}
		return []string{location + ": " + err.Message}
	}
	var messages []string
	for _, cause := range err.Causes {
		messages = append(messages, schemaMessages(cause)...)
	}
	return messages
}
