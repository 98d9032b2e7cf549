package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
)

// importIdentity is the actor recorded for offline catalogue imports.
var importIdentity = Identity{UserID: "storectl", Role: models.RoleAdmin}

// CatalogImportResult reports what an import did. Failed is keyed by item index.
type CatalogImportResult struct {
	Created int
	Skipped int
	Failed  map[int]error
}

// CatalogImporter loads products in bulk through the regular create path.
type CatalogImporter interface {
	Import(ctx context.Context, items []dto.ProductCreateRequest) (CatalogImportResult, error)
}

type catalogImporter struct {
	products ProductService
	repo     repository.ProductRepository
	logger   zerolog.Logger
}

// NewCatalogImporter constructs an importer on top of the product service.
func NewCatalogImporter(products ProductService, repo repository.ProductRepository, logger zerolog.Logger) CatalogImporter {
	return &catalogImporter{
		products: products,
		repo:     repo,
		logger:   logger.With().Str("component", "catalog_import").Logger(),
	}
}

// Import creates every item whose brand and title are not in the catalogue yet.
// Items rejected by validation are reported in Failed; any other error stops the import.
func (s *catalogImporter) Import(ctx context.Context, items []dto.ProductCreateRequest) (CatalogImportResult, error) {
	result := CatalogImportResult{Failed: map[int]error{}}

	existing, err := s.repo.List(ctx, repository.ProductFilter{})
	if err != nil {
		return result, err
	}
	seen := make(map[string]struct{}, len(existing)+len(items))
	for _, product := range existing {
		seen[catalogKey(product.Brand, product.Title)] = struct{}{}
	}

	for i, item := range normalizeCatalog(items) {
		key := catalogKey(item.Brand, item.Title)
		if _, ok := seen[key]; ok {
			result.Skipped++
			continue
		}

		if _, err := s.products.Create(ctx, importIdentity, item); err != nil {
			if errors.Is(err, ErrInvalidArgument) {
				result.Failed[i] = err
				continue
			}
			return result, err
		}
		seen[key] = struct{}{}
		result.Created++
	}

	s.logger.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("failed", len(result.Failed)).
		Msg("catalogue imported")
	return result, nil
}

func normalizeCatalog(items []dto.ProductCreateRequest) []dto.ProductCreateRequest {
	for i := range items {
		items[i].Title = strings.Join(strings.Fields(items[i].Title), " ")
		items[i].Brand = strings.TrimSpace(items[i].Brand)
		if items[i].PriceHigh == 0 {
			items[i].PriceHigh = items[i].PriceLow
		}
	}
	return items
}

func catalogKey(brand, title string) string {
	return strings.ToLower(strings.TrimSpace(brand)) + "|" + strings.ToLower(strings.Join(strings.Fields(title), " "))
}
