package dto

import (
	"encoding/json"
	"time"

	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// ProductListQuery filters the catalogue.
type ProductListQuery struct {
	Brand  string `query:"brand" validate:"omitempty,max=64"`
	SortBy string `query:"sortBy" validate:"omitempty,oneof=price-asc price-desc views newest"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ProductSearchQuery searches title, brand and model.
type ProductSearchQuery struct {
	Q     string `query:"q" validate:"required,min=1,max=120"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ProductCreateRequest creates a catalogue entry. Specs is validated against the specs schema.
type ProductCreateRequest struct {
	Title            string                `json:"title" validate:"required,min=2,max=255"`
	Brand            string                `json:"brand" validate:"required,max=64"`
	ShortDescription string                `json:"short_description" validate:"omitempty,max=2000"`
	Specs            json.RawMessage       `json:"specs"`
	PriceLow         float64               `json:"price_low"`
	PriceHigh        float64               `json:"price_high"`
	Stock            int                   `json:"stock" validate:"gte=0"`
	BulkAvailable    bool                  `json:"bulk_available"`
	BulkETA          string                `json:"bulk_eta" validate:"omitempty,max=64"`
	Status           string                `json:"status" validate:"omitempty,oneof=draft published"`
	FeaturedImage    string                `json:"featured_image" validate:"omitempty,url,max=512"`
	Gallery          []models.ProductImage `json:"gallery" validate:"omitempty,max=20,dive"`
}

// ProductUpdateRequest patches a catalogue entry.
type ProductUpdateRequest struct {
	Title            *string                `json:"title" validate:"omitempty,min=2,max=255"`
	Brand            *string                `json:"brand" validate:"omitempty,max=64"`
	ShortDescription *string                `json:"short_description" validate:"omitempty,max=2000"`
	Specs            json.RawMessage        `json:"specs"`
	PriceLow         *float64               `json:"price_low"`
	PriceHigh        *float64               `json:"price_high"`
	Stock            *int                   `json:"stock" validate:"omitempty,gte=0"`
	BulkAvailable    *bool                  `json:"bulk_available"`
	BulkETA          *string                `json:"bulk_eta" validate:"omitempty,max=64"`
	Status           *string                `json:"status" validate:"omitempty,oneof=draft published"`
	FeaturedImage    *string                `json:"featured_image" validate:"omitempty,max=512"`
	Gallery          *[]models.ProductImage `json:"gallery" validate:"omitempty,max=20"`
}

// ProductResponse is the catalogue entry returned to clients with display labels.
type ProductResponse struct {
	ID               uint                  `json:"id"`
	Title            string                `json:"title"`
	Brand            string                `json:"brand"`
	ShortDescription string                `json:"short_description"`
	Specs            models.ProductSpecs   `json:"specs"`
	PriceLow         float64               `json:"price_low"`
	PriceHigh        float64               `json:"price_high"`
	PriceLabel       string                `json:"price_label"`
	Stock            int                   `json:"stock"`
	StockStatus      utils.StockLabel      `json:"stock_status"`
	BulkAvailable    bool                  `json:"bulk_available"`
	BulkETA          string                `json:"bulk_eta,omitempty"`
	Status           string                `json:"status"`
	FeaturedImage    string                `json:"featured_image,omitempty"`
	Gallery          []models.ProductImage `json:"gallery"`
	Views            int64                 `json:"views"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// NewProductResponse converts a product model into a DTO.
func NewProductResponse(product models.Product) ProductResponse {
	gallery := []models.ProductImage(product.Gallery)
	if gallery == nil {
		gallery = []models.ProductImage{}
	}
	label := utils.FormatCurrency(product.PriceLow)
	if product.PriceHigh > product.PriceLow {
		label = label + " - " + utils.FormatCurrency(product.PriceHigh)
	}
	return ProductResponse{
		ID:               product.ID,
		Title:            product.Title,
		Brand:            product.Brand,
		ShortDescription: product.ShortDescription,
		Specs:            product.Specs.Data(),
		PriceLow:         product.PriceLow,
		PriceHigh:        product.PriceHigh,
		PriceLabel:       label,
		Stock:            product.Stock,
		StockStatus:      utils.StockStatus(product.Stock, models.LowStockThreshold),
		BulkAvailable:    product.BulkAvailable,
		BulkETA:          product.BulkETA,
		Status:           product.Status,
		FeaturedImage:    product.FeaturedImage,
		Gallery:          gallery,
		Views:            product.Views,
		CreatedAt:        product.CreatedAt,
		UpdatedAt:        product.UpdatedAt,
	}
}

// NewProductResponseSlice converts products into DTOs.
func NewProductResponseSlice(products []models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		out = append(out, NewProductResponse(product))
	}
	return out
}
