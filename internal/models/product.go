package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product publication states.
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
)

// LowStockThreshold is the stock level at or below which a product counts as low stock.
const LowStockThreshold = 5

// ProductSpecs describes the technical sheet of a device.
type ProductSpecs struct {
	RAM        string `json:"ram,omitempty"`
	Storage    string `json:"storage,omitempty"`
	Processor  string `json:"processor,omitempty"`
	GPU        string `json:"gpu,omitempty"`
	Display    string `json:"display,omitempty"`
	Color      string `json:"color,omitempty"`
	Generation string `json:"generation,omitempty"`
	Model      string `json:"model,omitempty"`
}

// ProductImage references an uploaded asset.
type ProductImage struct {
	URL     string `json:"url"`
	ImageID string `json:"image_id,omitempty"`
}

// Product is a catalogue entry.
type Product struct {
	ID               uint                              `gorm:"primaryKey" json:"id"`
	Title            string                            `gorm:"size:255;not null" json:"title"`
	Brand            string                            `gorm:"size:64;index;not null" json:"brand"`
	ShortDescription string                            `gorm:"type:text" json:"short_description"`
	Specs            datatypes.JSONType[ProductSpecs]  `json:"specs"`
	SpecModel        string                            `gorm:"size:128;index" json:"-"`
	PriceLow         float64                           `gorm:"not null" json:"price_low"`
	PriceHigh        float64                           `gorm:"not null" json:"price_high"`
	Stock            int                               `gorm:"not null;default:0" json:"stock"`
	BulkAvailable    bool                              `gorm:"not null;default:false" json:"bulk_available"`
	BulkETA          string                            `gorm:"size:64" json:"bulk_eta"`
	Status           string                            `gorm:"size:16;index;not null;default:draft" json:"status"`
	FeaturedImage    string                            `gorm:"size:512" json:"featured_image"`
	Gallery          datatypes.JSONSlice[ProductImage] `json:"gallery"`
	Views            int64                             `gorm:"not null;default:0" json:"views"`
	CreatedAt        time.Time                         `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time                         `json:"updated_at"`
}

// BeforeSave mirrors the specs model into a searchable column.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.SpecModel = strings.ToLower(strings.TrimSpace(p.Specs.Data().Model))
	return nil
}
