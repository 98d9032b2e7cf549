package dto

import (
	"time"

	"github.com/mitcstore/mitc-api/internal/models"
)

// VisitRequest is the storefront page view beacon.
type VisitRequest struct {
	Path     string `json:"path" validate:"required,max=255"`
	Referrer string `json:"referrer" validate:"omitempty,max=512"`
}

// AnalyticsQuery selects the reporting window in days.
type AnalyticsQuery struct {
	Days int `query:"days" validate:"omitempty,min=1,max=365"`
}

// ProductAnalytics summarises the catalogue.
type ProductAnalytics struct {
	Total      int64             `json:"total"`
	Published  int64             `json:"published"`
	Draft      int64             `json:"draft"`
	LowStock   int64             `json:"low_stock"`
	OutOfStock int64             `json:"out_of_stock"`
	TopViewed  []ProductResponse `json:"top_viewed"`
}

// UserAnalytics summarises profiles.
type UserAnalytics struct {
	Total    int64 `json:"total"`
	Admins   int64 `json:"admins"`
	Users    int64 `json:"users"`
	Guests   int64 `json:"guests"`
	NewUsers int64 `json:"new_users"`
}

// ReviewAnalytics summarises moderation state.
type ReviewAnalytics struct {
	Total         int64   `json:"total"`
	Approved      int64   `json:"approved"`
	Pending       int64   `json:"pending"`
	Hidden        int64   `json:"hidden"`
	AverageRating float64 `json:"average_rating"`
}

// VisitorAnalytics summarises page views in the window.
type VisitorAnalytics struct {
	Total          int              `json:"total"`
	UniqueVisitors int              `json:"unique_visitors"`
	Mobile         int              `json:"mobile"`
	Tablet         int              `json:"tablet"`
	Desktop        int              `json:"desktop"`
	Daily          map[string]int64 `json:"daily"`
}

// LeadAnalytics summarises the lead pipeline in the window.
type LeadAnalytics struct {
	Total     int64          `json:"total"`
	New       int64          `json:"new"`
	Contacted int64          `json:"contacted"`
	Converted int64          `json:"converted"`
	Recent    []LeadResponse `json:"recent"`
}

// AnalyticsSummaryResponse is the admin dashboard payload.
type AnalyticsSummaryResponse struct {
	Days        int              `json:"days"`
	Products    ProductAnalytics `json:"products"`
	Users       UserAnalytics    `json:"users"`
	Reviews     ReviewAnalytics  `json:"reviews"`
	Visitors    VisitorAnalytics `json:"visitors"`
	Leads       LeadAnalytics    `json:"leads"`
	GeneratedAt time.Time        `json:"generated_at"`
	CacheHit    bool             `json:"cache_hit"`
}

// LeadCreateRequest is the contact form submission.
type LeadCreateRequest struct {
	Name    string   `json:"name" validate:"required,min=2,max=120"`
	Email   string   `json:"email" validate:"required,email,max=160"`
	Phone   string   `json:"phone" validate:"omitempty,max=20"`
	Message string   `json:"message" validate:"required,min=5,max=2000"`
	Tags    []string `json:"tags" validate:"omitempty,max=10,dive,max=32"`
}

// LeadStatusRequest moves a lead through the workflow.
type LeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted converted"`
}

// LeadResponse is the serialized lead.
type LeadResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// NewLeadResponse converts a lead model into a DTO.
func NewLeadResponse(lead models.Lead) LeadResponse {
	tags := []string(lead.Tags)
	if tags == nil {
		tags = []string{}
	}
	return LeadResponse{
		ID:        lead.ID,
		Name:      lead.Name,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Message:   lead.Message,
		Status:    lead.Status,
		Tags:      tags,
		CreatedAt: lead.CreatedAt,
	}
}

// NewLeadResponseSlice converts leads into DTOs.
func NewLeadResponseSlice(leads []models.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, NewLeadResponse(lead))
	}
	return out
}
