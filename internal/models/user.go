package models

import (
	"time"

	"gorm.io/datatypes"
)

// Role values stored on user profiles.
const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Auth providers recorded on credentials.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// User is the storefront profile record. Its role drives authorization.
type User struct {
	UID           string                     `gorm:"primaryKey;size:64" json:"uid"`
	Name          string                     `gorm:"size:120" json:"name"`
	Email         string                     `gorm:"size:160;uniqueIndex" json:"email"`
	PhotoURL      string                     `gorm:"size:512" json:"photo_url"`
	Phone         string                     `gorm:"size:20" json:"phone"`
	Role          string                     `gorm:"size:16;index;not null;default:user" json:"role"`
	LikedProducts datatypes.JSONSlice[uint] `json:"liked_products"`
	LastSeen      *time.Time                 `json:"last_seen"`
	CreatedAt     time.Time                  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// Credential holds the sign-in identity backing a profile.
type Credential struct {
	UID           string    `gorm:"primaryKey;size:64" json:"uid"`
	Email         string    `gorm:"size:160;uniqueIndex;not null" json:"email"`
	PasswordHash  string    `gorm:"size:255" json:"-"`
	Provider      string    `gorm:"size:16;not null" json:"provider"`
	GoogleSubject *string   `gorm:"size:128;uniqueIndex" json:"-"`
	DisplayName   string    `gorm:"size:120" json:"display_name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
