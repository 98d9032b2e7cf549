package dto

import (
	"time"

	"github.com/mitcstore/mitc-api/internal/models"
)

// SignUpRequest registers a password identity.
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email,max=160"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// SignInRequest exchanges credentials for a token.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// GoogleSignInRequest carries a Google ID token obtained by the client.
type GoogleSignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// PasswordResetRequest starts the reset flow for an email.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest completes the reset flow.
type PasswordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// ProfileUpdateRequest patches the caller's profile.
type ProfileUpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=120"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	PhotoURL *string `json:"photo_url" validate:"omitempty,url,max=512"`
}

// RoleUpdateRequest changes the role of a user.
type RoleUpdateRequest struct {
	Role string `json:"role" validate:"required,oneof=guest user admin"`
}

// UserListQuery filters the admin user listing.
type UserListQuery struct {
	Role   string `query:"role" validate:"omitempty,oneof=guest user admin"`
	Search string `query:"search" validate:"omitempty,max=160"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=200"`
}

// UserResponse is the public view of a profile.
type UserResponse struct {
	UID           string     `json:"uid"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PhotoURL      string     `json:"photo_url,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Role          string     `json:"role"`
	LikedProducts []uint     `json:"liked_products"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AuthResponse is returned after a successful sign-in.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// NewUserResponse converts a profile model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	liked := []uint(user.LikedProducts)
	if liked == nil {
		liked = []uint{}
	}
	return UserResponse{
		UID:           user.UID,
		Name:          user.Name,
		Email:         user.Email,
		PhotoURL:      user.PhotoURL,
		Phone:         user.Phone,
		Role:          user.Role,
		LikedProducts: liked,
		LastSeen:      user.LastSeen,
		CreatedAt:     user.CreatedAt,
	}
}

// NewUserResponseSlice converts profiles into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}
