package service

import (
	"strings"

	"github.com/mitcstore/mitc-api/internal/models"
)

// Identity is the authenticated caller of a service operation.
type Identity struct {
	UserID string
	Role   string
}

// Authenticated reports whether a user id is present.
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(i.Role), models.RoleAdmin)
}

func requireIdentity(identity Identity) error {
	if !identity.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func requireAdmin(identity Identity) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	if !identity.IsAdmin() {
		return ErrPermissionDenied
	}
	return nil
}
