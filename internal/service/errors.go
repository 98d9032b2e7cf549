package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Error taxonomy shared by every service. Handlers map these onto HTTP statuses.
var (
	// ErrUnauthenticated indicates an operation requires a signed-in identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrPermissionDenied indicates the identity lacks the required role or membership.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidArgument indicates a missing or malformed field.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited indicates the caller exceeded a per-session quota.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// FieldErrors carries field level validation messages.
type FieldErrors map[string][]string

// ValidationError is an ErrInvalidArgument with per-field details.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d field(s) failed validation", ErrInvalidArgument, len(e.Fields))
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// fieldError builds a ValidationError for a single field.
func fieldError(field string, messages ...string) error {
	return &ValidationError{Fields: FieldErrors{field: messages}}
}

// validationFailed converts struct validation failures into a ValidationError.
// Other errors pass through unchanged.
func validationFailed(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make(FieldErrors, len(validationErrors))
	for _, fe := range validationErrors {
		name := strings.ToLower(fe.Field())
		message := fmt.Sprintf("failed %s validation", fe.Tag())
		if fe.Param() != "" {
			message = fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
		}
		fields[name] = append(fields[name], message)
	}
	return &ValidationError{Fields: fields}
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// ErrorCode maps an error onto the stable code reported to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
