package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

var (
	fieldValidator = validator.New()

	upperPattern   = regexp.MustCompile(`[A-Z]`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// PasswordCheck is the outcome of a password strength evaluation.
type PasswordCheck struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Strength string   `json:"strength"`
}

// ValidateEmail reports whether email is a syntactically valid address.
func ValidateEmail(email string) bool {
	return fieldValidator.Var(strings.TrimSpace(email), "required,email") == nil
}

// ValidatePhone accepts Indian numbers with 10 digits or a 91 country prefix.
func ValidatePhone(phone string) bool {
	cleaned := digitsOnly(phone)
	return len(cleaned) == 10 || (len(cleaned) == 12 && strings.HasPrefix(cleaned, "91"))
}

// ValidatePassword checks the password policy and grades its strength.
func ValidatePassword(password string) PasswordCheck {
	errs := make([]string, 0, 4)

	if utf8.RuneCountInString(password) < minPasswordLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if !upperPattern.MatchString(password) {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !lowerPattern.MatchString(password) {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !digitPattern.MatchString(password) {
		errs = append(errs, "Password must contain at least one number")
	}

	return PasswordCheck{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Strength: passwordStrength(password),
	}
}

func passwordStrength(password string) string {
	score := 0
	length := utf8.RuneCountInString(password)
	if length >= 8 {
		score++
	}
	if length >= 12 {
		score++
	}
	for _, pattern := range []*regexp.Regexp{lowerPattern, upperPattern, digitPattern, specialPattern} {
		if pattern.MatchString(password) {
			score++
		}
	}

	switch {
	case score <= 2:
		return "weak"
	case score <= 4:
		return "medium"
	default:
		return "strong"
	}
}

// ValidateURL reports whether raw is an absolute URL.
func ValidateURL(raw string) bool {
	return fieldValidator.Var(raw, "required,url") == nil
}

// ValidateRequired fails when value is blank.
func ValidateRequired(value, fieldName string) error {
	if fieldName == "" {
		fieldName = "This field"
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateNumberRange parses raw and checks it against the inclusive bounds.
// A nil bound is not enforced.
func ValidateNumberRange(raw string, min, max *float64, fieldName string) error {
	if fieldName == "" {
		fieldName = "Value"
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("%s must be a number", fieldName)
	}
	if min != nil && num < *min {
		return fmt.Errorf("%s must be at least %s", fieldName, strconv.FormatFloat(*min, 'f', -1, 64))
	}
	if max != nil && num > *max {
		return fmt.Errorf("%s must be at most %s", fieldName, strconv.FormatFloat(*max, 'f', -1, 64))
	}
	return nil
}

// ValidatePriceRange returns every rule the low/high pair violates. Zero means unset, so
// the ordering rule only applies when both bounds are given.
func ValidatePriceRange(low, high float64) []string {
	errs := make([]string, 0, 3)

	if low <= 0 {
		errs = append(errs, "Minimum price must be greater than 0")
	}
	if high <= 0 {
		errs = append(errs, "Maximum price must be greater than 0")
	}
	if low != 0 && high != 0 && high < low {
		errs = append(errs, "Maximum price must be greater than minimum price")
	}

	return errs
}
