package utils

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// StockLabel is the display classification of an inventory level.
type StockLabel struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// FormatCurrency renders an amount in whole rupees using Indian digit grouping, e.g. ₹1,50,000.
func FormatCurrency(amount float64) string {
	rounded := int64(math.Round(math.Abs(amount)))
	grouped := groupIndianDigits(strconv.FormatInt(rounded, 10))
	if amount < 0 && rounded != 0 {
		return "-₹" + grouped
	}
	return "₹" + grouped
}

// groupIndianDigits places the first separator after three digits and every two after that.
func groupIndianDigits(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	groups := make([]string, 0, len(head)/2+1)
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}

	return strings.Join(groups, ",") + "," + tail
}

// FormatDate renders t as "short" (2 Jan 2024), "long" (2 January 2024, 03:04 PM) or numeric (02/01/2024).
func FormatDate(t time.Time, format string) string {
	if t.IsZero() {
		return ""
	}

	switch format {
	case "short":
		return t.Format("2 Jan 2006")
	case "long":
		return t.Format("2 January 2006, 03:04 PM")
	default:
		return t.Format("02/01/2006")
	}
}

// FormatRelativeTime describes t relative to now. Anything older than a week falls back to the short date.
func FormatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < 7*24*time.Hour:
		return humanize.RelTime(t, now, "ago", "from now")
	default:
		return FormatDate(t, "short")
	}
}

// FormatPhoneNumber formats a 10 digit or 91-prefixed 12 digit number as +91 XXXXX XXXXX.
// Other inputs are returned unchanged.
func FormatPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	cleaned := digitsOnly(phone)
	switch {
	case len(cleaned) == 10:
		return "+91 " + cleaned[:5] + " " + cleaned[5:]
	case len(cleaned) == 12 && strings.HasPrefix(cleaned, "91"):
		return "+" + cleaned[:2] + " " + cleaned[2:7] + " " + cleaned[7:]
	default:
		return phone
	}
}

// FormatFileSize renders a byte count with binary units.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// TruncateText shortens text to maxLength runes and appends an ellipsis.
func TruncateText(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 100
	}

	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + "..."
}

// StockStatus classifies a stock level against the low stock threshold.
func StockStatus(stock, threshold int) StockLabel {
	switch {
	case stock <= 0:
		return StockLabel{Label: "Out of Stock", Color: "error"}
	case stock <= threshold:
		return StockLabel{Label: "Low Stock", Color: "warning"}
	default:
		return StockLabel{Label: "In Stock", Color: "success"}
	}
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
