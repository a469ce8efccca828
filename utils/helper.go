package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

// CountryCode is the default phone region for hand-entered numbers.
var CountryCode = "US"

var digitRun = regexp.MustCompile(`\d+`)

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

// NormalizePhone formats a hand-entered phone number to E.164 so that
// "(512) 555-0134" and "512-555-0134" compare equal. Numbers that cannot
// be parsed come back trimmed but otherwise untouched; dirty relief data
// must never fail a save over a phone field.
func NormalizePhone(phoneNumber string) string {
	trimmed := strings.TrimSpace(phoneNumber)
	if trimmed == "" {
		return ""
	}
	p, err := libphonenumber.Parse(trimmed, CountryCode)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return trimmed
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

// FirstDigitRun returns the leading-most run of digits in s ("123 Main St"
// -> "123") and ok=false when s contains no digit.
func FirstDigitRun(s string) (string, bool) {
	m := digitRun.FindString(s)
	return m, m != ""
}

// CoordinatesEqual mirrors the SQL-side ROUND(x, 4) comparison used by
// duplicate detection, so Go comparisons and the store agree on equality.
func CoordinatesEqual(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(4).Equal(decimal.NewFromFloat(b).Round(4))
}

// HumanizeLabel turns a snake_case attribute key into a display label:
// "older_than_60" -> "Older Than 60".
func HumanizeLabel(key string) string {
	parts := strings.Split(key, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewFloat(v float64) *float64 {
	return &v
}

func UniqueSlice[T comparable](slice []T) []T {
	keys := make(map[T]bool)
	list := []T{}
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}
