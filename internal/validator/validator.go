package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidCurrencyCode = errors.New("invalid currency code")
	ErrInvalidColor        = errors.New("invalid color")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidThreshold    = errors.New("invalid threshold")
	ErrInvalidURL          = errors.New("invalid url")
)

const maxNameLength = 200

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	colorRegex    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	urlRegex      = regexp.MustCompile(`^https?://[^\s]+$`)
)

func ValidateCurrencyCode(code string) error {
	if !currencyRegex.MatchString(code) {
		return ErrInvalidCurrencyCode
	}
	return nil
}

func ValidateColor(color string) error {
	if !colorRegex.MatchString(color) {
		return ErrInvalidColor
	}
	return nil
}

// ValidateName accepts non-blank names of at most 200 characters.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength {
		return ErrInvalidName
	}
	return nil
}

func ValidateThreshold(percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidThreshold
	}
	return nil
}

// ValidateURL accepts an empty value or an http(s) URL.
func ValidateURL(raw string) error {
	if raw != "" && !urlRegex.MatchString(raw) {
		return ErrInvalidURL
	}
	return nil
}
