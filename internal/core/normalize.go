package core

// normalize.go canonicalizes individual field values.
//
// The fallible normalizers (email, phone, status) return an error describing
// why the value was rejected; the schema decides whether that drops the row
// or rejects the whole file.

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Phone digit bounds after stripping formatting characters.
const (
	PhoneMinDigits = 10
	PhoneMaxDigits = 15
)

// DefaultCountryCode is prefixed to bare 10-digit numbers when no other
// code is configured.
const DefaultCountryCode = "1"

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigit   = regexp.MustCompile(`\D`)
	digitsOnly = regexp.MustCompile(`^\d{1,3}$`)
)

var (
	errInvalidEmail  = errors.New("invalid email format")
	errInvalidStatus = errors.New("status must be active or inactive")
)

// NormalizeText trims surrounding whitespace. Free text is otherwise kept
// as typed, quotes and leading "=" included.
func NormalizeText(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail trims and lower-cases s and checks local@domain.tld syntax.
func NormalizeEmail(s string) (string, error) {
	s = strings.ToLower(CleanCell(s))
	if !emailRegex.MatchString(s) {
		return "", errInvalidEmail
	}
	return s, nil
}

// PhoneNormalizer converts phone numbers to the canonical "+<digits>" form.
type PhoneNormalizer struct {
	// CountryCode is prefixed to numbers with exactly PhoneMinDigits digits.
	CountryCode string
}

// NewPhoneNormalizer validates the country code and returns a normalizer.
func NewPhoneNormalizer(countryCode string) (PhoneNormalizer, error) {
	countryCode = strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if !digitsOnly.MatchString(countryCode) {
		return PhoneNormalizer{}, fmt.Errorf("country code %q must be 1-3 digits", countryCode)
	}
	return PhoneNormalizer{CountryCode: countryCode}, nil
}

// Normalize strips every non-digit and formats the result. A 10-digit
// national number gets the configured country code; anything else in range
// is taken to already include one. The output re-normalizes to itself.
func (p PhoneNormalizer) Normalize(s string) (string, error) {
	digits := nonDigit.ReplaceAllString(s, "")
	if len(digits) < PhoneMinDigits || len(digits) > PhoneMaxDigits {
		return "", fmt.Errorf("phone must have %d-%d digits, got %d", PhoneMinDigits, PhoneMaxDigits, len(digits))
	}
	if len(digits) == PhoneMinDigits {
		cc := p.CountryCode
		if cc == "" {
			cc = DefaultCountryCode
		}
		return "+" + cc + digits, nil
	}
	return "+" + digits, nil
}

// NormalizeStatus accepts active/inactive case-insensitively; empty means active.
func NormalizeStatus(s string) (string, error) {
	s = strings.ToLower(CleanCell(s))
	switch s {
	case "":
		return ContactActive, nil
	case ContactActive, ContactInactive:
		return s, nil
	default:
		return "", errInvalidStatus
	}
}

// CleanCell removes common spreadsheet artifacts from a cell value:
//   - surrounding whitespace
//   - Excel formula wrappers (="...")
//   - surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
