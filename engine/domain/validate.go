package domain

import (
	"regexp"
	"strings"
)

// Canonical part identifier: "PS" followed by at least seven digits.
var partIDRegex = regexp.MustCompile(`^PS\d{7,}$`)

// ValidatePartID checks that id is in canonical form.
func ValidatePartID(id string) error {
	if !partIDRegex.MatchString(id) {
		return NewValidationError("id", id, ErrInvalidPartID)
	}
	return nil
}

// ValidatePart validates a catalog record before it is stored or indexed.
func ValidatePart(p Part) error {
	if err := ValidatePartID(p.ID); err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", p.Name, ErrMissingField)
	}
	if strings.TrimSpace(p.Type) == "" {
		return NewValidationError("type", p.Type, ErrMissingField)
	}
	return nil
}

// NormalizeMessage trims surrounding whitespace and rejects empty input.
// No other validation is applied to chat messages.
func NormalizeMessage(msg string) (string, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", ErrEmptyMessage
	}
	return msg, nil
}

// NormalizeProvider lower-cases and trims name, falling back to def when the
// name is empty or not a known provider. The second return value is false
// only when a non-empty, unrecognised name was supplied.
func NormalizeProvider(name, def string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if KnownProviders[n] {
		return n, true
	}
	return def, n == ""
}
