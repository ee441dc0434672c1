package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrPartNotFound    = errors.New("part not found")
	ErrInvalidPartID   = errors.New("invalid part id")
	ErrMissingField    = errors.New("missing required field")
	ErrEmptyMessage    = errors.New("empty message")
	ErrIndexNotBuilt   = errors.New("index not built")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyEmbedding  = errors.New("empty embedding")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
