package domain

import (
	"errors"
	"fmt"
)

// Warning classes recorded for skipped payloads.
var (
	ErrTransport  = errors.New("transport error")
	ErrBadPayload = errors.New("bad payload")
	ErrSchema     = errors.New("schema validation error")
)

// Sentinel errors for schema failures.
var (
	ErrMissingField  = errors.New("missing required field")
	ErrWrongType     = errors.New("wrong type")
	ErrEnvelopeShape = errors.New("envelope must carry exactly one of response or error")
)

// Batch-level conditions.
var (
	ErrNothingFetched = errors.New("nothing fetched")
	ErrNothingValid   = errors.New("nothing valid")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("validation: %s: %s", e.Wrapped, e.Field)
	}
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

func missing(field string) error {
	return NewValidationError(field, "", ErrMissingField)
}
