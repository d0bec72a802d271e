package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap lets callers match any validation failure with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
