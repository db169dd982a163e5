package sanitize

import (
	"errors"
	"fmt"
)

var (
	// ErrMaliciousInput indicates the input matched a malicious
	// pattern.
	ErrMaliciousInput = errors.New("malicious input detected")

	// ErrInputTooLong indicates the input exceeds the maximum length.
	ErrInputTooLong = errors.New("input exceeds maximum length")

	// ErrInvalidEmail indicates the input is not a valid email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidURL indicates the input is not a valid http or https
	// URL.
	ErrInvalidURL = errors.New("invalid URL")
)

// MaliciousInputError indicates the input matched a pattern from one
// of the malicious pattern families.
type MaliciousInputError struct {
	// Category names the pattern family that matched.
	Category string
}

// Error implements the error interface.
func (e *MaliciousInputError) Error() string {
	return fmt.Sprintf("malicious input detected: %s pattern", e.Category)
}

// Unwrap returns the underlying sentinel error.
func (e *MaliciousInputError) Unwrap() error {
	return ErrMaliciousInput
}

// Is implements errors.Is support.
func (e *MaliciousInputError) Is(target error) bool {
	return target == ErrMaliciousInput
}

// NewMaliciousInputError creates a new malicious input error for the
// given pattern category.
func NewMaliciousInputError(category string) *MaliciousInputError {
	return &MaliciousInputError{Category: category}
}

// IsMaliciousInput returns true if the error indicates malicious
// input.
func IsMaliciousInput(err error) bool {
	return errors.Is(err, ErrMaliciousInput)
}
