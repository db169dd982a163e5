package crypto

import (
	"errors"
	"fmt"
)

// Sentinel errors for cryptographic operations.
var (
	// ErrIntegrity indicates that ciphertext failed authentication.
	ErrIntegrity = errors.New("ciphertext integrity check failed")

	// ErrInvalidCiphertext indicates that ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("ciphertext is malformed")

	// ErrInvalidSalt indicates that a password salt could not be decoded.
	ErrInvalidSalt = errors.New("password salt is malformed")
)

// IntegrityError wraps a decryption failure. Tampered and truncated
// inputs are indistinguishable by design.
type IntegrityError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("integrity error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("integrity error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *IntegrityError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *IntegrityError) Is(target error) bool {
	if errors.Is(target, ErrIntegrity) {
		return true
	}
	_, ok := target.(*IntegrityError)
	return ok || errors.Is(e.Cause, target)
}

// NewIntegrityError creates a new IntegrityError.
func NewIntegrityError(message string, cause error) *IntegrityError {
	return &IntegrityError{Message: message, Cause: cause}
}

// IsIntegrityError checks if an error indicates an integrity failure.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrIntegrity)
}
