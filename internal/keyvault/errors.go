package keyvault

import (
	"errors"
	"fmt"
)

// Sentinel errors for key storage operations.
var (
	// ErrKeyStorage indicates that key material could not be read or written.
	ErrKeyStorage = errors.New("key storage failed")

	// ErrKeyFormat indicates that stored key material could not be parsed.
	ErrKeyFormat = errors.New("key material is malformed")
)

// StorageError wraps a filesystem failure while persisting or loading keys.
type StorageError struct {
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("key storage error (%s): %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("key storage error (%s): %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *StorageError) Is(target error) bool {
	if errors.Is(target, ErrKeyStorage) {
		return true
	}
	_, ok := target.(*StorageError)
	return ok || errors.Is(e.Cause, target)
}

// NewStorageError creates a new StorageError.
func NewStorageError(path, message string, cause error) *StorageError {
	return &StorageError{Path: path, Message: message, Cause: cause}
}

// FormatError wraps a parse failure of stored key material.
type FormatError struct {
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("key format error (%s): %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("key format error (%s): %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *FormatError) Is(target error) bool {
	if errors.Is(target, ErrKeyFormat) {
		return true
	}
	_, ok := target.(*FormatError)
	return ok || errors.Is(e.Cause, target)
}

// NewFormatError creates a new FormatError.
func NewFormatError(path, message string, cause error) *FormatError {
	return &FormatError{Path: path, Message: message, Cause: cause}
}

// IsStorageError checks if an error indicates a key storage failure.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrKeyStorage)
}

// IsFormatError checks if an error indicates malformed key material.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrKeyFormat)
}
