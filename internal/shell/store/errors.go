// Package store persists the deployment state document.
package store

import (
	"errors"
	"fmt"

	"github.com/artpar/chainforge/internal/core/domain"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned by a backend that holds no document yet.
	ErrNotFound = errors.New("state document not found")

	// ErrConnectionFailed is returned when database connection fails.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when database migration fails.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrInvalidData is returned when the stored document cannot be decoded.
	ErrInvalidData = errors.New("invalid data format")

	// ErrTxFailed is returned when a transaction operation fails.
	ErrTxFailed = errors.New("transaction failed")

	// ErrWriteFailed is returned when the document cannot be persisted.
	ErrWriteFailed = errors.New("state write failed")

	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown state backend")

	// ErrAddressImmutable is returned when recording over a different address.
	ErrAddressImmutable = domain.ErrAddressImmutable
)

// StoreError wraps errors with additional context.
type StoreError struct {
	Op      string // Operation that failed (e.g., "Record")
	Backend string // Backend name (e.g., "file", "sqlite")
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Backend, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, backend, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Backend: backend,
		Message: message,
		Err:     err,
	}
}
