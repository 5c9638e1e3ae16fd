package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is a generic sentinel for uniqueness conflicts.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StorageError wraps a database failure with the operation and entity
// that produced it.
type StorageError struct {
	Op     string
	Entity string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorage(op, entity string, err error) error {
	return &StorageError{Op: op, Entity: entity, Err: err}
}

// SearchError wraps a failure in the search path.
type SearchError struct {
	Op  string
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search: %s: %v", e.Op, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

func NewSearch(op string, err error) error {
	return &SearchError{Op: op, Err: err}
}

// ValidationError rejects bad input before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsDuplicate reports whether err is a uniqueness conflict, either our
// sentinel or a Postgres unique violation (SQLSTATE 23505) surfaced
// through the driver.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}

// IsNotFound reports whether err carries the not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
