package services

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below match them through errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrStoreFailure = errors.New("store failure")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type InvalidStateError struct{ Message string }

func (e *InvalidStateError) Error() string { return e.Message }

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// StoreError wraps a persistence failure. Callers should treat it as
// "retry later"; the underlying error is kept for logging.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

// NewStoreError returns nil when err is nil and never double-wraps.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func notFound(format string, args ...interface{}) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}
