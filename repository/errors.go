package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

// Error kinds surfaced by repositories. Match them with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation failed")
	ErrTransientStorage = errors.New("transient storage failure")
	ErrMultipleResults  = errors.New("multiple results for a unique lookup")
	ErrSessionClosed    = errors.New("session closed")
)

// Classifier maps a storage error onto one of the error kinds above.
// It returns nil when the error does not belong to a known kind.
type Classifier func(err error) error

// StorageError describes a failed repository operation.
type StorageError struct {
	Op     string
	Entity string
	Kind   error
	Err    error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Kind == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Entity, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying driver error.
func (e *StorageError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// Wrap builds a StorageError for op on entity, classifying err with classify.
// A nil err yields nil.
func Wrap(op, entity string, err error, classify Classifier) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	var kind error
	if classify != nil {
		kind = classify(err)
	}
	if kind == nil {
		kind = DefaultClassifier(err)
	}
	return &StorageError{Op: op, Entity: entity, Kind: kind, Err: err}
}

// Invalid returns a validation error carrying msg.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// DefaultClassifier recognises driver independent failures: finished
// transactions, broken connections, deadlines and network errors.
func DefaultClassifier(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrTxDone), errors.Is(err, sql.ErrConnDone):
		return ErrSessionClosed
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrTransientStorage
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTransientStorage
	}
	return nil
}
