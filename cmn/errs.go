// Package cmn provides shared constants, configuration, and error types used
// throughout the scheduler.
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// BusyError is returned when the advisory lock could not be acquired
// within the caller-supplied timeout.
type BusyError struct {
	Op string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("scheduler: busy, failed to acquire lock for %q", e.Op)
}

func NewBusyError(op string) error { return &BusyError{Op: op} }

func IsBusy(err error) bool {
	_, ok := err.(*BusyError)
	return ok
}

// InvariantViolation indicates the caller asked for a state transition the
// job/queue state machine forbids (e.g. reconcile of a finished job, delete
// of a running job).
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "scheduler: invariant violation: " + e.Msg }

func NewInvariantViolation(format string, args ...interface{}) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

func IsInvariantViolation(err error) bool {
	_, ok := err.(*InvariantViolation)
	return ok
}

// NotFoundError indicates the requested Queue or Job does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("scheduler: %s %q not found", e.Kind, e.ID)
}

func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// StorageError wraps an underlying persistence-layer failure (buntdb, fs)
// with a stack trace so that it survives the rollback/unlock path intact.
type StorageError struct {
	cause error
}

func (e *StorageError) Error() string { return "scheduler: storage error: " + e.cause.Error() }

func (e *StorageError) Unwrap() error { return e.cause }

// NewStorageError wraps err with a stack trace via pkg/errors, the way the
// teacher wraps lower-level SQL/FS failures before they reach the logs.
func NewStorageError(err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{cause: errors.WithStack(err)}
}

func IsStorageError(err error) bool {
	_, ok := err.(*StorageError)
	return ok
}
