package core

import (
	"errors"
	"fmt"
)

// ErrJoinNotSupported is reported when a join is used where only a single
// table is allowed.
var ErrJoinNotSupported = errors.New("join not supported in this context")

// ValidationError is a client-caused error: bad SQL semantics, unknown
// columns, bad facet requests, invalid view definitions.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// InvalidStatusTokenError is returned when a table's status was reset by
// another worker while a rebuild was in flight.
type InvalidStatusTokenError struct {
	Table IDAndVersion
}

func (e *InvalidStatusTokenError) Error() string {
	return fmt.Sprintf("status token for %s is no longer valid", e.Table)
}

// LockUnavailableError is returned when a try-lock cannot be acquired.
type LockUnavailableError struct {
	Key string
}

func (e *LockUnavailableError) Error() string {
	return fmt.Sprintf("lock unavailable: %s", e.Key)
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRecoverable reports whether the failed work should be retried later.
func IsRecoverable(err error) bool {
	var token *InvalidStatusTokenError
	var lock *LockUnavailableError
	return errors.As(err, &token) || errors.As(err, &lock)
}
