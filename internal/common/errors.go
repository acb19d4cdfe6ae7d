// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common application errors.
var (
	// Record errors.
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateID    = errors.New("order ID already exists")
	ErrValidation     = errors.New("validation failed")
	ErrForbidden      = errors.New("not permitted")

	// Store errors.
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrInvalidPosition  = errors.New("invalid row position")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StoreIOError is any failure talking to the record store: network, auth,
// rate limiting or timeout. It is always propagated to the caller of the
// mutating action.
type StoreIOError struct {
	Err error
	Op  string
	// Transient marks failures worth retrying (timeouts, 429, 5xx).
	Transient bool
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// Is lets callers test for any store failure with ErrStoreUnavailable.
func (e *StoreIOError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Retryable reports whether the failure is transient.
func (e *StoreIOError) Retryable() bool {
	return e.Transient || isTimeout(e.Err)
}

// NewStoreIOError wraps err unless it already is a StoreIOError.
func NewStoreIOError(op string, err error, transient bool) error {
	if err == nil {
		return nil
	}
	var existing *StoreIOError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreIOError{Op: op, Err: err, Transient: transient}
}

// NotifyIOError is a failed push notification. It is recovered locally and
// never rolls back the action that triggered it.
type NotifyIOError struct {
	Err   error
	Title string
}

func (e *NotifyIOError) Error() string {
	return fmt.Sprintf("notify %q: %v", e.Title, e.Err)
}

func (e *NotifyIOError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var storeErr *StoreIOError
	if errors.As(err, &storeErr) {
		return storeErr.Retryable()
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
