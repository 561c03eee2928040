package models

import (
	"errors"
	"fmt"
)

// Business rejections are deterministic given the same inputs and state; a
// TransientError may succeed on retry. Callers distinguish the two with errors.Is.
var (
	// ErrInvalidAmount indicates the amount text could not be parsed as a decimal
	// number, or is finer-grained than the currency allows.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNegativeAmount indicates a negative amount was supplied where a
	// non-negative one is required (set).
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrNonPositiveAmount indicates a zero or negative amount was supplied where
	// a strictly positive one is required (add, subtract).
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds indicates a subtraction would drive the balance below
	// zero. The balance is left untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUserNotFound indicates identity resolution failed upstream.
	ErrUserNotFound = errors.New("user not found")

	// ErrStorageUnavailable is the marker for transient persistence failures.
	// Match with errors.Is; the underlying driver error stays wrapped.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// TransientError wraps a storage-layer failure so callers can both match it
// against ErrStorageUnavailable and unwrap the driver error. After a transient
// failure on a mutation the effect is unknown: the caller must re-query the
// balance before retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrStorageUnavailable }

// NewTransientError wraps err as a transient storage failure for the given operation.
func NewTransientError(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsBusinessRejection reports whether err is a deterministic refusal rather than
// a storage failure.
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrInsufficientFunds)
}
