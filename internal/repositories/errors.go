package repositories

import (
	"errors"
	"fmt"
)

var (
	// ErrUsageLimitReached is returned by CouponRepository.IncrementUsage when MaxUses is hit.
	ErrUsageLimitReached = errors.New("repositories: coupon usage limit reached")
	// ErrCounterExhausted means the next value would pass the counter's MaxValue, e.g. more
	// than 999999 sequence order numbers in one year.
	ErrCounterExhausted = errors.New("repositories: counter exhausted")
	// ErrInvalidCounter rejects an empty counter id or a negative step.
	ErrInvalidCounter = errors.New("repositories: invalid counter request")
)

// Error is the RepositoryError implementation shared by the memory and Redis backends.
type Error struct {
	Op          string
	Err         error
	NotFound    bool
	Conflict    bool
	Unavailable bool
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error       { return e.Err }
func (e *Error) IsNotFound() bool    { return e != nil && e.NotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.Conflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.Unavailable }

// NotFound builds a not-found repository error.
func NotFound(op, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...), NotFound: true}
}

// Conflict builds a conflict repository error.
func Conflict(op, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...), Conflict: true}
}

// Unavailable wraps a transient backend failure.
func Unavailable(op string, err error) error {
	return &Error{Op: op, Err: err, Unavailable: true}
}

// IsNotFound reports whether err is a RepositoryError flagged as not found.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err is a RepositoryError flagged as conflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
