package services

import (
	"errors"
	"fmt"
)

var (
	// ErrCouponInvalidInput signals malformed coupon input.
	ErrCouponInvalidInput = errors.New("coupon: invalid input")
	// ErrCouponNotFound indicates no coupon exists for the code.
	ErrCouponNotFound = errors.New("coupon: not found")
	// ErrCouponConflict indicates a coupon with the same code already exists.
	ErrCouponConflict = errors.New("coupon: conflict")
	// ErrCouponRejected is wrapped by every CouponRejectedError.
	ErrCouponRejected = errors.New("coupon: rejected")
	// ErrCouponUsageLimitReached indicates the coupon cannot be used again.
	ErrCouponUsageLimitReached = errors.New("coupon: usage limit reached")
)

// CouponRejectedError reports why a coupon was refused. It matches ErrCouponRejected, and also
// ErrCouponUsageLimitReached when that is the reason.
type CouponRejectedError struct {
	Code    string
	Reason  CouponRejectionReason
	Message string
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

func (e *CouponRejectedError) Is(target error) bool {
	switch target {
	case ErrCouponRejected:
		return true
	case ErrCouponUsageLimitReached:
		return e.Reason == CouponReasonUsageLimitReached
	}
	return false
}
