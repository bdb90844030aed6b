package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/textutil"
	"github.com/glassworks/storefront/internal/repositories"
)

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,63}$`)

// CouponServiceDeps bundles collaborators required to construct the coupon service.
type CouponServiceDeps struct {
	Coupons   repositories.CouponRepository
	Localizer *textutil.Localizer
	Clock     func() time.Time
	Logger    Logger
}

type couponService struct {
	coupons   repositories.CouponRepository
	localizer *textutil.Localizer
	clock     func() time.Time
	logger    Logger
}

// NewCouponService constructs the coupon service.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	if deps.Localizer == nil {
		return nil, errors.New("coupon service: localizer is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &couponService{
		coupons:   deps.Coupons,
		localizer: deps.Localizer,
		clock:     func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// Validate checks the code in a fixed order and stops at the first failing rule. Rule failures
// are reported in the result, not as errors.
func (s *couponService) Validate(ctx context.Context, code string, subtotal int64) (CouponValidation, error) {
	normalized := domain.NormalizeCouponCode(code)
	if normalized == "" {
		return CouponValidation{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}

	coupon, err := s.coupons.Get(ctx, normalized)
	if err != nil {
		if repositories.IsNotFound(err) {
			return s.reject(CouponReasonNotFound, textutil.MsgCouponNotFound), nil
		}
		return CouponValidation{}, storeError(err)
	}

	result := CouponValidation{Coupon: coupon}
	switch {
	case !coupon.IsActive:
		return s.rejectCoupon(result, CouponReasonInactive, s.localizer.Text(textutil.MsgCouponInactive)), nil
	case coupon.Expired(s.clock()):
		return s.rejectCoupon(result, CouponReasonExpired, s.localizer.Text(textutil.MsgCouponExpired)), nil
	case coupon.UsageExhausted():
		return s.rejectCoupon(result, CouponReasonUsageLimitReached, s.localizer.Text(textutil.MsgCouponUsageLimit)), nil
	case coupon.MinOrderAmount > 0 && subtotal < coupon.MinOrderAmount:
		message := s.localizer.Text(textutil.MsgCouponMinimumNotMet, s.localizer.Money(coupon.MinOrderAmount))
		return s.rejectCoupon(result, CouponReasonMinimumNotMet, message), nil
	}

	result.Valid = true
	result.Discount = ComputeDiscount(coupon, subtotal)
	result.Message = s.localizer.Text(textutil.MsgCouponApplied, s.localizer.Money(result.Discount))
	return result, nil
}

// Apply records one use of the coupon. Callers run it inside the order unit of work.
func (s *couponService) Apply(ctx context.Context, code string) (Coupon, error) {
	normalized := domain.NormalizeCouponCode(code)
	if normalized == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	coupon, err := s.coupons.IncrementUsage(ctx, normalized, s.clock())
	if err != nil {
		return Coupon{}, s.mapRepositoryError(err)
	}
	return coupon, nil
}

func (s *couponService) CreateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon, err := s.couponFromCommand(cmd)
	if err != nil {
		return Coupon{}, err
	}
	now := s.clock()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	if err := s.coupons.Insert(ctx, coupon); err != nil {
		return Coupon{}, s.mapRepositoryError(err)
	}
	s.logger(ctx, "coupon.created", map[string]any{"code": coupon.Code})
	return coupon, nil
}

// UpdateCoupon rewrites the coupon definition; code and usedCount cannot change.
func (s *couponService) UpdateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon, err := s.couponFromCommand(cmd)
	if err != nil {
		return Coupon{}, err
	}
	coupon.UpdatedAt = s.clock()
	if err := s.coupons.Update(ctx, coupon); err != nil {
		return Coupon{}, s.mapRepositoryError(err)
	}
	updated, err := s.coupons.Get(ctx, coupon.Code)
	if err != nil {
		return Coupon{}, s.mapRepositoryError(err)
	}
	s.logger(ctx, "coupon.updated", map[string]any{"code": coupon.Code})
	return updated, nil
}

func (s *couponService) GetCoupon(ctx context.Context, code string) (Coupon, error) {
	coupon, err := s.coupons.Get(ctx, domain.NormalizeCouponCode(code))
	if err != nil {
		return Coupon{}, s.mapRepositoryError(err)
	}
	return coupon, nil
}

func (s *couponService) ListCoupons(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.coupons.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return coupons, nil
}

func (s *couponService) DeleteCoupon(ctx context.Context, code string) error {
	normalized := domain.NormalizeCouponCode(code)
	if err := s.coupons.Delete(ctx, normalized); err != nil {
		return s.mapRepositoryError(err)
	}
	s.logger(ctx, "coupon.deleted", map[string]any{"code": normalized})
	return nil
}

func (s *couponService) couponFromCommand(cmd UpsertCouponCommand) (Coupon, error) {
	code := domain.NormalizeCouponCode(cmd.Code)
	if !couponCodePattern.MatchString(code) {
		return Coupon{}, fmt.Errorf("%w: code must be 2-64 characters of A-Z, 0-9, '-' or '_'", ErrCouponInvalidInput)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(cmd.DiscountValue))
	if err != nil {
		return Coupon{}, fmt.Errorf("%w: discount value must be numeric", ErrCouponInvalidInput)
	}

	switch cmd.DiscountType {
	case domain.DiscountTypePercentage:
		if !value.IsPositive() || value.GreaterThan(hundred) {
			return Coupon{}, fmt.Errorf("%w: percentage must be greater than 0 and at most 100", ErrCouponInvalidInput)
		}
	case domain.DiscountTypeFixed:
		if !value.IsPositive() || !value.IsInteger() {
			return Coupon{}, fmt.Errorf("%w: fixed discount must be a positive amount in minor units", ErrCouponInvalidInput)
		}
	default:
		return Coupon{}, fmt.Errorf("%w: unsupported discount type %q", ErrCouponInvalidInput, cmd.DiscountType)
	}
	if cmd.MinOrderAmount < 0 {
		return Coupon{}, fmt.Errorf("%w: minimum order amount must not be negative", ErrCouponInvalidInput)
	}
	if cmd.MaxUses < 0 {
		return Coupon{}, fmt.Errorf("%w: max uses must not be negative", ErrCouponInvalidInput)
	}

	var expires *time.Time
	if cmd.ExpiresAt != nil {
		value := cmd.ExpiresAt.UTC()
		expires = &value
	}
	return Coupon{
		Code:           code,
		DiscountType:   cmd.DiscountType,
		DiscountValue:  value,
		MinOrderAmount: cmd.MinOrderAmount,
		MaxUses:        cmd.MaxUses,
		IsActive:       cmd.IsActive,
		ExpiresAt:      expires,
	}, nil
}

func (s *couponService) reject(reason CouponRejectionReason, key string) CouponValidation {
	return CouponValidation{Reason: reason, Message: s.localizer.Text(key)}
}

func (s *couponService) rejectCoupon(result CouponValidation, reason CouponRejectionReason, message string) CouponValidation {
	result.Valid = false
	result.Reason = reason
	result.Message = message
	return result
}

func (s *couponService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrUsageLimitReached) {
		return fmt.Errorf("%w: %v", ErrCouponUsageLimitReached, err)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCouponNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCouponConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return err
}
