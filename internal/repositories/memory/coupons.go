package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories"
)

type couponRepository struct{ s *Store }

func (r couponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	defer r.s.lock(ctx)()
	code := domain.NormalizeCouponCode(coupon.Code)
	if _, exists := r.s.state.coupons[code]; exists {
		return repositories.Conflict("coupons.insert", "coupon %s already exists", code)
	}
	coupon.Code = code
	r.s.state.coupons[code] = cloneCoupon(coupon)
	return nil
}

func (r couponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	defer r.s.lock(ctx)()
	code := domain.NormalizeCouponCode(coupon.Code)
	current, ok := r.s.state.coupons[code]
	if !ok {
		return repositories.NotFound("coupons.update", "coupon %s not found", code)
	}
	coupon.Code = code
	coupon.UsedCount = current.UsedCount
	coupon.CreatedAt = current.CreatedAt
	r.s.state.coupons[code] = cloneCoupon(coupon)
	return nil
}

func (r couponRepository) Delete(ctx context.Context, code string) error {
	defer r.s.lock(ctx)()
	code = domain.NormalizeCouponCode(code)
	if _, ok := r.s.state.coupons[code]; !ok {
		return repositories.NotFound("coupons.delete", "coupon %s not found", code)
	}
	delete(r.s.state.coupons, code)
	return nil
}

func (r couponRepository) Get(ctx context.Context, code string) (domain.Coupon, error) {
	defer r.s.lock(ctx)()
	coupon, ok := r.s.state.coupons[domain.NormalizeCouponCode(code)]
	if !ok {
		return domain.Coupon{}, repositories.NotFound("coupons.get", "coupon %s not found", code)
	}
	return cloneCoupon(coupon), nil
}

func (r couponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	defer r.s.lock(ctx)()
	coupons := make([]domain.Coupon, 0, len(r.s.state.coupons))
	for _, coupon := range r.s.state.coupons {
		coupons = append(coupons, cloneCoupon(coupon))
	}
	slices.SortFunc(coupons, func(a, b domain.Coupon) int { return strings.Compare(a.Code, b.Code) })
	return coupons, nil
}

func (r couponRepository) IncrementUsage(ctx context.Context, code string, now time.Time) (domain.Coupon, error) {
	defer r.s.lock(ctx)()
	code = domain.NormalizeCouponCode(code)
	coupon, ok := r.s.state.coupons[code]
	if !ok {
		return domain.Coupon{}, repositories.NotFound("coupons.increment_usage", "coupon %s not found", code)
	}
	if coupon.UsageExhausted() {
		return domain.Coupon{}, repositories.ErrUsageLimitReached
	}
	coupon.UsedCount++
	coupon.UpdatedAt = now
	r.s.state.coupons[code] = coupon
	return cloneCoupon(coupon), nil
}
