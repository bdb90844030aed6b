package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/glassworks/storefront/internal/domain"
	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/repositories"
)

const couponsCollection = "coupons"

// CouponRepository stores coupons keyed by their normalised code.
type CouponRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection),
	}, nil
}

func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	code := domain.NormalizeCouponCode(coupon.Code)
	if code == "" {
		return errors.New("coupon repository: code is required")
	}
	return r.base.Create(ctx, code, encodeCoupon(coupon))
}

// Update overwrites the coupon but keeps usedCount, which only IncrementUsage changes.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	code := domain.NormalizeCouponCode(coupon.Code)
	doc := encodeCoupon(coupon)
	return r.base.Update(ctx, code, []firestore.Update{
		{Path: "discountType", Value: doc.DiscountType},
		{Path: "discountValue", Value: doc.DiscountValue},
		{Path: "minOrderAmount", Value: doc.MinOrderAmount},
		{Path: "maxUses", Value: doc.MaxUses},
		{Path: "isActive", Value: doc.IsActive},
		{Path: "expiresAt", Value: doc.ExpiresAt},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	})
}

func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	code = domain.NormalizeCouponCode(code)
	if _, err := r.base.Get(ctx, code); err != nil {
		return err
	}
	return r.base.Delete(ctx, code)
}

func (r *CouponRepository) Get(ctx context.Context, code string) (domain.Coupon, error) {
	doc, err := r.base.Get(ctx, domain.NormalizeCouponCode(code))
	if err != nil {
		return domain.Coupon{}, err
	}
	return decodeCoupon(doc.ID, doc.Data)
}

func (r *CouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	coupons := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		coupon, err := decodeCoupon(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, coupon)
	}
	return coupons, nil
}

// IncrementUsage reads and conditionally bumps usedCount. Outside a unit of work it opens its
// own scope so the read and write stay in one transaction.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code string, now time.Time) (domain.Coupon, error) {
	code = domain.NormalizeCouponCode(code)
	var updated domain.Coupon
	err := r.provider.RunInScope(ctx, func(ctx context.Context) error {
		doc, err := r.base.Get(ctx, code)
		if err != nil {
			return err
		}
		coupon, err := decodeCoupon(doc.ID, doc.Data)
		if err != nil {
			return err
		}
		if coupon.UsageExhausted() {
			return repositories.ErrUsageLimitReached
		}
		coupon.UsedCount++
		coupon.UpdatedAt = now.UTC()
		updated = coupon
		return r.base.Update(ctx, code, []firestore.Update{
			{Path: "usedCount", Value: coupon.UsedCount},
			{Path: "updatedAt", Value: coupon.UpdatedAt},
		})
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	return updated, nil
}

type couponDocument struct {
	DiscountType   string     `firestore:"discountType"`
	DiscountValue  string     `firestore:"discountValue"`
	MinOrderAmount int64      `firestore:"minOrderAmount"`
	MaxUses        int64      `firestore:"maxUses"`
	UsedCount      int64      `firestore:"usedCount"`
	IsActive       bool       `firestore:"isActive"`
	ExpiresAt      *time.Time `firestore:"expiresAt"`
	CreatedAt      time.Time  `firestore:"createdAt"`
	UpdatedAt      time.Time  `firestore:"updatedAt"`
}

func encodeCoupon(coupon domain.Coupon) couponDocument {
	var expires *time.Time
	if coupon.ExpiresAt != nil {
		value := coupon.ExpiresAt.UTC()
		expires = &value
	}
	return couponDocument{
		DiscountType:   string(coupon.DiscountType),
		DiscountValue:  coupon.DiscountValue.String(),
		MinOrderAmount: coupon.MinOrderAmount,
		MaxUses:        coupon.MaxUses,
		UsedCount:      coupon.UsedCount,
		IsActive:       coupon.IsActive,
		ExpiresAt:      expires,
		CreatedAt:      coupon.CreatedAt.UTC(),
		UpdatedAt:      coupon.UpdatedAt.UTC(),
	}
}

func decodeCoupon(code string, doc couponDocument) (domain.Coupon, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(doc.DiscountValue))
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("coupon %s: invalid discount value %q: %w", code, doc.DiscountValue, err)
	}
	return domain.Coupon{
		Code:           code,
		DiscountType:   domain.DiscountType(doc.DiscountType),
		DiscountValue:  value,
		MinOrderAmount: doc.MinOrderAmount,
		MaxUses:        doc.MaxUses,
		UsedCount:      doc.UsedCount,
		IsActive:       doc.IsActive,
		ExpiresAt:      doc.ExpiresAt,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)
