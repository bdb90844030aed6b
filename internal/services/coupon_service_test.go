package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories/memory"
)

func newTestCouponService(t *testing.T) CouponService {
	t.Helper()
	svc, err := NewCouponService(CouponServiceDeps{
		Coupons:   memory.New().Coupons(),
		Localizer: testLocalizer(t),
		Clock:     func() time.Time { return fixtureNow },
	})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}
	return svc
}

func TestCouponValidateChecksRulesInOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestCouponService(t)
	past := fixtureNow.Add(-time.Hour)

	create := func(cmd UpsertCouponCommand) {
		t.Helper()
		if _, err := svc.CreateCoupon(ctx, cmd); err != nil {
			t.Fatalf("CreateCoupon(%s): %v", cmd.Code, err)
		}
	}
	// Inactive and expired: inactive wins.
	create(UpsertCouponCommand{Code: "OFF", DiscountType: domain.DiscountTypeFixed, DiscountValue: "100", ExpiresAt: &past})
	create(UpsertCouponCommand{Code: "OLD", DiscountType: domain.DiscountTypeFixed, DiscountValue: "100", IsActive: true, ExpiresAt: &past})
	create(UpsertCouponCommand{Code: "ONCE", DiscountType: domain.DiscountTypeFixed, DiscountValue: "100", IsActive: true, MaxUses: 1, MinOrderAmount: 10000})
	create(UpsertCouponCommand{Code: "MIN", DiscountType: domain.DiscountTypeFixed, DiscountValue: "100", IsActive: true, MinOrderAmount: 150000})
	create(UpsertCouponCommand{Code: "HALF", DiscountType: domain.DiscountTypePercentage, DiscountValue: "50", IsActive: true})

	if _, err := svc.Apply(ctx, "once"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	cases := []struct {
		code   string
		reason CouponRejectionReason
	}{
		{"NOPE", CouponReasonNotFound},
		{"off", CouponReasonInactive},
		{"OLD", CouponReasonExpired},
		{"ONCE", CouponReasonUsageLimitReached},
		{"MIN", CouponReasonMinimumNotMet},
	}
	for _, tc := range cases {
		result, err := svc.Validate(ctx, tc.code, 5000)
		if err != nil {
			t.Fatalf("Validate(%s): %v", tc.code, err)
		}
		if result.Valid || result.Reason != tc.reason {
			t.Fatalf("Validate(%s): expected %s, got %+v", tc.code, tc.reason, result)
		}
		if result.Message == "" {
			t.Fatalf("Validate(%s): expected a message", tc.code)
		}
	}

	minimum, err := svc.Validate(ctx, "MIN", 5000)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !strings.Contains(minimum.Message, "1.500,00") {
		t.Fatalf("expected localized minimum in message, got %q", minimum.Message)
	}

	half, err := svc.Validate(ctx, " half ", 999)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !half.Valid || half.Discount != 499 {
		t.Fatalf("expected valid coupon with floored discount, got %+v", half)
	}
}

func TestCouponApplyStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestCouponService(t)
	if _, err := svc.CreateCoupon(ctx, UpsertCouponCommand{Code: "TWICE", DiscountType: domain.DiscountTypeFixed, DiscountValue: "50", IsActive: true, MaxUses: 2}); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Apply(ctx, "TWICE"); err != nil {
			t.Fatalf("Apply #%d: %v", i+1, err)
		}
	}
	if _, err := svc.Apply(ctx, "TWICE"); !errors.Is(err, ErrCouponUsageLimitReached) {
		t.Fatalf("expected usage limit, got %v", err)
	}
	coupon, err := svc.GetCoupon(ctx, "twice")
	if err != nil {
		t.Fatalf("GetCoupon: %v", err)
	}
	if coupon.UsedCount != 2 {
		t.Fatalf("expected usedCount 2, got %d", coupon.UsedCount)
	}
	if _, err := svc.Apply(ctx, "MISSING"); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCouponAdminCRUD(t *testing.T) {
	ctx := context.Background()
	svc := newTestCouponService(t)

	created, err := svc.CreateCoupon(ctx, UpsertCouponCommand{Code: "spring-25", DiscountType: domain.DiscountTypePercentage, DiscountValue: "12.5", IsActive: true})
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if created.Code != "SPRING-25" || !created.CreatedAt.Equal(fixtureNow) {
		t.Fatalf("unexpected coupon %+v", created)
	}
	if _, err := svc.CreateCoupon(ctx, UpsertCouponCommand{Code: "SPRING-25", DiscountType: domain.DiscountTypeFixed, DiscountValue: "10"}); !errors.Is(err, ErrCouponConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Apply(ctx, "SPRING-25"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	updated, err := svc.UpdateCoupon(ctx, UpsertCouponCommand{Code: "SPRING-25", DiscountType: domain.DiscountTypeFixed, DiscountValue: "300", MaxUses: 10})
	if err != nil {
		t.Fatalf("UpdateCoupon: %v", err)
	}
	if updated.DiscountType != domain.DiscountTypeFixed || updated.IsActive || updated.UsedCount != 1 {
		t.Fatalf("expected update to keep usedCount, got %+v", updated)
	}

	list, err := svc.ListCoupons(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one coupon, got %v err=%v", list, err)
	}
	if err := svc.DeleteCoupon(ctx, "spring-25"); err != nil {
		t.Fatalf("DeleteCoupon: %v", err)
	}
	if _, err := svc.GetCoupon(ctx, "SPRING-25"); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := svc.DeleteCoupon(ctx, "SPRING-25"); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}

func TestCouponRejectsInvalidDefinitions(t *testing.T) {
	svc := newTestCouponService(t)
	cases := map[string]UpsertCouponCommand{
		"short code":       {Code: "A", DiscountType: domain.DiscountTypeFixed, DiscountValue: "10"},
		"bad characters":   {Code: "NO SPACES", DiscountType: domain.DiscountTypeFixed, DiscountValue: "10"},
		"zero percent":     {Code: "ZERO", DiscountType: domain.DiscountTypePercentage, DiscountValue: "0"},
		"over 100 percent": {Code: "HUGE", DiscountType: domain.DiscountTypePercentage, DiscountValue: "100.5"},
		"fractional fixed": {Code: "FRAC", DiscountType: domain.DiscountTypeFixed, DiscountValue: "10.5"},
		"non numeric":      {Code: "TEXT", DiscountType: domain.DiscountTypeFixed, DiscountValue: "ten"},
		"unknown type":     {Code: "TYPE", DiscountType: "bogo", DiscountValue: "10"},
		"negative minimum": {Code: "NEG", DiscountType: domain.DiscountTypeFixed, DiscountValue: "10", MinOrderAmount: -1},
		"negative uses":    {Code: "USES", DiscountType: domain.DiscountTypeFixed, DiscountValue: "10", MaxUses: -1},
	}
	for name, cmd := range cases {
		if _, err := svc.CreateCoupon(context.Background(), cmd); !errors.Is(err, ErrCouponInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
}
