package services

import (
	"github.com/shopspring/decimal"

	domain "github.com/glassworks/storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the discount a coupon grants on subtotal, in minor units. Percentage
// discounts round down. The result is always within [0, subtotal].
func ComputeDiscount(coupon Coupon, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	var discount int64
	switch coupon.DiscountType {
	case domain.DiscountTypePercentage:
		discount = decimal.NewFromInt(subtotal).Mul(coupon.DiscountValue).Div(hundred).Floor().IntPart()
	case domain.DiscountTypeFixed:
		discount = coupon.DiscountValue.Floor().IntPart()
	}
	return max(min(discount, subtotal), 0)
}

// ComputeShipping returns zero at or above the free shipping threshold and the flat cost below it.
func ComputeShipping(subtotal int64, policy ShippingPolicy) int64 {
	if subtotal >= policy.FreeShippingThreshold {
		return 0
	}
	return policy.FlatShippingCost
}
