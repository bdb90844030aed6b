package domain

// ReviewReasonNegativeTotal flags orders whose discount exceeded subtotal plus shipping.
const ReviewReasonNegativeTotal = "negative_total_clamped"

// OrderTotals captures the reconciled monetary breakdown of an order.
type OrderTotals struct {
	Subtotal       int64
	ShippingCost   int64
	CouponDiscount int64
	Total          int64
	Clamped        bool
}

// ReconcileTotals computes subtotal + shipping - discount and clamps negative results to zero.
func ReconcileTotals(subtotal, shipping, discount int64) OrderTotals {
	totals := OrderTotals{
		Subtotal:       subtotal,
		ShippingCost:   shipping,
		CouponDiscount: discount,
		Total:          subtotal + shipping - discount,
	}
	if totals.Total < 0 {
		totals.Total = 0
		totals.Clamped = true
	}
	return totals
}
