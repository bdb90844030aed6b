package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/textutil"
)

const orderIDPrefix = "ord_"

// OrderFactoryDeps wires the clock, id source and locale used to stamp new orders.
type OrderFactoryDeps struct {
	Localizer   *textutil.Localizer
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

// OrderFactory assembles orders from cart lines. It performs no I/O.
type OrderFactory struct {
	localizer *textutil.Localizer
	clock     func() time.Time
	newID     func() string
	logger    Logger
}

// NewOrderFactory constructs an OrderFactory.
func NewOrderFactory(deps OrderFactoryDeps) (*OrderFactory, error) {
	if deps.Localizer == nil {
		return nil, errors.New("order factory: localizer is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &OrderFactory{
		localizer: deps.Localizer,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// BuildOrder snapshots the items and computes totals. The coupon, when present, must already
// have been validated against the same items.
func (f *OrderFactory) BuildOrder(ctx context.Context, input BuildOrderInput) (Order, error) {
	if len(input.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	if !input.PaymentMethod.Valid() {
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, input.PaymentMethod)
	}
	number := strings.TrimSpace(input.OrderNumber)
	if number == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}

	items := make([]OrderItem, 0, len(input.Items))
	var subtotal int64
	for _, line := range input.Items {
		if line.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: %w", ErrOrderInvalidInput, domain.ErrInvalidQuantity)
		}
		item := OrderItem{
			ProductRef:           line.ProductRef,
			Name:                 line.Name,
			UnitPrice:            line.UnitPrice,
			Quantity:             line.Quantity,
			LineTotal:            line.LineTotal(),
			SelectedOptions:      maps.Clone(line.SelectedOptions),
			OptionLabels:         maps.Clone(line.OptionLabels),
			PersonalizationImage: line.PersonalizationImage,
			PersonalizationNote:  line.PersonalizationNote,
		}
		subtotal += item.LineTotal
		items = append(items, item)
	}

	shipping := ComputeShipping(subtotal, input.Policy)
	var (
		discount   int64
		couponCode string
	)
	if input.Coupon != nil {
		discount = ComputeDiscount(*input.Coupon, subtotal)
		couponCode = input.Coupon.Code
	}
	totals := domain.ReconcileTotals(subtotal, shipping, discount)

	now := f.clock()
	order := Order{
		ID:             orderIDPrefix + f.newID(),
		OrderNumber:    number,
		Customer:       input.Customer,
		Items:          items,
		Currency:       f.localizer.Currency(),
		Subtotal:       totals.Subtotal,
		ShippingCost:   totals.ShippingCost,
		CouponCode:     couponCode,
		CouponDiscount: totals.CouponDiscount,
		Total:          totals.Total,
		PaymentMethod:  input.PaymentMethod,
		Status:         domain.OrderStatusPending,
		Note:           input.Note,
		DisplayDate:    f.localizer.Date(now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if totals.Clamped {
		order.ManualReview = true
		order.ReviewReason = domain.ReviewReasonNegativeTotal
		f.logger(ctx, "order_total_clamped", map[string]any{
			"orderID":  order.ID,
			"number":   order.OrderNumber,
			"subtotal": subtotal,
			"shipping": shipping,
			"discount": discount,
		})
	}
	return order, nil
}
