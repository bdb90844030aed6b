package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OptionKey identifies a product variant dimension such as "size" or "frame".
// Keys are language independent; display labels live in the catalog.
type OptionKey string

// NormalizeOptionKey lower-cases and slugifies a raw option key.
func NormalizeOptionKey(raw string) OptionKey {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	return OptionKey(strings.Join(strings.Fields(trimmed), "-"))
}

// Product is the read-only catalog projection consumed for cart pricing.
type Product struct {
	ID        string
	Name      string
	BasePrice int64
	Active    bool
	Options   []ProductOption
}

// ProductOption describes a selectable variant dimension.
type ProductOption struct {
	Key      OptionKey
	Label    string
	Required bool
	Choices  []OptionChoice
}

// OptionChoice is one selectable value with its price delta in minor units.
type OptionChoice struct {
	ID         string
	Label      string
	PriceDelta int64
}

// Option returns the product option identified by key.
func (p Product) Option(key OptionKey) (ProductOption, bool) {
	for _, opt := range p.Options {
		if opt.Key == key {
			return opt, true
		}
	}
	return ProductOption{}, false
}

// Choice returns the choice identified by id.
func (o ProductOption) Choice(id string) (OptionChoice, bool) {
	for _, choice := range o.Choices {
		if choice.ID == id {
			return choice, true
		}
	}
	return OptionChoice{}, false
}

// CartLine is a single cart entry. Money values are minor units.
type CartLine struct {
	Key                  string
	ProductRef           string
	Name                 string
	UnitPrice            int64
	Quantity             int
	SelectedOptions      map[OptionKey]string
	OptionLabels         map[OptionKey]string
	PersonalizationImage string
	PersonalizationNote  string
}

// LineTotal returns unit price multiplied by quantity.
func (l CartLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Cart aggregates lines for a shopper session.
type Cart struct {
	SessionID string
	Currency  string
	Lines     []CartLine
	Visible   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DiscountType enumerates coupon discount kinds.
type DiscountType string

const (
	// DiscountTypePercentage discounts a percentage of the subtotal.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed discounts a fixed amount in minor units.
	DiscountTypeFixed DiscountType = "fixed"
)

// Coupon is a discount code with usage accounting.
type Coupon struct {
	Code           string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	MinOrderAmount int64
	MaxUses        int64
	UsedCount      int64
	IsActive       bool
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizeCouponCode trims and upper-cases a coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// UsageExhausted reports whether the coupon reached its usage limit. MaxUses of zero is unlimited.
func (c Coupon) UsageExhausted() bool {
	return c.MaxUses > 0 && c.UsedCount >= c.MaxUses
}

// Expired reports whether the coupon expired at or before now.
func (c Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// ShippingPolicy holds the flat-rate shipping configuration.
type ShippingPolicy struct {
	FlatShippingCost      int64
	FreeShippingThreshold int64
	UpdatedAt             time.Time
	UpdatedBy             string
}

// PaymentMethod records how the shopper intends to pay.
type PaymentMethod string

const (
	// PaymentMethodCard indicates card payment.
	PaymentMethodCard PaymentMethod = "card_payment"
	// PaymentMethodBankTransfer indicates a manual bank transfer.
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether the payment method is supported.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodBankTransfer
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of every order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the order was accepted by staff.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing indicates the piece is being produced.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusShipped indicates the order left the workshop.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every lifecycle state in progression order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether the status is a known lifecycle state.
func (s OrderStatus) Valid() bool {
	for _, candidate := range OrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Customer captures the contact and delivery details entered at checkout.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
}

// OrderItem is the immutable snapshot of a cart line stored on an order.
type OrderItem struct {
	ProductRef           string
	Name                 string
	UnitPrice            int64
	Quantity             int
	LineTotal            int64
	SelectedOptions      map[OptionKey]string
	OptionLabels         map[OptionKey]string
	PersonalizationImage string
	PersonalizationNote  string
}

// Order is the persisted result of a checkout.
type Order struct {
	ID             string
	OrderNumber    string
	Customer       Customer
	Items          []OrderItem
	Currency       string
	Subtotal       int64
	ShippingCost   int64
	CouponCode     string
	CouponDiscount int64
	Total          int64
	PaymentMethod  PaymentMethod
	Status         OrderStatus
	Note           string
	AdminNote      string
	TrackingNumber string
	ManualReview   bool
	ReviewReason   string
	DisplayDate    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderNumberState tracks the lifecycle of an issued order number.
type OrderNumberState string

const (
	// OrderNumberReserved marks a number handed out ahead of checkout.
	OrderNumberReserved OrderNumberState = "reserved"
	// OrderNumberCommitted marks a number bound to a persisted order.
	OrderNumberCommitted OrderNumberState = "committed"
)

// OrderNumberEntry is the registry record guaranteeing order number uniqueness.
type OrderNumberEntry struct {
	Number      string
	State       OrderNumberState
	// SessionID is the cart session a reservation was issued to.
	SessionID   string
	OrderID     string
	ReservedAt  time.Time
	CommittedAt *time.Time
}

// OrderStatusChange is an append-only audit record of a lifecycle transition.
type OrderStatusChange struct {
	ID         string
	OrderID    string
	From       OrderStatus
	To         OrderStatus
	ActorID    string
	Reason     string
	OccurredAt time.Time
}

// Health status values reported by readiness checks.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the result of probing one dependency.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for the readiness endpoint.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
