package services

import (
	"context"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Product            = domain.Product
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	OptionKey          = domain.OptionKey
	Coupon             = domain.Coupon
	DiscountType       = domain.DiscountType
	ShippingPolicy     = domain.ShippingPolicy
	Customer           = domain.Customer
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderStatusChange  = domain.OrderStatusChange
	OrderNumberEntry   = domain.OrderNumberEntry
	PaymentMethod      = domain.PaymentMethod
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogReader resolves products for cart pricing.
type CatalogReader = repositories.CatalogRepository

// Logger receives structured service events.
type Logger func(ctx context.Context, event string, fields map[string]any)

// CartService manages shopper carts keyed by an opaque session id.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateQuantity(ctx context.Context, sessionID, lineKey string, quantity int) (Cart, error)
	RemoveItem(ctx context.Context, sessionID, lineKey string) (Cart, error)
	Clear(ctx context.Context, sessionID string) error
	SetVisibility(ctx context.Context, sessionID string, visible bool) (Cart, error)
}

// CouponService validates coupons for shoppers and manages them for staff.
type CouponService interface {
	Validate(ctx context.Context, code string, subtotal int64) (CouponValidation, error)
	Apply(ctx context.Context, code string) (Coupon, error)

	CreateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	UpdateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	GetCoupon(ctx context.Context, code string) (Coupon, error)
	ListCoupons(ctx context.Context) ([]Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
}

// SettingsService exposes the shipping policy.
type SettingsService interface {
	ShippingPolicy(ctx context.Context) (ShippingPolicy, error)
	UpdateShippingPolicy(ctx context.Context, cmd UpdateShippingPolicyCommand) (ShippingPolicy, error)
}

// OrderNumberAllocator issues unique order numbers.
type OrderNumberAllocator interface {
	// Generate produces a candidate number; uniqueness is enforced when it is claimed.
	Generate(ctx context.Context) (string, error)
	// Regenerate produces the next candidate after a collision on previous.
	Regenerate(ctx context.Context, previous string) (string, error)
	// Reserve registers a number ahead of checkout, bound to the cart session.
	Reserve(ctx context.Context, sessionID string) (OrderNumberEntry, error)
	// PurgeExpiredReservations drops reservations older than maxAge and returns how many.
	PurgeExpiredReservations(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// OrderService owns order persistence and the lifecycle state machine.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	// FindReservedOrder returns the order sessionID already placed with a reserved number.
	FindReservedOrder(ctx context.Context, number, sessionID, email string) (Order, bool, error)
	GetOrder(ctx context.Context, ref string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	UpdateFields(ctx context.Context, orderID string, patch OrderFieldsPatch) (Order, error)
	StatusHistory(ctx context.Context, orderID string) ([]OrderStatusChange, error)
}

// CheckoutService turns a cart into an order.
type CheckoutService interface {
	ValidateCoupon(ctx context.Context, sessionID, code string) (CouponValidation, error)
	QuoteShipping(ctx context.Context, sessionID string) (ShippingQuote, error)
	ReserveOrderNumber(ctx context.Context, sessionID string) (OrderNumberEntry, error)
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
}

// AddCartItemCommand adds a product with its selected options to a cart.
type AddCartItemCommand struct {
	SessionID            string
	ProductID            string
	Quantity             int
	Options              map[string]string
	PersonalizationImage string
	PersonalizationNote  string
}

// CouponRejectionReason enumerates why a coupon cannot be used.
type CouponRejectionReason string

const (
	CouponReasonNotFound          CouponRejectionReason = "not_found"
	CouponReasonInactive          CouponRejectionReason = "inactive"
	CouponReasonExpired           CouponRejectionReason = "expired"
	CouponReasonUsageLimitReached CouponRejectionReason = "usage_limit_reached"
	CouponReasonMinimumNotMet     CouponRejectionReason = "minimum_not_met"
)

// CouponValidation reports the outcome of validating a code against a subtotal.
type CouponValidation struct {
	Valid    bool
	Coupon   Coupon
	Discount int64
	Reason   CouponRejectionReason
	Message  string
}

// UpsertCouponCommand carries admin coupon input. UsedCount is never accepted.
type UpsertCouponCommand struct {
	Code           string
	DiscountType   DiscountType
	DiscountValue  string
	MinOrderAmount int64
	MaxUses        int64
	IsActive       bool
	ExpiresAt      *time.Time
}

// UpdateShippingPolicyCommand replaces the shipping policy.
type UpdateShippingPolicyCommand struct {
	FlatShippingCost      int64
	FreeShippingThreshold int64
	ActorID               string
}

// ShippingQuote summarises cart totals before checkout.
type ShippingQuote struct {
	Subtotal              int64
	ShippingCost          int64
	FreeShippingThreshold int64
	Currency              string
}

// BuildOrderInput carries everything the order factory needs.
type BuildOrderInput struct {
	Items         []CartLine
	Customer      Customer
	PaymentMethod PaymentMethod
	Note          string
	Coupon        *Coupon
	Policy        ShippingPolicy
	OrderNumber   string
}

// CreateOrderCommand persists a new order from cart lines. A non-empty ReservedNumber must have
// been issued by OrderNumberAllocator.Reserve to SessionID.
type CreateOrderCommand struct {
	SessionID      string
	Items          []CartLine
	Customer       Customer
	PaymentMethod  PaymentMethod
	Note           string
	Coupon         *Coupon
	Policy         ShippingPolicy
	ReservedNumber string
}

// PlaceOrderCommand is the shopper checkout request.
type PlaceOrderCommand struct {
	SessionID      string        `validate:"required"`
	PaymentMethod  PaymentMethod `validate:"required,oneof=card_payment bank_transfer"`
	CouponCode     string        `validate:"omitempty,max=64"`
	Note           string        `validate:"omitempty,max=2000"`
	ReservedNumber string        `validate:"omitempty,max=64"`
	Customer       Customer
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status        []OrderStatus
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	CustomerEmail string
	Pagination    Pagination
}

// UpdateOrderStatusCommand requests a lifecycle transition.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
	ActorID string
	Reason  string
}

// OrderFieldsPatch lists the only order fields editable after creation. Nil leaves a field unchanged.
type OrderFieldsPatch struct {
	TrackingNumber *string
	AdminNote      *string
}

// OrderNotifier delivers the customer confirmation for a new order.
type OrderNotifier interface {
	NotifyOrderCreated(ctx context.Context, notification OrderNotification) error
}

// OrderNotification is the payload handed to the mail worker. Amounts are preformatted.
type OrderNotification struct {
	OrderID       string
	OrderNumber   string
	Locale        string
	CustomerName  string
	CustomerEmail string
	PaymentMethod PaymentMethod
	DisplayDate   string
	Items         []OrderNotificationItem
	Subtotal      string
	ShippingCost  string
	Discount      string
	Total         string
}

// OrderNotificationItem is one rendered line of the confirmation mail.
type OrderNotificationItem struct {
	Name      string
	Quantity  int
	LineTotal string
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus OrderStatus
	CurrentStatus  OrderStatus
	ActorID        string
	Total          int64
	OccurredAt     time.Time
}

// PersonalizationArchiver copies shopper uploads into the order's permanent storage.
type PersonalizationArchiver interface {
	ArchivePersonalization(ctx context.Context, orderID string, refs []string) ([]string, error)
}
