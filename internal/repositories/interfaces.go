package repositories

import (
	"context"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderNumbers() OrderNumberRepository
	StatusHistory() OrderStatusHistoryRepository
	Coupons() CouponRepository
	Settings() SettingsRepository
	Counters() CounterRepository
	Catalog() CatalogRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in one transaction. Repositories called with the ctx
// handed to fn participate in it.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists orders. Orders are never deleted.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderNumberRepository is the uniqueness registry for issued order numbers.
type OrderNumberRepository interface {
	// Create registers a new entry and fails with a conflict error when the number exists.
	Create(ctx context.Context, entry domain.OrderNumberEntry) error
	Get(ctx context.Context, number string) (domain.OrderNumberEntry, error)
	// Commit binds a reserved number to an order.
	Commit(ctx context.Context, number, orderID string, committedAt time.Time) error
	// DeleteExpiredReservations removes up to limit entries still reserved before the cutoff
	// and returns how many were removed. Committed entries are never removed.
	DeleteExpiredReservations(ctx context.Context, before time.Time, limit int) (int, error)
}

// OrderStatusHistoryRepository stores the append-only lifecycle audit trail.
type OrderStatusHistoryRepository interface {
	Append(ctx context.Context, change domain.OrderStatusChange) error
	List(ctx context.Context, orderID string) ([]domain.OrderStatusChange, error)
}

// CouponRepository persists coupons keyed by normalised code.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) error
	Update(ctx context.Context, coupon domain.Coupon) error
	Delete(ctx context.Context, code string) error
	Get(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context) ([]domain.Coupon, error)
	// IncrementUsage atomically adds one use and fails with ErrUsageLimitReached when the
	// coupon is already at MaxUses.
	IncrementUsage(ctx context.Context, code string, now time.Time) (domain.Coupon, error)
}

// SettingsRepository stores the global storefront settings document.
type SettingsRepository interface {
	ShippingPolicy(ctx context.Context) (domain.ShippingPolicy, error)
	SaveShippingPolicy(ctx context.Context, policy domain.ShippingPolicy) error
}

// CartRepository persists carts per session.
type CartRepository interface {
	Get(ctx context.Context, sessionID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

// CatalogRepository is the read-only product projection used for pricing.
type CatalogRepository interface {
	Product(ctx context.Context, productID string) (domain.Product, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// OrderListFilter narrows admin order listings. Results are newest first.
type OrderListFilter struct {
	Status        []domain.OrderStatus
	CreatedRange  domain.RangeQuery[time.Time]
	CustomerEmail string
	Pagination    domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
