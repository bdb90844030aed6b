// Package memory implements the repository registry on process memory for local development
// and tests. Every operation is serialised on one mutex; RunInTx holds it for the whole unit of
// work and restores a snapshot when fn fails.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories"
)

type txKey struct{}

type counterState struct {
	value int64
	step  int64
	max   *int64
}

type state struct {
	orders   map[string]domain.Order
	numbers  map[string]domain.OrderNumberEntry
	history  map[string][]domain.OrderStatusChange
	coupons  map[string]domain.Coupon
	counters map[string]counterState
	shipping *domain.ShippingPolicy
	carts    map[string]domain.Cart
}

func (s state) clone() state {
	out := state{
		orders:   maps.Clone(s.orders),
		numbers:  maps.Clone(s.numbers),
		history:  maps.Clone(s.history),
		coupons:  maps.Clone(s.coupons),
		counters: maps.Clone(s.counters),
		carts:    maps.Clone(s.carts),
	}
	if s.shipping != nil {
		policy := *s.shipping
		out.shipping = &policy
	}
	return out
}

// Store holds all collections. Values are copied on the way in and out.
type Store struct {
	mu       sync.Mutex
	state    state
	products map[string]domain.Product
	checks   []repositories.DependencyCheck
	health   repositories.HealthRepository
}

// Option customises the memory store.
type Option func(*Store)

// WithProducts seeds the read-only catalog.
func WithProducts(products ...domain.Product) Option {
	return func(s *Store) {
		for _, product := range products {
			s.products[product.ID] = product
		}
	}
}

// WithDependencyChecks adds readiness checks for collaborators such as a Redis cart store.
func WithDependencyChecks(checks ...repositories.DependencyCheck) Option {
	return func(s *Store) {
		s.checks = append(s.checks, checks...)
	}
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		state: state{
			orders:   map[string]domain.Order{},
			numbers:  map[string]domain.OrderNumberEntry{},
			history:  map[string][]domain.OrderStatusChange{},
			coupons:  map[string]domain.Coupon{},
			counters: map[string]counterState{},
			carts:    map[string]domain.Cart{},
		},
		products: map[string]domain.Product{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	checks := append([]repositories.DependencyCheck{{
		Name:  "memory",
		Check: func(context.Context) error { return nil },
	}}, s.checks...)
	s.health, _ = repositories.NewDependencyHealthRepository(checks)
	return s
}

// lock acquires the store mutex unless ctx already runs inside this store's unit of work.
func (s *Store) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunInTx serialises fn against every other store operation and rolls back on error.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) Orders() repositories.OrderRepository { return orderRepository{s} }

func (s *Store) OrderNumbers() repositories.OrderNumberRepository { return orderNumberRepository{s} }

func (s *Store) StatusHistory() repositories.OrderStatusHistoryRepository {
	return historyRepository{s}
}

func (s *Store) Coupons() repositories.CouponRepository { return couponRepository{s} }

func (s *Store) Settings() repositories.SettingsRepository { return settingsRepository{s} }

func (s *Store) Counters() repositories.CounterRepository { return counterRepository{s} }

func (s *Store) Catalog() repositories.CatalogRepository { return catalogRepository{s} }

func (s *Store) Health() repositories.HealthRepository { return s.health }

// Carts exposes the cart repository backed by the same store.
func (s *Store) Carts() repositories.CartRepository { return cartRepository{s} }

var _ repositories.Registry = (*Store)(nil)

func cloneOrder(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	for i := range order.Items {
		order.Items[i].SelectedOptions = maps.Clone(order.Items[i].SelectedOptions)
		order.Items[i].OptionLabels = maps.Clone(order.Items[i].OptionLabels)
	}
	return order
}

func cloneCoupon(coupon domain.Coupon) domain.Coupon {
	if coupon.ExpiresAt != nil {
		expires := *coupon.ExpiresAt
		coupon.ExpiresAt = &expires
	}
	return coupon
}
