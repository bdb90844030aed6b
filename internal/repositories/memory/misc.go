package memory

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories"
)

type settingsRepository struct{ s *Store }

func (r settingsRepository) ShippingPolicy(ctx context.Context) (domain.ShippingPolicy, error) {
	defer r.s.lock(ctx)()
	if r.s.state.shipping == nil {
		return domain.ShippingPolicy{}, repositories.NotFound("settings.shipping", "shipping policy not configured")
	}
	return *r.s.state.shipping, nil
}

func (r settingsRepository) SaveShippingPolicy(ctx context.Context, policy domain.ShippingPolicy) error {
	defer r.s.lock(ctx)()
	r.s.state.shipping = &policy
	return nil
}

type counterRepository struct{ s *Store }

func (r counterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, fmt.Errorf("%w: counter id is required", repositories.ErrInvalidCounter)
	}
	if step < 0 {
		return 0, fmt.Errorf("%w: negative step %d", repositories.ErrInvalidCounter, step)
	}
	defer r.s.lock(ctx)()
	counter := r.s.state.counters[id]
	if step == 0 {
		step = max(counter.step, 1)
	}
	value := counter.value + step
	if counter.max != nil && value > *counter.max {
		return 0, fmt.Errorf("counter %s passed max value %d: %w", id, *counter.max, repositories.ErrCounterExhausted)
	}
	counter.value = value
	counter.step = step
	r.s.state.counters[id] = counter
	return value, nil
}

func (r counterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return fmt.Errorf("%w: counter id is required", repositories.ErrInvalidCounter)
	}
	defer r.s.lock(ctx)()
	counter := r.s.state.counters[id]
	if cfg.Step > 0 {
		counter.step = cfg.Step
	}
	if cfg.MaxValue != nil {
		limit := *cfg.MaxValue
		counter.max = &limit
	}
	if cfg.InitialValue != nil {
		counter.value = *cfg.InitialValue
	}
	r.s.state.counters[id] = counter
	return nil
}

type catalogRepository struct{ s *Store }

// Product reads the seeded catalog, which is immutable after New.
func (r catalogRepository) Product(_ context.Context, productID string) (domain.Product, error) {
	product, ok := r.s.products[strings.TrimSpace(productID)]
	if !ok {
		return domain.Product{}, repositories.NotFound("catalog.product", "product %s not found", productID)
	}
	return product, nil
}

type cartRepository struct{ s *Store }

func (r cartRepository) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	defer r.s.lock(ctx)()
	cart, ok := r.s.state.carts[sessionID]
	if !ok {
		return domain.Cart{}, repositories.NotFound("carts.get", "cart %s not found", sessionID)
	}
	return cart.Clone(), nil
}

func (r cartRepository) Save(ctx context.Context, cart domain.Cart) error {
	defer r.s.lock(ctx)()
	r.s.state.carts[cart.SessionID] = cart.Clone()
	return nil
}

func (r cartRepository) Delete(ctx context.Context, sessionID string) error {
	defer r.s.lock(ctx)()
	delete(r.s.state.carts, sessionID)
	return nil
}
