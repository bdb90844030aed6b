package firestore

import (
	"context"
	"fmt"

	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/repositories"
)

// Registry wires every Firestore repository around one provider.
type Registry struct {
	provider *pfirestore.Provider

	orders        *OrderRepository
	orderNumbers  *OrderNumberRepository
	statusHistory *StatusHistoryRepository
	coupons       *CouponRepository
	settings      *SettingsRepository
	counters      *CounterRepository
	catalog       *CatalogRepository
	health        repositories.HealthRepository
}

// NewRegistry builds the Firestore repositories. Extra readiness checks are appended to the
// Firestore ping.
func NewRegistry(provider *pfirestore.Provider, checks ...repositories.DependencyCheck) (*Registry, error) {
	reg := &Registry{provider: provider}
	var err error
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.orderNumbers, err = NewOrderNumberRepository(provider); err != nil {
		return nil, err
	}
	if reg.statusHistory, err = NewStatusHistoryRepository(provider); err != nil {
		return nil, err
	}
	if reg.coupons, err = NewCouponRepository(provider); err != nil {
		return nil, err
	}
	if reg.settings, err = NewSettingsRepository(provider); err != nil {
		return nil, err
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, err
	}
	if reg.catalog, err = NewCatalogRepository(provider); err != nil {
		return nil, err
	}

	all := append([]repositories.DependencyCheck{{Name: "firestore", Check: provider.Ping}}, checks...)
	if reg.health, err = repositories.NewDependencyHealthRepository(all); err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) OrderNumbers() repositories.OrderNumberRepository { return r.orderNumbers }

func (r *Registry) StatusHistory() repositories.OrderStatusHistoryRepository { return r.statusHistory }

func (r *Registry) Coupons() repositories.CouponRepository { return r.coupons }

func (r *Registry) Settings() repositories.SettingsRepository { return r.settings }

func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx runs fn in a transaction scope shared by every repository of the registry.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInScope(ctx, fn)
}

var _ repositories.Registry = (*Registry)(nil)
