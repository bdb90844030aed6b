package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/glassworks/storefront/internal/platform/config"
	"github.com/glassworks/storefront/internal/platform/textutil"
	"github.com/glassworks/storefront/internal/repositories"
	"github.com/glassworks/storefront/internal/services"
)

const instrumentationName = "github.com/glassworks/storefront/internal/services"

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Cart      services.CartService
	Coupons   services.CouponService
	Settings  services.SettingsService
	Allocator services.OrderNumberAllocator
	Orders    services.OrderService
	Checkout  services.CheckoutService
	System    services.SystemService
}

// Infrastructure carries the adapters built by the process entrypoint. Only Registry and
// Carts are required; nil collaborators disable the side effect they provide.
type Infrastructure struct {
	Registry repositories.Registry
	Carts    repositories.CartRepository
	Notifier services.OrderNotifier
	Events   services.OrderEventPublisher
	Archiver services.PersonalizationArchiver
	Logger   services.Logger
	Build    services.BuildInfo
	Clock    func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Localizer    *textutil.Localizer
	Services     Services
}

// NewContainer constructs the service graph. Tests pass a memory registry.
func NewContainer(ctx context.Context, cfg config.Config, infra Infrastructure) (*Container, error) {
	if infra.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if infra.Carts == nil {
		return nil, errors.New("cart repository is required")
	}
	if infra.Clock == nil {
		infra.Clock = time.Now
	}

	localizer, err := textutil.NewLocalizer(cfg.Store.Locale, cfg.Store.Currency, cfg.Store.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("build localizer: %w", err)
	}

	svc, err := buildServices(ctx, cfg, infra, localizer)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: infra.Registry,
		Localizer:    localizer,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, infra Infrastructure, localizer *textutil.Localizer) (Services, error) {
	reg := infra.Registry
	clock := infra.Clock
	var svc Services
	var err error

	if svc.Cart, err = services.NewCartService(services.CartServiceDeps{
		Carts:    infra.Carts,
		Catalog:  reg.Catalog(),
		Currency: cfg.Store.Currency,
		Clock:    clock,
		Logger:   infra.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}

	if svc.Coupons, err = services.NewCouponService(services.CouponServiceDeps{
		Coupons:   reg.Coupons(),
		Localizer: localizer,
		Clock:     clock,
		Logger:    infra.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}

	if svc.Settings, err = services.NewSettingsService(services.SettingsServiceDeps{
		Settings: reg.Settings(),
		Defaults: services.ShippingPolicy{
			FlatShippingCost:      cfg.Shipping.FlatCost,
			FreeShippingThreshold: cfg.Shipping.FreeShippingThreshold,
		},
		Clock:  clock,
		Logger: infra.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build settings service: %w", err)
	}

	if svc.Allocator, err = services.NewOrderNumberAllocator(services.OrderNumberAllocatorDeps{
		Numbers:  reg.OrderNumbers(),
		Counters: reg.Counters(),
		Strategy: cfg.Orders.NumberStrategy,
		Prefix:   cfg.Orders.NumberPrefix,
		Clock:    clock,
		Logger:   infra.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build order number allocator: %w", err)
	}

	factory, err := services.NewOrderFactory(services.OrderFactoryDeps{
		Localizer: localizer,
		Clock:     clock,
		Logger:    infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order factory: %w", err)
	}

	if svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Numbers:     reg.OrderNumbers(),
		History:     reg.StatusHistory(),
		Coupons:     svc.Coupons,
		Allocator:   svc.Allocator,
		Factory:     factory,
		Localizer:   localizer,
		UnitOfWork:  reg,
		Archiver:    infra.Archiver,
		Notifier:    infra.Notifier,
		Events:      infra.Events,
		AllowReopen: cfg.Orders.AllowReopen,
		Meter:       otel.Meter(instrumentationName),
		Clock:       clock,
		Logger:      infra.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	if svc.Checkout, err = services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:     svc.Cart,
		Coupons:   svc.Coupons,
		Settings:  svc.Settings,
		Orders:    svc.Orders,
		Allocator: svc.Allocator,
		Tracer:    otel.Tracer(instrumentationName),
		Logger:    infra.Logger,
	}); err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		build := infra.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = clock().UTC()
		}
		if svc.System, err = services.NewSystemService(services.SystemServiceDeps{
			Health: healthRepo,
			Clock:  clock,
			Build:  build,
		}); err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
	}

	return svc, nil
}
