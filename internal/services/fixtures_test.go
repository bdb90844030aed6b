package services

import (
	"context"
	"sync"
	"testing"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/textutil"
	"github.com/glassworks/storefront/internal/repositories/memory"
)

var fixtureNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func waveProduct() domain.Product {
	return domain.Product{
		ID:        "prod-wave",
		Name:      "Wave Panel",
		BasePrice: 1000,
		Active:    true,
		Options: []domain.ProductOption{
			{
				Key:      "size",
				Label:    "Size",
				Required: true,
				Choices: []domain.OptionChoice{
					{ID: "50x70", Label: "50 × 70 cm"},
					{ID: "70x100", Label: "70 × 100 cm", PriceDelta: 500},
				},
			},
			{
				Key:   "frame",
				Label: "Frame",
				Choices: []domain.OptionChoice{
					{ID: "black", Label: "Black", PriceDelta: 150},
				},
			},
		},
	}
}

func miniProduct() domain.Product {
	return domain.Product{ID: "prod-mini", Name: "Mini Tile", BasePrice: 400, Active: true}
}

func testLocalizer(t *testing.T) *textutil.Localizer {
	t.Helper()
	localizer, err := textutil.NewLocalizer("tr", "TRY", "")
	if err != nil {
		t.Fatalf("NewLocalizer: %v", err)
	}
	return localizer
}

type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingLogger) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) count(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e == event {
			n++
		}
	}
	return n
}

type stubNotifier struct {
	mu     sync.Mutex
	sent   []OrderNotification
	notify func(ctx context.Context, n OrderNotification) error
}

func (s *stubNotifier) NotifyOrderCreated(ctx context.Context, n OrderNotification) error {
	s.mu.Lock()
	s.sent = append(s.sent, n)
	s.mu.Unlock()
	if s.notify != nil {
		return s.notify(ctx, n)
	}
	return nil
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type stubEventPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (s *stubEventPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubEventPublisher) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type fixtureOptions struct {
	strategy string
	clock    func() time.Time
	order    func(*OrderServiceDeps)
}

type checkoutFixture struct {
	store    *memory.Store
	carts    CartService
	coupons  CouponService
	orders   OrderService
	checkout CheckoutService
	notifier *stubNotifier
	events   *stubEventPublisher
	logger   *recordingLogger
}

// newCheckoutFixture wires the real services over the memory store. The shipping policy
// defaults to flat 49 with free shipping from 1000.
func newCheckoutFixture(t *testing.T, opts fixtureOptions) *checkoutFixture {
	t.Helper()
	clock := opts.clock
	if clock == nil {
		clock = func() time.Time { return fixtureNow }
	}
	strategy := opts.strategy
	if strategy == "" {
		strategy = OrderNumberStrategySequence
	}

	store := memory.New(memory.WithProducts(waveProduct(), miniProduct()))
	localizer := testLocalizer(t)
	logger := &recordingLogger{}
	notifier := &stubNotifier{}
	events := &stubEventPublisher{}

	carts, err := NewCartService(CartServiceDeps{
		Carts:    store.Carts(),
		Catalog:  store.Catalog(),
		Currency: "TRY",
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	coupons, err := NewCouponService(CouponServiceDeps{Coupons: store.Coupons(), Localizer: localizer, Clock: clock})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}
	settings, err := NewSettingsService(SettingsServiceDeps{
		Settings: store.Settings(),
		Defaults: ShippingPolicy{FlatShippingCost: 49, FreeShippingThreshold: 1000},
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("NewSettingsService: %v", err)
	}
	allocator, err := NewOrderNumberAllocator(OrderNumberAllocatorDeps{
		Numbers:  store.OrderNumbers(),
		Counters: store.Counters(),
		Strategy: strategy,
		Prefix:   "GW",
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("NewOrderNumberAllocator: %v", err)
	}
	factory, err := NewOrderFactory(OrderFactoryDeps{Localizer: localizer, Clock: clock, Logger: logger.log})
	if err != nil {
		t.Fatalf("NewOrderFactory: %v", err)
	}

	deps := OrderServiceDeps{
		Orders:     store.Orders(),
		Numbers:    store.OrderNumbers(),
		History:    store.StatusHistory(),
		Coupons:    coupons,
		Allocator:  allocator,
		Factory:    factory,
		Localizer:  localizer,
		UnitOfWork: store,
		Notifier:   notifier,
		Events:     events,
		Clock:      clock,
		Logger:     logger.log,
	}
	if opts.order != nil {
		opts.order(&deps)
	}
	orders, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	checkout, err := NewCheckoutService(CheckoutServiceDeps{
		Carts:     carts,
		Coupons:   coupons,
		Settings:  settings,
		Orders:    orders,
		Allocator: allocator,
		Logger:    logger.log,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	return &checkoutFixture{
		store:    store,
		carts:    carts,
		coupons:  coupons,
		orders:   orders,
		checkout: checkout,
		notifier: notifier,
		events:   events,
		logger:   logger,
	}
}

// fillCart adds quantity units of the 50x70 wave panel to a fresh session and returns its id.
func (f *checkoutFixture) fillCart(t *testing.T, quantity int) string {
	t.Helper()
	cart, err := f.carts.AddItem(context.Background(), AddCartItemCommand{
		ProductID: "prod-wave",
		Quantity:  quantity,
		Options:   map[string]string{"Size": "50x70"},
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return cart.SessionID
}

func (f *checkoutFixture) createCoupon(t *testing.T, cmd UpsertCouponCommand) {
	t.Helper()
	if _, err := f.coupons.CreateCoupon(context.Background(), cmd); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
}

func (f *checkoutFixture) usedCount(t *testing.T, code string) int64 {
	t.Helper()
	coupon, err := f.coupons.GetCoupon(context.Background(), code)
	if err != nil {
		t.Fatalf("GetCoupon: %v", err)
	}
	return coupon.UsedCount
}

func placeCommand(sessionID string) PlaceOrderCommand {
	return PlaceOrderCommand{
		SessionID:     sessionID,
		PaymentMethod: domain.PaymentMethodBankTransfer,
		Customer: Customer{
			Name:    "Ayşe Yılmaz",
			Email:   "ayse@example.com",
			Phone:   "+905551112233",
			Address: "Moda Cad. 12",
			City:    "İstanbul",
		},
	}
}
