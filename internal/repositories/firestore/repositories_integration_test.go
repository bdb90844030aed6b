//go:build integration

package firestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/firestore/firestoretest"
	"github.com/glassworks/storefront/internal/repositories"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(firestoretest.NewProvider(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestOrderRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	order := domain.Order{
		ID:          "ord_it_1",
		OrderNumber: "GW-1001",
		Customer:    domain.Customer{Name: "Ayşe", Email: "Ayse@Example.com"},
		Items: []domain.OrderItem{{
			ProductRef:      "prod_1",
			Name:            "Wave",
			UnitPrice:       1000,
			Quantity:        2,
			LineTotal:       2000,
			SelectedOptions: map[domain.OptionKey]string{"size": "50x70"},
		}},
		Subtotal:  2000,
		Total:     2000,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := reg.Orders().Insert(ctx, order); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := reg.Orders().Insert(ctx, order); !repositories.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate insert, got %v", err)
	}

	got, err := reg.Orders().FindByNumber(ctx, "GW-1001")
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}
	if got.ID != order.ID || got.Items[0].SelectedOptions["size"] != "50x70" {
		t.Fatalf("unexpected order: %+v", got)
	}

	page, err := reg.Orders().List(ctx, repositories.OrderListFilter{CustomerEmail: "ayse@example.com"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one order for email filter, got %d", len(page.Items))
	}

	change := domain.OrderStatusChange{ID: "chg_1", OrderID: order.ID, From: domain.OrderStatusPending, To: domain.OrderStatusConfirmed, ActorID: "staff@example.com", OccurredAt: now}
	if err := reg.StatusHistory().Append(ctx, change); err != nil {
		t.Fatalf("Append: %v", err)
	}
	history, err := reg.StatusHistory().List(ctx, order.ID)
	if err != nil || len(history) != 1 || history[0].To != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected history %+v err=%v", history, err)
	}
}

func TestCouponIncrementUsageRespectsLimit(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	now := time.Now().UTC()

	if err := reg.Coupons().Insert(ctx, domain.Coupon{
		Code:          "limit3",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		MaxUses:       3,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Coupons().IncrementUsage(ctx, "LIMIT3", now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repositories.ErrUsageLimitReached):
				full++
			default:
				t.Errorf("IncrementUsage: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 3 || full != workers-3 {
		t.Fatalf("expected 3 successes and %d rejections, got %d/%d", workers-3, ok, full)
	}
	coupon, err := reg.Coupons().Get(ctx, "limit3")
	if err != nil || coupon.UsedCount != 3 {
		t.Fatalf("expected usedCount 3, got %+v err=%v", coupon, err)
	}
}

func TestUnitOfWorkRollsBackOnNumberConflict(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	now := time.Now().UTC()

	entry := domain.OrderNumberEntry{Number: "GW-42", State: domain.OrderNumberCommitted, OrderID: "ord_a", ReservedAt: now}
	if err := reg.OrderNumbers().Create(ctx, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := reg.RunInTx(ctx, func(ctx context.Context) error {
		if err := reg.OrderNumbers().Create(ctx, domain.OrderNumberEntry{Number: "GW-42", State: domain.OrderNumberCommitted, OrderID: "ord_b", ReservedAt: now}); err != nil {
			return err
		}
		return reg.Orders().Insert(ctx, domain.Order{ID: "ord_b", OrderNumber: "GW-42", CreatedAt: now, UpdatedAt: now})
	})
	if !repositories.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := reg.Orders().FindByID(ctx, "ord_b"); !repositories.IsNotFound(err) {
		t.Fatalf("expected order to be rolled back, got %v", err)
	}
}

func TestOrderNumberReservationsExpire(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	cutoff := time.Now().UTC().Truncate(time.Millisecond)

	for _, entry := range []domain.OrderNumberEntry{
		{Number: "GW-7001", State: domain.OrderNumberReserved, SessionID: "s1", ReservedAt: cutoff.Add(-time.Hour)},
		{Number: "GW-7002", State: domain.OrderNumberReserved, SessionID: "s2", ReservedAt: cutoff.Add(time.Hour)},
		{Number: "GW-7003", State: domain.OrderNumberCommitted, OrderID: "ord_3", ReservedAt: cutoff.Add(-time.Hour)},
	} {
		if err := reg.OrderNumbers().Create(ctx, entry); err != nil {
			t.Fatalf("Create %s: %v", entry.Number, err)
		}
	}

	got, err := reg.OrderNumbers().Get(ctx, "GW-7001")
	if err != nil || got.SessionID != "s1" {
		t.Fatalf("expected session stored on reservation, got %+v err=%v", got, err)
	}
	deleted, err := reg.OrderNumbers().DeleteExpiredReservations(ctx, cutoff, 10)
	if err != nil || deleted != 1 {
		t.Fatalf("expected one deletion, got %d err=%v", deleted, err)
	}
	if _, err := reg.OrderNumbers().Get(ctx, "GW-7001"); !repositories.IsNotFound(err) {
		t.Fatalf("expected stale reservation deleted, got %v", err)
	}
	for _, number := range []string{"GW-7002", "GW-7003"} {
		if _, err := reg.OrderNumbers().Get(ctx, number); err != nil {
			t.Fatalf("expected %s kept, got %v", number, err)
		}
	}
}

func TestCounterRepositorySequential(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	for want := int64(1); want <= 3; want++ {
		got, err := reg.Counters().Next(ctx, "orders-2025", 1)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	limit := int64(3)
	if err := reg.Counters().Configure(ctx, "orders-2025", repositories.CounterConfig{MaxValue: &limit}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	_, err := reg.Counters().Next(ctx, "orders-2025", 1)
	if !errors.Is(err, repositories.ErrCounterExhausted) {
		t.Fatalf("expected exhausted counter error, got %v", err)
	}
}

func TestSettingsAndCartRepositories(t *testing.T) {
	ctx := context.Background()
	provider := firestoretest.NewProvider(t)
	settings, _ := NewSettingsRepository(provider)
	carts, _ := NewCartRepository(provider)

	if _, err := settings.ShippingPolicy(ctx); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found before save, got %v", err)
	}
	if err := settings.SaveShippingPolicy(ctx, domain.ShippingPolicy{FlatShippingCost: 49, FreeShippingThreshold: 1000, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("SaveShippingPolicy: %v", err)
	}
	policy, err := settings.ShippingPolicy(ctx)
	if err != nil || policy.FlatShippingCost != 49 {
		t.Fatalf("unexpected policy %+v err=%v", policy, err)
	}

	cart := domain.Cart{SessionID: "sess-1", Currency: "TRY", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	_ = cart.Add(domain.CartLine{ProductRef: "prod_1", UnitPrice: 500}, 2)
	if err := carts.Save(ctx, cart); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := carts.Get(ctx, "sess-1")
	if err != nil || loaded.Subtotal() != 1000 || !loaded.Visible {
		t.Fatalf("unexpected cart %+v err=%v", loaded, err)
	}
	if err := carts.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := carts.Get(ctx, "sess-1"); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
