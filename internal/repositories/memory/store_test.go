package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	_ = store.Coupons().Insert(ctx, domain.Coupon{Code: "save10", DiscountValue: decimal.NewFromInt(10), IsActive: true})

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context) error {
		if err := store.OrderNumbers().Create(ctx, domain.OrderNumberEntry{Number: "GW-1", State: domain.OrderNumberCommitted}); err != nil {
			return err
		}
		if err := store.Orders().Insert(ctx, domain.Order{ID: "ord_1", OrderNumber: "GW-1", CreatedAt: now}); err != nil {
			return err
		}
		if _, err := store.Coupons().IncrementUsage(ctx, "SAVE10", now); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := store.Orders().FindByID(ctx, "ord_1"); !repositories.IsNotFound(err) {
		t.Fatalf("expected order rollback, got %v", err)
	}
	if _, err := store.OrderNumbers().Get(ctx, "GW-1"); !repositories.IsNotFound(err) {
		t.Fatalf("expected number rollback, got %v", err)
	}
	coupon, _ := store.Coupons().Get(ctx, "save10")
	if coupon.UsedCount != 0 {
		t.Fatalf("expected usedCount 0 after rollback, got %d", coupon.UsedCount)
	}
}

func TestIncrementUsageConcurrent(t *testing.T) {
	ctx := context.Background()
	store := New()
	_ = store.Coupons().Insert(ctx, domain.Coupon{Code: "LIMIT", MaxUses: 5, IsActive: true})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunInTx(ctx, func(ctx context.Context) error {
				_, err := store.Coupons().IncrementUsage(ctx, "limit", time.Now())
				return err
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, repositories.ErrUsageLimitReached) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 5 {
		t.Fatalf("expected 5 accepted increments, got %d", accepted)
	}
	coupon, _ := store.Coupons().Get(ctx, "LIMIT")
	if coupon.UsedCount != 5 {
		t.Fatalf("expected usedCount 5, got %d", coupon.UsedCount)
	}
}

func TestOrderListPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"ord_a", "ord_b", "ord_c", "ord_d", "ord_e"} {
		status := domain.OrderStatusPending
		if i%2 == 1 {
			status = domain.OrderStatusShipped
		}
		order := domain.Order{ID: id, Status: status, Customer: domain.Customer{Email: "a@example.com"}, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Orders().Insert(ctx, order); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	page, err := store.Orders().List(ctx, repositories.OrderListFilter{Pagination: domain.Pagination{PageSize: 2}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "ord_e" || page.Items[1].ID != "ord_d" {
		t.Fatalf("unexpected first page: %+v", page.Items)
	}
	if page.NextPageToken == "" {
		t.Fatalf("expected next page token")
	}

	next, err := store.Orders().List(ctx, repositories.OrderListFilter{Pagination: domain.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(next.Items) != 2 || next.Items[0].ID != "ord_c" {
		t.Fatalf("unexpected second page: %+v", next.Items)
	}

	shipped, _ := store.Orders().List(ctx, repositories.OrderListFilter{Status: []domain.OrderStatus{domain.OrderStatusShipped}})
	if len(shipped.Items) != 2 {
		t.Fatalf("expected 2 shipped orders, got %d", len(shipped.Items))
	}

	from := base.Add(3 * time.Hour)
	recent, _ := store.Orders().List(ctx, repositories.OrderListFilter{CreatedRange: domain.RangeQuery[time.Time]{From: &from}})
	if len(recent.Items) != 2 {
		t.Fatalf("expected 2 orders after %s, got %d", from, len(recent.Items))
	}
}

func TestOrderNumberCreateIsUnique(t *testing.T) {
	ctx := context.Background()
	store := New()
	entry := domain.OrderNumberEntry{Number: "GW-7", State: domain.OrderNumberReserved}
	if err := store.OrderNumbers().Create(ctx, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.OrderNumbers().Create(ctx, entry); !repositories.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := store.OrderNumbers().Commit(ctx, "GW-7", "ord_7", time.Now()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, _ := store.OrderNumbers().Get(ctx, "GW-7")
	if got.State != domain.OrderNumberCommitted || got.OrderID != "ord_7" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestDeleteExpiredReservationsKeepsCommittedAndFresh(t *testing.T) {
	ctx := context.Background()
	store := New()
	cutoff := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	entries := []domain.OrderNumberEntry{
		{Number: "GW-1", State: domain.OrderNumberReserved, SessionID: "s1", ReservedAt: cutoff.Add(-2 * time.Hour)},
		{Number: "GW-2", State: domain.OrderNumberReserved, SessionID: "s2", ReservedAt: cutoff.Add(-time.Hour)},
		{Number: "GW-3", State: domain.OrderNumberCommitted, OrderID: "ord_3", ReservedAt: cutoff.Add(-3 * time.Hour)},
		{Number: "GW-4", State: domain.OrderNumberReserved, SessionID: "s4", ReservedAt: cutoff.Add(time.Minute)},
	}
	for _, entry := range entries {
		if err := store.OrderNumbers().Create(ctx, entry); err != nil {
			t.Fatalf("Create %s: %v", entry.Number, err)
		}
	}

	deleted, err := store.OrderNumbers().DeleteExpiredReservations(ctx, cutoff, 1)
	if err != nil || deleted != 1 {
		t.Fatalf("expected one deletion within the limit, got %d err=%v", deleted, err)
	}
	deleted, err = store.OrderNumbers().DeleteExpiredReservations(ctx, cutoff, 0)
	if err != nil || deleted != 1 {
		t.Fatalf("expected the remaining stale reservation deleted, got %d err=%v", deleted, err)
	}
	for _, number := range []string{"GW-1", "GW-2"} {
		if _, err := store.OrderNumbers().Get(ctx, number); !repositories.IsNotFound(err) {
			t.Fatalf("expected %s deleted, got %v", number, err)
		}
	}
	for _, number := range []string{"GW-3", "GW-4"} {
		if _, err := store.OrderNumbers().Get(ctx, number); err != nil {
			t.Fatalf("expected %s kept, got %v", number, err)
		}
	}
}

func TestStoredOrdersAreCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	order := domain.Order{ID: "ord_x", Items: []domain.OrderItem{{Name: "Wave", SelectedOptions: map[domain.OptionKey]string{"size": "s"}}}}
	_ = store.Orders().Insert(ctx, order)
	order.Items[0].SelectedOptions["size"] = "xl"

	got, _ := store.Orders().FindByID(ctx, "ord_x")
	if got.Items[0].SelectedOptions["size"] != "s" {
		t.Fatalf("stored order was mutated through caller reference")
	}
}
