package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glassworks/storefront/internal/services"
)

func TestOrderLookupRequiresMatchingEmail(t *testing.T) {
	svc := &stubOrderService{
		getFunc: func(_ context.Context, ref string) (services.Order, error) {
			if ref != "GW-2025-000007" {
				return services.Order{}, services.ErrOrderNotFound
			}
			order := sampleOrder()
			order.ManualReview = true
			order.ReviewReason = "coupon raced"
			return order, nil
		},
	}
	router := NewRouter(WithOrderRoutes(NewOrderHandlers(svc).Routes))

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"match is case insensitive", "/api/v1/orders/GW-2025-000007?email=ECE@example.com", http.StatusOK},
		{"mismatch hides order", "/api/v1/orders/GW-2025-000007?email=someone@example.com", http.StatusNotFound},
		{"missing email", "/api/v1/orders/GW-2025-000007", http.StatusBadRequest},
		{"unknown order", "/api/v1/orders/GW-2025-999999?email=ece@example.com", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}
			order := decodeResponse(t, rr)["order"].(map[string]any)
			for _, hidden := range []string{"admin_note", "manual_review", "review_reason"} {
				if _, ok := order[hidden]; ok {
					t.Fatalf("expected %s to be stripped from shopper view", hidden)
				}
			}
			if order["display_date"] != "14.03.2025 09:30" {
				t.Fatalf("unexpected display date %v", order["display_date"])
			}
		})
	}
}

func TestOrderLookupRateLimit(t *testing.T) {
	svc := &stubOrderService{
		getFunc: func(context.Context, string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	router := NewRouter(WithOrderRoutes(NewOrderHandlers(svc).WithLookupRateLimit(1, time.Minute).Routes))

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/orders/GW-1?email=a@b.c", nil)
		r.RemoteAddr = "203.0.113.7:4242"
		return r
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req())
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected first lookup to reach the service, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req())
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestFixedWindowLimiterResetsAfterWindow(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	limiter := newFixedWindowLimiter(1, time.Minute, func() time.Time { return now })

	if ok, _ := limiter.allow("k"); !ok {
		t.Fatalf("expected first hit allowed")
	}
	ok, wait := limiter.allow("k")
	if ok || wait != time.Minute {
		t.Fatalf("expected refusal with 1m wait, got ok=%v wait=%v", ok, wait)
	}
	now = now.Add(time.Minute)
	if ok, _ := limiter.allow("k"); !ok {
		t.Fatalf("expected hit allowed after window reset")
	}

	if newFixedWindowLimiter(0, time.Minute, nil) != nil {
		t.Fatalf("expected disabled limiter for zero limit")
	}
}

func TestClientAddrDropsPort(t *testing.T) {
	cases := map[string]string{
		"203.0.113.7:4242": "203.0.113.7",
		"[2001:db8::1]:80": "2001:db8::1",
		"198.51.100.9":     "198.51.100.9",
		"":                 "anonymous",
	}
	for remote, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		if got := clientAddr(r); got != want {
			t.Errorf("clientAddr(%q) = %q, want %q", remote, got, want)
		}
	}
}
