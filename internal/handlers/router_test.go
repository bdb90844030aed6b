package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/glassworks/storefront/internal/platform/requestctx"
)

func TestRouterHealthEndpoints(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	health := NewHealthHandlers(
		WithHealthClock(func() time.Time { return now }),
		WithHealthBuildInfo(buildInfoAt(now.Add(-time.Minute))),
	)
	router := NewRouter(WithHealthHandlers(health))

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected application/json, got %q", ct)
			}
			if body := decodeResponse(t, rr); body["status"] != "ok" {
				t.Fatalf("expected status ok, got %v", body["status"])
			}
		})
	}
}

func TestRouterUnconfiguredGroupsReturnNotImplemented(t *testing.T) {
	router := NewRouter()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/checkout"},
		{http.MethodGet, "/api/v1/orders/GW-2025-000001"},
		{http.MethodGet, "/api/v1/admin/orders"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("%s %s: expected 501, got %d", tc.method, tc.path, rr.Code)
		}
		if body := decodeResponse(t, rr); body["error"] != "not_implemented" {
			t.Fatalf("%s %s: expected not_implemented, got %v", tc.method, tc.path, body["error"])
		}
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := NewRouter()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if body := decodeResponse(t, rr); body["error"] != errorNotFoundCode {
		t.Fatalf("expected %s, got %v", errorNotFoundCode, body["error"])
	}
}

func TestRouterAdminMiddlewareGuardsAdminGroupOnly(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	router := NewRouter(
		WithAdminMiddlewares(deny),
		WithAdminRoutes(func(r chi.Router) {
			r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
		}),
		WithOrderRoutes(func(r chi.Router) {
			r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
		}),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/ping", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected admin middleware to reject, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/orders/ping", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected shopper route to bypass admin middleware, got %d", rr.Code)
	}
}

func TestRouterCartSessionHeaderReachesContext(t *testing.T) {
	var seen string
	router := NewRouter(
		WithCartSessionHeader("X-Basket"),
		WithCartRoutes(func(r chi.Router) {
			r.Get("/cart", func(w http.ResponseWriter, r *http.Request) {
				seen = requestctx.CartSession(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Basket", " sess-42 ")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "sess-42" {
		t.Fatalf("expected trimmed session sess-42, got %q", seen)
	}
}
