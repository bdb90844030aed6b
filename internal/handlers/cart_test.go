package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/services"
)

func newCartRouter(svc services.CartService) chi.Router {
	h := NewCartHandlers(svc, "")
	return NewRouter(WithCartRoutes(h.Routes))
}

func sampleCart(session string) services.Cart {
	return services.Cart{
		SessionID: session,
		Currency:  "TRY",
		Lines: []services.CartLine{{
			Key:             "prod-wave|size=50x70",
			ProductRef:      "prod-wave",
			Name:            "Wave",
			UnitPrice:       1250,
			Quantity:        2,
			SelectedOptions: map[domain.OptionKey]string{"size": "50x70"},
			OptionLabels:    map[domain.OptionKey]string{"size": "50 x 70 cm"},
		}},
	}
}

func TestCartHandlersAddItemDefaultsQuantityAndEchoesSession(t *testing.T) {
	var captured services.AddCartItemCommand
	svc := &stubCartService{
		addFunc: func(_ context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
			captured = cmd
			return sampleCart("sess-new"), nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"prod-wave","options":{"size":"50x70"}}`))
	req.Header.Set(DefaultCartSessionHeader, "sess-1")
	rr := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.SessionID != "sess-1" || captured.Quantity != 1 || captured.Options["size"] != "50x70" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if got := rr.Header().Get(DefaultCartSessionHeader); got != "sess-new" {
		t.Fatalf("expected session header echoed, got %q", got)
	}

	cart := decodeResponse(t, rr)["cart"].(map[string]any)
	if cart["subtotal"] != float64(2500) || cart["item_count"] != float64(2) {
		t.Fatalf("unexpected totals: %v", cart)
	}
	items := cart["items"].([]any)
	line := items[0].(map[string]any)
	if line["line_total"] != float64(2500) {
		t.Fatalf("expected line total 2500, got %v", line["line_total"])
	}
	if labels := line["option_labels"].(map[string]any); labels["size"] != "50 x 70 cm" {
		t.Fatalf("unexpected option labels: %v", labels)
	}
}

func TestCartHandlersUpdateRequiresQuantity(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/abc", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCartHandlersUnknownLineReturns404(t *testing.T) {
	svc := &stubCartService{
		updateFunc: func(_ context.Context, _ string, lineKey string, quantity int) (services.Cart, error) {
			if lineKey != "missing" || quantity != 3 {
				t.Fatalf("unexpected args %q %d", lineKey, quantity)
			}
			return services.Cart{}, services.ErrCartLineNotFound
		},
	}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/missing", strings.NewReader(`{"quantity":3}`))
	rr := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if body := decodeResponse(t, rr); body["error"] != "cart_line_not_found" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestCartHandlersVisibilityAndClear(t *testing.T) {
	var visible bool
	cleared := false
	svc := &stubCartService{
		visibilityFunc: func(_ context.Context, _ string, v bool) (services.Cart, error) {
			visible = v
			cart := sampleCart("sess-1")
			cart.Visible = v
			return cart, nil
		},
		clearFunc: func(_ context.Context, session string) error {
			cleared = session == "sess-1"
			return nil
		},
	}
	router := newCartRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart:visibility", strings.NewReader(`{"visible":true}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !visible {
		t.Fatalf("expected visibility toggled, got %d visible=%v", rr.Code, visible)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	req.Header.Set(DefaultCartSessionHeader, "sess-1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || !cleared {
		t.Fatalf("expected cart cleared with 204, got %d cleared=%v", rr.Code, cleared)
	}
}

func TestCartHandlersRejectUnknownFields(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"p","price":1}`))
	rr := httptest.NewRecorder()
	newCartRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
}
