package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/requestctx"
	"github.com/glassworks/storefront/internal/services"
)

// DefaultCartSessionHeader carries the anonymous cart session between requests.
const DefaultCartSessionHeader = "X-Cart-Session"

// CartSessionMiddleware copies the session header onto the request context so downstream
// middleware (idempotency scoping) and handlers see the same session.
func CartSessionMiddleware(header string) func(http.Handler) http.Handler {
	if strings.TrimSpace(header) == "" {
		header = DefaultCartSessionHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := strings.TrimSpace(r.Header.Get(header))
			if session == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithCartSession(r.Context(), session)))
		})
	}
}

// CartHandlers exposes the anonymous shopper cart.
type CartHandlers struct {
	carts  services.CartService
	header string
}

// NewCartHandlers constructs cart handlers. The header names the session header echoed on
// every response.
func NewCartHandlers(carts services.CartService, header string) *CartHandlers {
	if strings.TrimSpace(header) == "" {
		header = DefaultCartSessionHeader
	}
	return &CartHandlers{carts: carts, header: header}
}

// Routes wires the cart endpoints onto the API root; the visibility toggle uses a custom verb
// suffix so it cannot live inside a /cart sub-router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/cart", h.getCart)
	r.Delete("/cart", h.clearCart)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{lineKey}", h.updateItem)
	r.Delete("/cart/items/{lineKey}", h.removeItem)
	r.Post("/cart:visibility", h.setVisibility)
}

type addCartItemRequest struct {
	ProductID            string            `json:"product_id"`
	Quantity             int               `json:"quantity"`
	Options              map[string]string `json:"options"`
	PersonalizationImage string            `json:"personalization_image"`
	PersonalizationNote  string            `json:"personalization_note"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

type cartVisibilityRequest struct {
	Visible *bool `json:"visible"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		unavailable(ctx, w, "cart")
		return
	}
	cart, err := h.carts.GetCart(ctx, requestctx.CartSession(ctx))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.writeCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		unavailable(ctx, w, "cart")
		return
	}
	var req addCartItemRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		SessionID:            requestctx.CartSession(ctx),
		ProductID:            req.ProductID,
		Quantity:             req.Quantity,
		Options:              req.Options,
		PersonalizationImage: req.PersonalizationImage,
		PersonalizationNote:  req.PersonalizationNote,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.writeCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		unavailable(ctx, w, "cart")
		return
	}
	var req updateCartItemRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeServiceError(ctx, w, services.ErrCartInvalidInput)
		return
	}
	cart, err := h.carts.UpdateQuantity(ctx, requestctx.CartSession(ctx), chi.URLParam(r, "lineKey"), *req.Quantity)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.writeCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		unavailable(ctx, w, "cart")
		return
	}
	cart, err := h.carts.RemoveItem(ctx, requestctx.CartSession(ctx), chi.URLParam(r, "lineKey"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.writeCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		unavailable(ctx, w, "cart")
		return
	}
	if err := h.carts.Clear(ctx, requestctx.CartSession(ctx)); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) setVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		unavailable(ctx, w, "cart")
		return
	}
	var req cartVisibilityRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if req.Visible == nil {
		writeServiceError(ctx, w, services.ErrCartInvalidInput)
		return
	}
	cart, err := h.carts.SetVisibility(ctx, requestctx.CartSession(ctx), *req.Visible)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	h.writeCart(w, http.StatusOK, cart)
}

func (h *CartHandlers) writeCart(w http.ResponseWriter, status int, cart services.Cart) {
	if cart.SessionID != "" {
		w.Header().Set(h.header, cart.SessionID)
	}
	writeJSONResponse(w, status, cartResponse{Cart: buildCartPayload(cart)})
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	SessionID string            `json:"session_id,omitempty"`
	Currency  string            `json:"currency"`
	Visible   bool              `json:"visible"`
	ItemCount int               `json:"item_count"`
	Subtotal  int64             `json:"subtotal"`
	Items     []cartLinePayload `json:"items"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type cartLinePayload struct {
	Key                  string            `json:"key"`
	ProductID            string            `json:"product_id"`
	Name                 string            `json:"name"`
	UnitPrice            int64             `json:"unit_price"`
	Quantity             int               `json:"quantity"`
	LineTotal            int64             `json:"line_total"`
	SelectedOptions      map[string]string `json:"selected_options,omitempty"`
	OptionLabels         map[string]string `json:"option_labels,omitempty"`
	PersonalizationImage string            `json:"personalization_image,omitempty"`
	PersonalizationNote  string            `json:"personalization_note,omitempty"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	items := make([]cartLinePayload, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, cartLinePayload{
			Key:                  line.Key,
			ProductID:            line.ProductRef,
			Name:                 line.Name,
			UnitPrice:            line.UnitPrice,
			Quantity:             line.Quantity,
			LineTotal:            line.LineTotal(),
			SelectedOptions:      optionMap(line.SelectedOptions),
			OptionLabels:         optionMap(line.OptionLabels),
			PersonalizationImage: line.PersonalizationImage,
			PersonalizationNote:  line.PersonalizationNote,
		})
	}
	return cartPayload{
		SessionID: cart.SessionID,
		Currency:  cart.Currency,
		Visible:   cart.Visible,
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
		Items:     items,
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
}

func optionMap(values map[domain.OptionKey]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[string(k)] = v
	}
	return out
}
