package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/requestctx"
	"github.com/glassworks/storefront/internal/services"
)

// CheckoutHandlers exposes the shopper checkout flow.
type CheckoutHandlers struct {
	checkout    services.CheckoutService
	placeGuards []func(http.Handler) http.Handler
	limiter     *fixedWindowLimiter
}

// NewCheckoutHandlers constructs checkout handlers. placeGuards wrap only the order placement
// endpoint, typically the idempotency middleware.
func NewCheckoutHandlers(checkout services.CheckoutService, placeGuards ...func(http.Handler) http.Handler) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout, placeGuards: placeGuards}
}

// WithCouponRateLimit caps coupon validations per client address.
func (h *CheckoutHandlers) WithCouponRateLimit(limit int, window time.Duration) *CheckoutHandlers {
	h.limiter = newFixedWindowLimiter(limit, window, nil)
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.limiter.middleware).Post("/checkout/coupon", h.validateCoupon)
	r.Get("/checkout/shipping", h.quoteShipping)
	r.Post("/checkout/order-number", h.reserveOrderNumber)

	place := r
	for _, mw := range h.placeGuards {
		if mw != nil {
			place = place.With(mw)
		}
	}
	place.Post("/checkout", h.placeOrder)
}

type validateCouponRequest struct {
	Code string `json:"code"`
}

type couponValidationResponse struct {
	Valid    bool   `json:"valid"`
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

type shippingQuoteResponse struct {
	Subtotal              int64  `json:"subtotal"`
	ShippingCost          int64  `json:"shipping_cost"`
	FreeShippingThreshold int64  `json:"free_shipping_threshold"`
	Currency              string `json:"currency"`
}

type orderNumberResponse struct {
	OrderNumber string `json:"order_number"`
	ReservedAt  string `json:"reserved_at"`
}

type placeOrderRequest struct {
	Customer       customerPayload `json:"customer"`
	PaymentMethod  string          `json:"payment_method"`
	CouponCode     string          `json:"coupon_code"`
	Note           string          `json:"note"`
	ReservedNumber string          `json:"order_number"`
}

func (h *CheckoutHandlers) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		unavailable(ctx, w, "checkout")
		return
	}
	var req validateCouponRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	result, err := h.checkout.ValidateCoupon(ctx, requestctx.CartSession(ctx), req.Code)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := couponValidationResponse{
		Valid:    result.Valid,
		Code:     domain.NormalizeCouponCode(req.Code),
		Discount: result.Discount,
		Reason:   string(result.Reason),
		Message:  result.Message,
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CheckoutHandlers) quoteShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		unavailable(ctx, w, "checkout")
		return
	}
	quote, err := h.checkout.QuoteShipping(ctx, requestctx.CartSession(ctx))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, shippingQuoteResponse{
		Subtotal:              quote.Subtotal,
		ShippingCost:          quote.ShippingCost,
		FreeShippingThreshold: quote.FreeShippingThreshold,
		Currency:              quote.Currency,
	})
}

func (h *CheckoutHandlers) reserveOrderNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		unavailable(ctx, w, "checkout")
		return
	}
	entry, err := h.checkout.ReserveOrderNumber(ctx, requestctx.CartSession(ctx))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderNumberResponse{
		OrderNumber: entry.Number,
		ReservedAt:  formatTime(entry.ReservedAt),
	})
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		unavailable(ctx, w, "checkout")
		return
	}
	var req placeOrderRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	order, err := h.checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		SessionID:      requestctx.CartSession(ctx),
		PaymentMethod:  services.PaymentMethod(req.PaymentMethod),
		CouponCode:     req.CouponCode,
		Note:           req.Note,
		ReservedNumber: req.ReservedNumber,
		Customer:       req.Customer.toDomain(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.OrderNumber)
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}
