package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/glassworks/storefront/internal/services"
)

// OrderHandlers exposes the shopper confirmation lookup.
type OrderHandlers struct {
	orders  services.OrderService
	limiter *fixedWindowLimiter
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// WithLookupRateLimit caps confirmation lookups per client.
func (h *OrderHandlers) WithLookupRateLimit(limit int, window time.Duration) *OrderHandlers {
	h.limiter = newFixedWindowLimiter(limit, window, nil)
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.limiter.middleware).Get("/{ref}", h.getOrder)
}

// getOrder answers 404 for both unknown orders and email mismatches so order numbers cannot
// be probed.
func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeServiceError(ctx, w, services.ErrOrderInvalidInput)
		return
	}
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if !strings.EqualFold(strings.TrimSpace(order.Customer.Email), email) {
		writeServiceError(ctx, w, services.ErrOrderNotFound)
		return
	}
	payload := buildOrderPayload(order)
	payload.AdminNote = ""
	payload.ManualReview = false
	payload.ReviewReason = ""
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: payload})
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type customerPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

func (c customerPayload) toDomain() services.Customer {
	return services.Customer{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
		City:    c.City,
	}
}

type orderItemPayload struct {
	ProductID            string            `json:"product_id"`
	Name                 string            `json:"name"`
	UnitPrice            int64             `json:"unit_price"`
	Quantity             int               `json:"quantity"`
	LineTotal            int64             `json:"line_total"`
	SelectedOptions      map[string]string `json:"selected_options,omitempty"`
	OptionLabels         map[string]string `json:"option_labels,omitempty"`
	PersonalizationImage string            `json:"personalization_image,omitempty"`
	PersonalizationNote  string            `json:"personalization_note,omitempty"`

	PersonalizationImageURL string `json:"personalization_image_url,omitempty"`
}

type orderPayload struct {
	ID             string             `json:"id"`
	OrderNumber    string             `json:"order_number"`
	Status         string             `json:"status"`
	Customer       customerPayload    `json:"customer"`
	Items          []orderItemPayload `json:"items"`
	Currency       string             `json:"currency"`
	Subtotal       int64              `json:"subtotal"`
	ShippingCost   int64              `json:"shipping_cost"`
	CouponCode     string             `json:"coupon_code,omitempty"`
	CouponDiscount int64              `json:"coupon_discount"`
	Total          int64              `json:"total"`
	PaymentMethod  string             `json:"payment_method"`
	Note           string             `json:"note,omitempty"`
	AdminNote      string             `json:"admin_note,omitempty"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
	ManualReview   bool               `json:"manual_review,omitempty"`
	ReviewReason   string             `json:"review_reason,omitempty"`
	DisplayDate    string             `json:"display_date"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:            item.ProductRef,
			Name:                 item.Name,
			UnitPrice:            item.UnitPrice,
			Quantity:             item.Quantity,
			LineTotal:            item.LineTotal,
			SelectedOptions:      optionMap(item.SelectedOptions),
			OptionLabels:         optionMap(item.OptionLabels),
			PersonalizationImage: item.PersonalizationImage,
			PersonalizationNote:  item.PersonalizationNote,
		})
	}
	return orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Customer: customerPayload{
			Name:    order.Customer.Name,
			Email:   order.Customer.Email,
			Phone:   order.Customer.Phone,
			Address: order.Customer.Address,
			City:    order.Customer.City,
		},
		Items:          items,
		Currency:       order.Currency,
		Subtotal:       order.Subtotal,
		ShippingCost:   order.ShippingCost,
		CouponCode:     order.CouponCode,
		CouponDiscount: order.CouponDiscount,
		Total:          order.Total,
		PaymentMethod:  string(order.PaymentMethod),
		Note:           order.Note,
		AdminNote:      order.AdminNote,
		TrackingNumber: order.TrackingNumber,
		ManualReview:   order.ManualReview,
		ReviewReason:   order.ReviewReason,
		DisplayDate:    order.DisplayDate,
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
	}
}
