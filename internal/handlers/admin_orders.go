package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/glassworks/storefront/internal/platform/auth"
	"github.com/glassworks/storefront/internal/platform/httpx"
	"github.com/glassworks/storefront/internal/platform/requestctx"
	"github.com/glassworks/storefront/internal/services"
)

// ImageURLSigner turns an archived gs:// reference into a short lived download link.
type ImageURLSigner func(ctx context.Context, ref string) (string, error)

// AdminOrderHandlers exposes the back office order list and lifecycle operations.
type AdminOrderHandlers struct {
	orders services.OrderService
	signer ImageURLSigner
}

// NewAdminOrderHandlers constructs admin order handlers. Authentication is applied by the
// admin route group.
func NewAdminOrderHandlers(orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{orders: orders}
}

// WithImageURLSigner adds personalization_image_url to items on the single order view.
func (h *AdminOrderHandlers) WithImageURLSigner(signer ImageURLSigner) *AdminOrderHandlers {
	h.signer = signer
	return h
}

// Routes registers /admin/orders endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{ref}", h.getOrder)
	r.Put("/orders/{orderID}/status", h.updateStatus)
	r.Patch("/orders/{orderID}", h.updateFields)
	r.Get("/orders/{orderID}/history", h.history)
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type updateOrderFieldsRequest struct {
	TrackingNumber *string `json:"tracking_number"`
	AdminNote      *string `json:"admin_note"`
}

type statusChangePayload struct {
	ID         string `json:"id"`
	From       string `json:"from,omitempty"`
	To         string `json:"to"`
	ActorID    string `json:"actor_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type statusHistoryResponse struct {
	History []statusChangePayload `json:"history"`
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		CustomerEmail: strings.TrimSpace(query.Get("email")),
	}
	for _, raw := range query["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Status = append(filter.Status, services.OrderStatus(part))
			}
		}
	}

	from, err := parseTimeParam(query.Get("created_from"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_from must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}
	to, err := parseTimeParam(query.Get("created_to"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_to must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}
	filter.CreatedFrom, filter.CreatedTo = from, to

	size, err := parsePageSize(query.Get("page_size"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.Pagination.PageSize = size
	filter.Pagination.PageToken = strings.TrimSpace(query.Get("page_token"))

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := buildOrderPayload(order)
	h.signImages(ctx, payload.Items)
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: payload})
}

// signImages is best effort; an unsigned item still carries its gs:// reference.
func (h *AdminOrderHandlers) signImages(ctx context.Context, items []orderItemPayload) {
	if h.signer == nil {
		return
	}
	for i := range items {
		ref := items[i].PersonalizationImage
		if !strings.HasPrefix(ref, "gs://") {
			continue
		}
		signed, err := h.signer(ctx, ref)
		if err != nil {
			requestctx.Logger(ctx).Warn("sign personalization image", zap.String("ref", ref), zap.Error(err))
			continue
		}
		items[i].PersonalizationImageURL = signed
	}
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}
	var req updateOrderStatusRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	var actor string
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		actor = identity.ActorID()
	}
	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  services.OrderStatus(req.Status),
		ActorID: actor,
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) updateFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}
	var req updateOrderFieldsRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	order, err := h.orders.UpdateFields(ctx, chi.URLParam(r, "orderID"), services.OrderFieldsPatch{
		TrackingNumber: req.TrackingNumber,
		AdminNote:      req.AdminNote,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}
	changes, err := h.orders.StatusHistory(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := statusHistoryResponse{History: make([]statusChangePayload, 0, len(changes))}
	for _, change := range changes {
		payload.History = append(payload.History, statusChangePayload{
			ID:         change.ID,
			From:       string(change.From),
			To:         string(change.To),
			ActorID:    change.ActorID,
			Reason:     change.Reason,
			OccurredAt: formatTime(change.OccurredAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}
