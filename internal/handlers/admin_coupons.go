package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/glassworks/storefront/internal/platform/auth"
	"github.com/glassworks/storefront/internal/platform/httpx"
	"github.com/glassworks/storefront/internal/services"
)

// AdminCatalogHandlers manages coupons and the shipping policy.
type AdminCatalogHandlers struct {
	coupons  services.CouponService
	settings services.SettingsService
}

// NewAdminCatalogHandlers constructs handlers for the back office coupon and settings screens.
func NewAdminCatalogHandlers(coupons services.CouponService, settings services.SettingsService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{coupons: coupons, settings: settings}
}

// Routes registers /admin/coupons and /admin/settings endpoints.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/coupons", h.listCoupons)
	r.Post("/coupons", h.createCoupon)
	r.Get("/coupons/{code}", h.getCoupon)
	r.Put("/coupons/{code}", h.updateCoupon)
	r.Delete("/coupons/{code}", h.deleteCoupon)

	r.Get("/settings/shipping", h.getShipping)
	r.Put("/settings/shipping", h.putShipping)
}

type couponRequest struct {
	Code           string `json:"code"`
	DiscountType   string `json:"discount_type"`
	DiscountValue  string `json:"discount_value"`
	MinOrderAmount int64  `json:"min_order_amount"`
	MaxUses        int64  `json:"max_uses"`
	IsActive       bool   `json:"is_active"`
	ExpiresAt      string `json:"expires_at"`
}

type couponPayload struct {
	Code           string `json:"code"`
	DiscountType   string `json:"discount_type"`
	DiscountValue  string `json:"discount_value"`
	MinOrderAmount int64  `json:"min_order_amount"`
	MaxUses        int64  `json:"max_uses"`
	UsedCount      int64  `json:"used_count"`
	IsActive       bool   `json:"is_active"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

type couponResponse struct {
	Coupon couponPayload `json:"coupon"`
}

type couponListResponse struct {
	Coupons []couponPayload `json:"coupons"`
}

type shippingPolicyRequest struct {
	FlatShippingCost      *int64 `json:"flat_shipping_cost"`
	FreeShippingThreshold *int64 `json:"free_shipping_threshold"`
}

type shippingPolicyPayload struct {
	FlatShippingCost      int64  `json:"flat_shipping_cost"`
	FreeShippingThreshold int64  `json:"free_shipping_threshold"`
	UpdatedAt             string `json:"updated_at,omitempty"`
	UpdatedBy             string `json:"updated_by,omitempty"`
}

func (h *AdminCatalogHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		unavailable(ctx, w, "coupon")
		return
	}
	coupons, err := h.coupons.ListCoupons(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := couponListResponse{Coupons: make([]couponPayload, 0, len(coupons))}
	for _, coupon := range coupons {
		payload.Coupons = append(payload.Coupons, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminCatalogHandlers) getCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		unavailable(ctx, w, "coupon")
		return
	}
	coupon, err := h.coupons.GetCoupon(ctx, chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, couponResponse{Coupon: buildCouponPayload(coupon)})
}

func (h *AdminCatalogHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		unavailable(ctx, w, "coupon")
		return
	}
	cmd, ok := h.decodeCoupon(w, r)
	if !ok {
		return
	}
	coupon, err := h.coupons.CreateCoupon(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, couponResponse{Coupon: buildCouponPayload(coupon)})
}

func (h *AdminCatalogHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		unavailable(ctx, w, "coupon")
		return
	}
	cmd, ok := h.decodeCoupon(w, r)
	if !ok {
		return
	}
	pathCode := chi.URLParam(r, "code")
	if cmd.Code == "" {
		cmd.Code = pathCode
	} else if !strings.EqualFold(strings.TrimSpace(cmd.Code), strings.TrimSpace(pathCode)) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code cannot be changed", http.StatusBadRequest))
		return
	}
	coupon, err := h.coupons.UpdateCoupon(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, couponResponse{Coupon: buildCouponPayload(coupon)})
}

func (h *AdminCatalogHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		unavailable(ctx, w, "coupon")
		return
	}
	if err := h.coupons.DeleteCoupon(ctx, chi.URLParam(r, "code")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) decodeCoupon(w http.ResponseWriter, r *http.Request) (services.UpsertCouponCommand, bool) {
	ctx := r.Context()
	var req couponRequest
	if !decodeBody(ctx, w, r, &req) {
		return services.UpsertCouponCommand{}, false
	}
	expires, err := parseTimeParam(req.ExpiresAt)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expires_at must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return services.UpsertCouponCommand{}, false
	}
	return services.UpsertCouponCommand{
		Code:           req.Code,
		DiscountType:   services.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType))),
		DiscountValue:  req.DiscountValue,
		MinOrderAmount: req.MinOrderAmount,
		MaxUses:        req.MaxUses,
		IsActive:       req.IsActive,
		ExpiresAt:      expires,
	}, true
}

func (h *AdminCatalogHandlers) getShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		unavailable(ctx, w, "settings")
		return
	}
	policy, err := h.settings.ShippingPolicy(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildShippingPolicyPayload(policy))
}

func (h *AdminCatalogHandlers) putShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		unavailable(ctx, w, "settings")
		return
	}
	var req shippingPolicyRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if req.FlatShippingCost == nil || req.FreeShippingThreshold == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "flat_shipping_cost and free_shipping_threshold are required", http.StatusBadRequest))
		return
	}
	var actor string
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		actor = identity.ActorID()
	}
	policy, err := h.settings.UpdateShippingPolicy(ctx, services.UpdateShippingPolicyCommand{
		FlatShippingCost:      *req.FlatShippingCost,
		FreeShippingThreshold: *req.FreeShippingThreshold,
		ActorID:               actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildShippingPolicyPayload(policy))
}

func buildCouponPayload(coupon services.Coupon) couponPayload {
	return couponPayload{
		Code:           coupon.Code,
		DiscountType:   string(coupon.DiscountType),
		DiscountValue:  coupon.DiscountValue.String(),
		MinOrderAmount: coupon.MinOrderAmount,
		MaxUses:        coupon.MaxUses,
		UsedCount:      coupon.UsedCount,
		IsActive:       coupon.IsActive,
		ExpiresAt:      formatTimePtr(coupon.ExpiresAt),
		CreatedAt:      formatTime(coupon.CreatedAt),
		UpdatedAt:      formatTime(coupon.UpdatedAt),
	}
}

func buildShippingPolicyPayload(policy services.ShippingPolicy) shippingPolicyPayload {
	return shippingPolicyPayload{
		FlatShippingCost:      policy.FlatShippingCost,
		FreeShippingThreshold: policy.FreeShippingThreshold,
		UpdatedAt:             formatTime(policy.UpdatedAt),
		UpdatedBy:             policy.UpdatedBy,
	}
}
