package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/glassworks/storefront/internal/platform/httpx"
	"github.com/glassworks/storefront/internal/platform/requestctx"
	"github.com/glassworks/storefront/internal/services"
)

// writeServiceError maps service sentinels onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var validation *services.CheckoutValidationError
	if errors.As(err, &validation) {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "one or more fields are invalid", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"fields": validation.Fields}))
		return
	}

	var rejected *services.CouponRejectedError
	if errors.As(err, &rejected) {
		status := http.StatusUnprocessableEntity
		apiErr := httpx.NewError("coupon_rejected", rejected.Message, status)
		if rejected.Reason == services.CouponReasonUsageLimitReached {
			apiErr = httpx.NewError("coupon_usage_limit_reached", rejected.Message, http.StatusConflict).AsRetryable()
		}
		httpx.WriteError(ctx, w, apiErr.WithDetails(map[string]any{
			"coupon_code": rejected.Code,
			"reason":      string(rejected.Reason),
		}))
		return
	}

	switch {
	case errors.Is(err, services.ErrCartInvalidInput),
		errors.Is(err, services.ErrCheckoutInvalidInput),
		errors.Is(err, services.ErrCouponInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrSettingsInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCartLineNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_line_not_found", "cart line not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNumberUnknown):
		httpx.WriteError(ctx, w, httpx.NewError("order_number_unknown", "order number was not reserved", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponUsageLimitReached):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_usage_limit_reached", "coupon usage limit reached", http.StatusConflict).AsRetryable())
	case errors.Is(err, services.ErrOrderNumberConflict), errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order could not be stored, retry the request", http.StatusConflict).AsRetryable())
	case errors.Is(err, services.ErrCouponConflict):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_exists", "a coupon with this code already exists", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrStoreUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "storage is temporarily unavailable", http.StatusServiceUnavailable).AsRetryable())
	case errors.Is(err, services.ErrOrderNumberExhausted):
		requestctx.Logger(ctx).Error("order numbers exhausted", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("order_numbers_exhausted", "order numbers are exhausted for this period", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
