package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/services"
)

var errNotStubbed = errors.New("not stubbed")

type stubCartService struct {
	getFunc        func(ctx context.Context, sessionID string) (services.Cart, error)
	addFunc        func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error)
	updateFunc     func(ctx context.Context, sessionID, lineKey string, quantity int) (services.Cart, error)
	removeFunc     func(ctx context.Context, sessionID, lineKey string) (services.Cart, error)
	clearFunc      func(ctx context.Context, sessionID string) error
	visibilityFunc func(ctx context.Context, sessionID string, visible bool) (services.Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, sessionID string) (services.Cart, error) {
	if s.getFunc == nil {
		return services.Cart{}, errNotStubbed
	}
	return s.getFunc(ctx, sessionID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addFunc == nil {
		return services.Cart{}, errNotStubbed
	}
	return s.addFunc(ctx, cmd)
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, sessionID, lineKey string, quantity int) (services.Cart, error) {
	if s.updateFunc == nil {
		return services.Cart{}, errNotStubbed
	}
	return s.updateFunc(ctx, sessionID, lineKey, quantity)
}

func (s *stubCartService) RemoveItem(ctx context.Context, sessionID, lineKey string) (services.Cart, error) {
	if s.removeFunc == nil {
		return services.Cart{}, errNotStubbed
	}
	return s.removeFunc(ctx, sessionID, lineKey)
}

func (s *stubCartService) Clear(ctx context.Context, sessionID string) error {
	if s.clearFunc == nil {
		return errNotStubbed
	}
	return s.clearFunc(ctx, sessionID)
}

func (s *stubCartService) SetVisibility(ctx context.Context, sessionID string, visible bool) (services.Cart, error) {
	if s.visibilityFunc == nil {
		return services.Cart{}, errNotStubbed
	}
	return s.visibilityFunc(ctx, sessionID, visible)
}

type stubCheckoutService struct {
	validateFunc func(ctx context.Context, sessionID, code string) (services.CouponValidation, error)
	quoteFunc    func(ctx context.Context, sessionID string) (services.ShippingQuote, error)
	reserveFunc  func(ctx context.Context, sessionID string) (services.OrderNumberEntry, error)
	placeFunc    func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error)
}

func (s *stubCheckoutService) ValidateCoupon(ctx context.Context, sessionID, code string) (services.CouponValidation, error) {
	if s.validateFunc == nil {
		return services.CouponValidation{}, errNotStubbed
	}
	return s.validateFunc(ctx, sessionID, code)
}

func (s *stubCheckoutService) QuoteShipping(ctx context.Context, sessionID string) (services.ShippingQuote, error) {
	if s.quoteFunc == nil {
		return services.ShippingQuote{}, errNotStubbed
	}
	return s.quoteFunc(ctx, sessionID)
}

func (s *stubCheckoutService) ReserveOrderNumber(ctx context.Context, sessionID string) (services.OrderNumberEntry, error) {
	if s.reserveFunc == nil {
		return services.OrderNumberEntry{}, errNotStubbed
	}
	return s.reserveFunc(ctx, sessionID)
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	if s.placeFunc == nil {
		return services.Order{}, errNotStubbed
	}
	return s.placeFunc(ctx, cmd)
}

type stubOrderService struct {
	getFunc          func(ctx context.Context, ref string) (services.Order, error)
	listFunc         func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	updateStatusFunc func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error)
	updateFieldsFunc func(ctx context.Context, orderID string, patch services.OrderFieldsPatch) (services.Order, error)
	historyFunc      func(ctx context.Context, orderID string) ([]services.OrderStatusChange, error)
}

func (s *stubOrderService) CreateOrder(context.Context, services.CreateOrderCommand) (services.Order, error) {
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) FindReservedOrder(context.Context, string, string, string) (services.Order, bool, error) {
	return services.Order{}, false, errNotStubbed
}

func (s *stubOrderService) GetOrder(ctx context.Context, ref string) (services.Order, error) {
	if s.getFunc == nil {
		return services.Order{}, errNotStubbed
	}
	return s.getFunc(ctx, ref)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Order]{}, errNotStubbed
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateStatusFunc == nil {
		return services.Order{}, errNotStubbed
	}
	return s.updateStatusFunc(ctx, cmd)
}

func (s *stubOrderService) UpdateFields(ctx context.Context, orderID string, patch services.OrderFieldsPatch) (services.Order, error) {
	if s.updateFieldsFunc == nil {
		return services.Order{}, errNotStubbed
	}
	return s.updateFieldsFunc(ctx, orderID, patch)
}

func (s *stubOrderService) StatusHistory(ctx context.Context, orderID string) ([]services.OrderStatusChange, error) {
	if s.historyFunc == nil {
		return nil, errNotStubbed
	}
	return s.historyFunc(ctx, orderID)
}

type stubCouponService struct {
	coupons map[string]services.Coupon
}

func (s *stubCouponService) Validate(context.Context, string, int64) (services.CouponValidation, error) {
	return services.CouponValidation{}, errNotStubbed
}

func (s *stubCouponService) Apply(context.Context, string) (services.Coupon, error) {
	return services.Coupon{}, errNotStubbed
}

func (s *stubCouponService) CreateCoupon(_ context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
	code := domain.NormalizeCouponCode(cmd.Code)
	if _, exists := s.coupons[code]; exists {
		return services.Coupon{}, services.ErrCouponConflict
	}
	if cmd.DiscountType != domain.DiscountTypeFixed && cmd.DiscountType != domain.DiscountTypePercentage {
		return services.Coupon{}, services.ErrCouponInvalidInput
	}
	coupon := services.Coupon{Code: code, DiscountType: cmd.DiscountType, IsActive: cmd.IsActive, MaxUses: cmd.MaxUses, ExpiresAt: cmd.ExpiresAt}
	s.coupons[code] = coupon
	return coupon, nil
}

func (s *stubCouponService) UpdateCoupon(_ context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
	code := domain.NormalizeCouponCode(cmd.Code)
	existing, ok := s.coupons[code]
	if !ok {
		return services.Coupon{}, services.ErrCouponNotFound
	}
	existing.IsActive = cmd.IsActive
	existing.MaxUses = cmd.MaxUses
	s.coupons[code] = existing
	return existing, nil
}

func (s *stubCouponService) GetCoupon(_ context.Context, code string) (services.Coupon, error) {
	coupon, ok := s.coupons[domain.NormalizeCouponCode(code)]
	if !ok {
		return services.Coupon{}, services.ErrCouponNotFound
	}
	return coupon, nil
}

func (s *stubCouponService) ListCoupons(context.Context) ([]services.Coupon, error) {
	out := make([]services.Coupon, 0, len(s.coupons))
	for _, coupon := range s.coupons {
		out = append(out, coupon)
	}
	return out, nil
}

func (s *stubCouponService) DeleteCoupon(_ context.Context, code string) error {
	code = domain.NormalizeCouponCode(code)
	if _, ok := s.coupons[code]; !ok {
		return services.ErrCouponNotFound
	}
	delete(s.coupons, code)
	return nil
}

type stubSettingsService struct {
	policy services.ShippingPolicy
	last   services.UpdateShippingPolicyCommand
}

func (s *stubSettingsService) ShippingPolicy(context.Context) (services.ShippingPolicy, error) {
	return s.policy, nil
}

func (s *stubSettingsService) UpdateShippingPolicy(_ context.Context, cmd services.UpdateShippingPolicyCommand) (services.ShippingPolicy, error) {
	if cmd.FlatShippingCost < 0 || cmd.FreeShippingThreshold < 0 {
		return services.ShippingPolicy{}, services.ErrSettingsInvalidInput
	}
	s.last = cmd
	s.policy = services.ShippingPolicy{FlatShippingCost: cmd.FlatShippingCost, FreeShippingThreshold: cmd.FreeShippingThreshold, UpdatedBy: cmd.ActorID}
	return s.policy, nil
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
	build  services.BuildInfo
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

func (s *stubSystemService) Build() services.BuildInfo {
	return s.build
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rr.Body.String(), err)
	}
	return body
}

func sampleOrder() services.Order {
	return services.Order{
		ID:          "ord_01",
		OrderNumber: "GW-2025-000007",
		Customer: services.Customer{
			Name:    "Ece Yılmaz",
			Email:   "ece@example.com",
			Phone:   "+905551112233",
			Address: "Moda Cd. 12",
			City:    "İstanbul",
		},
		Items: []services.OrderItem{{
			ProductRef: "prod-wave",
			Name:       "Wave",
			UnitPrice:  1000,
			Quantity:   2,
			LineTotal:  2000,
			SelectedOptions: map[domain.OptionKey]string{
				"size": "50x70",
			},
		}},
		Currency:       "TRY",
		Subtotal:       2000,
		CouponCode:     "SAVE10",
		CouponDiscount: 200,
		Total:          1800,
		PaymentMethod:  domain.PaymentMethodBankTransfer,
		Status:         domain.OrderStatusPending,
		AdminNote:      "call before shipping",
		DisplayDate:    "14.03.2025 09:30",
	}
}
