package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/textutil"
)

const (
	checkoutTracerName = "github.com/glassworks/storefront/internal/services/checkout"
	maxCustomerNote    = 2000
)

var (
	// ErrCheckoutInvalidInput indicates the checkout request failed validation.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutEmptyCart indicates the session has no lines to order.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
)

var customerRules = map[string]string{
	"Name":    "required,max=120",
	"Email":   "required,email,max=254",
	"Phone":   "required,min=7,max=32",
	"Address": "required,max=500",
	"City":    "required,max=120",
}

// CheckoutValidationError lists field level failures keyed by snake_case path.
type CheckoutValidationError struct {
	Fields map[string]string
}

func (e *CheckoutValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, field+" ("+rule+")")
	}
	return "checkout: invalid input: " + strings.Join(parts, ", ")
}

func (e *CheckoutValidationError) Is(target error) bool {
	return target == ErrCheckoutInvalidInput
}

// CheckoutServiceDeps wires the services a checkout sequences.
type CheckoutServiceDeps struct {
	Carts     CartService
	Coupons   CouponService
	Settings  SettingsService
	Orders    OrderService
	Allocator OrderNumberAllocator
	Tracer    trace.Tracer
	Logger    Logger
}

type checkoutService struct {
	carts     CartService
	coupons   CouponService
	settings  SettingsService
	orders    OrderService
	allocator OrderNumberAllocator
	validate  *validator.Validate
	tracer    trace.Tracer
	logger    Logger
}

// NewCheckoutService constructs the checkout orchestrator.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	switch {
	case deps.Carts == nil:
		return nil, errors.New("checkout service: cart service is required")
	case deps.Coupons == nil:
		return nil, errors.New("checkout service: coupon service is required")
	case deps.Settings == nil:
		return nil, errors.New("checkout service: settings service is required")
	case deps.Orders == nil:
		return nil, errors.New("checkout service: order service is required")
	case deps.Allocator == nil:
		return nil, errors.New("checkout service: order number allocator is required")
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(checkoutTracerName)
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterStructValidationMapRules(customerRules, Customer{})

	return &checkoutService{
		carts:     deps.Carts,
		coupons:   deps.Coupons,
		settings:  deps.Settings,
		orders:    deps.Orders,
		allocator: deps.Allocator,
		validate:  validate,
		tracer:    tracer,
		logger:    logger,
	}, nil
}

func (s *checkoutService) ValidateCoupon(ctx context.Context, sessionID, code string) (CouponValidation, error) {
	if strings.TrimSpace(code) == "" {
		return CouponValidation{}, fmt.Errorf("%w: coupon code is required", ErrCheckoutInvalidInput)
	}
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return CouponValidation{}, err
	}
	return s.coupons.Validate(ctx, code, cart.Subtotal())
}

func (s *checkoutService) QuoteShipping(ctx context.Context, sessionID string) (ShippingQuote, error) {
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return ShippingQuote{}, err
	}
	policy, err := s.settings.ShippingPolicy(ctx)
	if err != nil {
		return ShippingQuote{}, err
	}
	subtotal := cart.Subtotal()
	return ShippingQuote{
		Subtotal:              subtotal,
		ShippingCost:          ComputeShipping(subtotal, policy),
		FreeShippingThreshold: policy.FreeShippingThreshold,
		Currency:              cart.Currency,
	}, nil
}

// ReserveOrderNumber issues a number only the given cart session can check out with.
func (s *checkoutService) ReserveOrderNumber(ctx context.Context, sessionID string) (OrderNumberEntry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return OrderNumberEntry{}, fmt.Errorf("%w: cart session is required", ErrCheckoutInvalidInput)
	}
	return s.allocator.Reserve(ctx, sessionID)
}

// PlaceOrder converts the session cart into an order. The cart is cleared only after the order
// is committed.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder",
		trace.WithAttributes(attribute.String("payment_method", string(cmd.PaymentMethod))))
	defer span.End()

	order, err := s.placeOrder(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Order{}, err
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.number", order.OrderNumber),
		attribute.Int64("order.total", order.Total),
	)
	return order, nil
}

func (s *checkoutService) placeOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	cmd = normalizePlaceOrder(cmd)
	if err := s.validateCommand(cmd); err != nil {
		return Order{}, err
	}

	// A retry after success finds its order here, before the emptied cart or a used up coupon
	// can reject it.
	if cmd.ReservedNumber != "" {
		placed, found, err := s.orders.FindReservedOrder(ctx, cmd.ReservedNumber, cmd.SessionID, cmd.Customer.Email)
		if err != nil {
			return Order{}, err
		}
		if found {
			s.logger(ctx, "checkout.replayed", map[string]any{
				"session": cmd.SessionID,
				"orderID": placed.ID,
				"number":  placed.OrderNumber,
			})
			return placed, nil
		}
	}

	cart, err := s.carts.GetCart(ctx, cmd.SessionID)
	if err != nil {
		return Order{}, err
	}
	if len(cart.Lines) == 0 {
		return Order{}, ErrCheckoutEmptyCart
	}
	subtotal := cart.Subtotal()

	var coupon *Coupon
	if cmd.CouponCode != "" {
		result, err := s.coupons.Validate(ctx, cmd.CouponCode, subtotal)
		if err != nil {
			return Order{}, err
		}
		if !result.Valid {
			return Order{}, &CouponRejectedError{Code: cmd.CouponCode, Reason: result.Reason, Message: result.Message}
		}
		coupon = &result.Coupon
	}

	policy, err := s.settings.ShippingPolicy(ctx)
	if err != nil {
		return Order{}, err
	}

	order, err := s.orders.CreateOrder(ctx, CreateOrderCommand{
		SessionID:      cmd.SessionID,
		Items:          cart.Snapshot(),
		Customer:       cmd.Customer,
		PaymentMethod:  cmd.PaymentMethod,
		Note:           cmd.Note,
		Coupon:         coupon,
		Policy:         policy,
		ReservedNumber: cmd.ReservedNumber,
	})
	if err != nil {
		s.logger(ctx, "checkout.failed", map[string]any{
			"session": cmd.SessionID,
			"error":   err.Error(),
		})
		return Order{}, err
	}

	if err := s.carts.Clear(ctx, cmd.SessionID); err != nil {
		s.logger(ctx, "checkout.cart.clear.failed", map[string]any{
			"session": cmd.SessionID,
			"orderID": order.ID,
			"error":   err.Error(),
		})
	}
	s.logger(ctx, "checkout.completed", map[string]any{
		"session": cmd.SessionID,
		"orderID": order.ID,
		"number":  order.OrderNumber,
		"total":   order.Total,
	})
	return order, nil
}

func (s *checkoutService) validateCommand(cmd PlaceOrderCommand) error {
	err := s.validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	fields := make(map[string]string, len(validationErrs))
	for _, fieldErr := range validationErrs {
		fields[fieldPath(fieldErr.StructNamespace())] = fieldErr.Tag()
	}
	return &CheckoutValidationError{Fields: fields}
}

func normalizePlaceOrder(cmd PlaceOrderCommand) PlaceOrderCommand {
	cmd.SessionID = strings.TrimSpace(cmd.SessionID)
	cmd.PaymentMethod = PaymentMethod(strings.ToLower(strings.TrimSpace(string(cmd.PaymentMethod))))
	cmd.CouponCode = domain.NormalizeCouponCode(cmd.CouponCode)
	cmd.ReservedNumber = strings.TrimSpace(cmd.ReservedNumber)
	cmd.Note = textutil.PlainText(cmd.Note, maxCustomerNote)
	cmd.Customer = Customer{
		Name:    textutil.PlainText(cmd.Customer.Name, 0),
		Email:   strings.TrimSpace(cmd.Customer.Email),
		Phone:   strings.TrimSpace(cmd.Customer.Phone),
		Address: textutil.PlainText(cmd.Customer.Address, 0),
		City:    textutil.PlainText(cmd.Customer.City, 0),
	}
	return cmd
}

// fieldPath turns "PlaceOrderCommand.Customer.Email" into "customer.email".
func fieldPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}
	for i, segment := range segments {
		segments[i] = snakeCase(segment)
	}
	return strings.Join(segments, ".")
}

func snakeCase(value string) string {
	var b strings.Builder
	for i, r := range value {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
