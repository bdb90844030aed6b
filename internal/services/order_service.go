package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/pagination"
	"github.com/glassworks/storefront/internal/platform/textutil"
	"github.com/glassworks/storefront/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	statusChangeIDPrefix = "osc_"
	orderMeterName       = "github.com/glassworks/storefront/internal/services"

	maxTrackingNumberLength = 100
	maxAdminNoteLength      = 2000
	maxStatusReasonLength   = 500
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
)

// Every non-terminal state may move to any other state; delivered and cancelled have no exits.
var orderStateTransitions = map[OrderStatus][]OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusConfirmed, domain.OrderStatusPreparing, domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusPending, domain.OrderStatusPreparing, domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusPreparing: {domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:   {domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusPreparing, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Numbers     repositories.OrderNumberRepository
	History     repositories.OrderStatusHistoryRepository
	Coupons     CouponService
	Allocator   OrderNumberAllocator
	Factory     *OrderFactory
	Localizer   *textutil.Localizer
	UnitOfWork  repositories.UnitOfWork
	Archiver    PersonalizationArchiver
	Notifier    OrderNotifier
	Events      OrderEventPublisher
	AllowReopen bool
	Meter       metric.Meter
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type orderService struct {
	orders      repositories.OrderRepository
	numbers     repositories.OrderNumberRepository
	history     repositories.OrderStatusHistoryRepository
	coupons     CouponService
	allocator   OrderNumberAllocator
	factory     *OrderFactory
	localizer   *textutil.Localizer
	unitOfWork  repositories.UnitOfWork
	archiver    PersonalizationArchiver
	notifier    OrderNotifier
	events      OrderEventPublisher
	allowReopen bool
	clock       func() time.Time
	newID       func() string
	logger      Logger

	ordersCreated    metric.Int64Counter
	numberCollisions metric.Int64Counter
	couponsRedeemed  metric.Int64Counter
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Numbers == nil:
		return nil, errors.New("order service: order number repository is required")
	case deps.History == nil:
		return nil, errors.New("order service: status history repository is required")
	case deps.Coupons == nil:
		return nil, errors.New("order service: coupon service is required")
	case deps.Allocator == nil:
		return nil, errors.New("order service: order number allocator is required")
	case deps.Factory == nil:
		return nil, errors.New("order service: order factory is required")
	case deps.Localizer == nil:
		return nil, errors.New("order service: localizer is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(orderMeterName)
	}

	svc := &orderService{
		orders:      deps.Orders,
		numbers:     deps.Numbers,
		history:     deps.History,
		coupons:     deps.Coupons,
		allocator:   deps.Allocator,
		factory:     deps.Factory,
		localizer:   deps.Localizer,
		unitOfWork:  unit,
		archiver:    deps.Archiver,
		notifier:    deps.Notifier,
		events:      deps.Events,
		allowReopen: deps.AllowReopen,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}

	var err error
	if svc.ordersCreated, err = meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders committed by checkout")); err != nil {
		return nil, fmt.Errorf("order service: register metric: %w", err)
	}
	if svc.numberCollisions, err = meter.Int64Counter("storefront.orders.number_collisions",
		metric.WithDescription("Order number claims retried after a collision")); err != nil {
		return nil, fmt.Errorf("order service: register metric: %w", err)
	}
	if svc.couponsRedeemed, err = meter.Int64Counter("storefront.coupons.redeemed",
		metric.WithDescription("Coupon usages recorded with committed orders")); err != nil {
		return nil, fmt.Errorf("order service: register metric: %w", err)
	}
	return svc, nil
}

// CreateOrder builds and persists an order. The number claim, order insert and coupon usage
// commit together or not at all.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}

	reserved := strings.TrimSpace(cmd.ReservedNumber)
	number := reserved
	if number == "" {
		generated, err := s.allocator.Generate(ctx)
		if err != nil {
			return Order{}, err
		}
		number = generated
	}

	order, err := s.factory.BuildOrder(ctx, BuildOrderInput{
		Items:         cmd.Items,
		Customer:      cmd.Customer,
		PaymentMethod: cmd.PaymentMethod,
		Note:          cmd.Note,
		Coupon:        cmd.Coupon,
		Policy:        cmd.Policy,
		OrderNumber:   number,
	})
	if err != nil {
		return Order{}, err
	}
	owner := reservationOwner{session: strings.TrimSpace(cmd.SessionID), email: order.Customer.Email}

	var (
		committed Order
		replay    bool
	)
	for attempt := 0; ; attempt++ {
		committed, replay, err = s.commitOrder(ctx, order, reserved != "", owner)
		if err == nil {
			break
		}
		if attempt > 0 || !retryableCommitError(err) {
			return Order{}, err
		}
		s.logger(ctx, "order.commit.retry", map[string]any{
			"orderID": order.ID,
			"number":  order.OrderNumber,
			"error":   err.Error(),
		})
		if errors.Is(err, ErrOrderNumberConflict) && reserved == "" {
			s.numberCollisions.Add(ctx, 1)
			next, regenErr := s.allocator.Regenerate(ctx, order.OrderNumber)
			if regenErr != nil {
				return Order{}, regenErr
			}
			order.OrderNumber = next
		}
	}

	if replay {
		s.logger(ctx, "order.create.replayed", map[string]any{
			"orderID": committed.ID,
			"number":  committed.OrderNumber,
		})
		return committed, nil
	}
	committed = s.archivePersonalization(ctx, committed)

	s.ordersCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(committed.PaymentMethod))))
	if committed.CouponCode != "" {
		s.couponsRedeemed.Add(ctx, 1, metric.WithAttributes(attribute.String("coupon", committed.CouponCode)))
	}
	s.logger(ctx, "order.created", map[string]any{
		"orderID": committed.ID,
		"number":  committed.OrderNumber,
		"total":   committed.Total,
		"coupon":  committed.CouponCode,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       committed.ID,
		OrderNumber:   committed.OrderNumber,
		CurrentStatus: committed.Status,
		Total:         committed.Total,
		OccurredAt:    committed.CreatedAt,
	})
	s.notify(ctx, committed)
	return committed, nil
}

// reservationOwner identifies the shopper allowed to check out with a reserved number.
type reservationOwner struct {
	session string
	email   string
}

// commitOrder runs the claim, insert and coupon usage in one unit of work. A reservation that
// the owner already turned into an order yields that order with replay set.
func (s *orderService) commitOrder(ctx context.Context, order Order, reserved bool, owner reservationOwner) (Order, bool, error) {
	var (
		existing Order
		replay   bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		replay = false
		now := s.clock()
		if reserved {
			placedOrder, placed, err := s.resolveReservation(txCtx, order.OrderNumber, owner)
			if err != nil {
				return err
			}
			if placed {
				existing, replay = placedOrder, true
				return nil
			}
			if err := s.numbers.Commit(txCtx, order.OrderNumber, order.ID, now); err != nil {
				return err
			}
		} else {
			err := s.numbers.Create(txCtx, OrderNumberEntry{
				Number:      order.OrderNumber,
				State:       domain.OrderNumberCommitted,
				SessionID:   owner.session,
				OrderID:     order.ID,
				ReservedAt:  now,
				CommittedAt: &now,
			})
			if err != nil {
				if repositories.IsConflict(err) {
					return fmt.Errorf("%w: %s: %v", ErrOrderNumberConflict, order.OrderNumber, err)
				}
				return err
			}
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return err
		}
		if order.CouponCode != "" {
			if _, err := s.coupons.Apply(txCtx, order.CouponCode); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, false, s.mapCommitError(err)
	}
	if replay {
		return existing, true, nil
	}
	return order, false, nil
}

// resolveReservation loads a reserved number for owner. placed reports that the number is
// already bound to an order, which is returned. A number reserved for another session, or
// bound to another customer's order, is reported as unknown.
func (s *orderService) resolveReservation(ctx context.Context, number string, owner reservationOwner) (Order, bool, error) {
	entry, err := s.numbers.Get(ctx, number)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, false, fmt.Errorf("%w: %s", ErrOrderNumberUnknown, number)
		}
		return Order{}, false, err
	}
	if entry.SessionID != "" && entry.SessionID != owner.session {
		return Order{}, false, fmt.Errorf("%w: %s", ErrOrderNumberUnknown, number)
	}
	if entry.State != domain.OrderNumberCommitted {
		return Order{}, false, nil
	}
	order, err := s.orders.FindByID(ctx, entry.OrderID)
	if err != nil {
		return Order{}, false, err
	}
	if !strings.EqualFold(strings.TrimSpace(order.Customer.Email), strings.TrimSpace(owner.email)) {
		return Order{}, false, fmt.Errorf("%w: %s", ErrOrderNumberUnknown, number)
	}
	return order, true, nil
}

// FindReservedOrder returns the order already placed with a reserved number. placed is false
// while the number still waits for checkout.
func (s *orderService) FindReservedOrder(ctx context.Context, number, sessionID, email string) (Order, bool, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return Order{}, false, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	order, placed, err := s.resolveReservation(ctx, number, reservationOwner{session: strings.TrimSpace(sessionID), email: email})
	if err != nil {
		if errors.Is(err, ErrOrderNumberUnknown) {
			return Order{}, false, err
		}
		return Order{}, false, s.mapRepositoryError(err)
	}
	return order, placed, nil
}

// mapCommitError keeps service errors raised inside the unit of work and classifies store
// errors surfaced at commit time. Firestore reports a create collision only when the
// transaction commits, so a bare conflict there is a number collision.
func (s *orderService) mapCommitError(err error) error {
	for _, known := range []error{
		ErrOrderNumberConflict,
		ErrOrderNumberUnknown,
		ErrCouponUsageLimitReached,
		ErrCouponNotFound,
		ErrCouponConflict,
		ErrStoreUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if repositories.IsConflict(err) {
		return fmt.Errorf("%w: %v", ErrOrderNumberConflict, err)
	}
	return s.mapRepositoryError(err)
}

func retryableCommitError(err error) bool {
	return errors.Is(err, ErrOrderNumberConflict) ||
		errors.Is(err, ErrCouponUsageLimitReached) ||
		errors.Is(err, ErrCouponConflict) ||
		errors.Is(err, ErrOrderConflict)
}

// GetOrder resolves ref as an order id first and as an order number second.
func (s *orderService) GetOrder(ctx context.Context, ref string) (Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Order{}, fmt.Errorf("%w: order reference is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, ref)
	if err == nil {
		return order, nil
	}
	if !repositories.IsNotFound(err) {
		return Order{}, s.mapRepositoryError(err)
	}
	order, err = s.orders.FindByNumber(ctx, ref)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	statuses := make([]OrderStatus, 0, len(filter.Status))
	for _, raw := range filter.Status {
		status := OrderStatus(strings.ToLower(strings.TrimSpace(string(raw))))
		if !status.Valid() {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, raw)
		}
		if !slices.Contains(statuses, status) {
			statuses = append(statuses, status)
		}
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedTo.Before(*filter.CreatedFrom) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: created range is inverted", ErrOrderInvalidInput)
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status:        statuses,
		CreatedRange:  domain.RangeQuery[time.Time]{From: filter.CreatedFrom, To: filter.CreatedTo},
		CustomerEmail: strings.ToLower(strings.TrimSpace(filter.CustomerEmail)),
		Pagination:    filter.Pagination,
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if !target.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	actor := strings.TrimSpace(cmd.ActorID)
	reason := textutil.PlainText(cmd.Reason, maxStatusReasonLength)

	var (
		updated  Order
		previous OrderStatus
		changed  bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status
		changed = false
		if order.Status == target {
			updated = order
			return nil
		}
		if !s.canTransition(order.Status, target) {
			return fmt.Errorf("%w: %s → %s", ErrOrderInvalidState, order.Status, target)
		}

		now := s.clock()
		order.Status = target
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return err
		}
		if err := s.history.Append(txCtx, OrderStatusChange{
			ID:         statusChangeIDPrefix + s.newID(),
			OrderID:    order.ID,
			From:       previous,
			To:         target,
			ActorID:    actor,
			Reason:     reason,
			OccurredAt: now,
		}); err != nil {
			return err
		}
		updated = order
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !changed {
		return updated, nil
	}

	s.logger(ctx, "order.status.changed", map[string]any{
		"orderID": updated.ID,
		"from":    previous,
		"to":      updated.Status,
		"actor":   actor,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		PreviousStatus: previous,
		CurrentStatus:  updated.Status,
		ActorID:        actor,
		Total:          updated.Total,
		OccurredAt:     updated.UpdatedAt,
	})
	return updated, nil
}

// UpdateFields applies the admin-editable fields. Everything else on an order is fixed at creation.
func (s *orderService) UpdateFields(ctx context.Context, orderID string, patch OrderFieldsPatch) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if patch.TrackingNumber == nil && patch.AdminNote == nil {
		return Order{}, fmt.Errorf("%w: no editable fields supplied", ErrOrderInvalidInput)
	}
	var tracking, note string
	if patch.TrackingNumber != nil {
		tracking = strings.TrimSpace(*patch.TrackingNumber)
		if len(tracking) > maxTrackingNumberLength {
			return Order{}, fmt.Errorf("%w: tracking number exceeds %d characters", ErrOrderInvalidInput, maxTrackingNumberLength)
		}
	}
	if patch.AdminNote != nil {
		note = textutil.PlainText(*patch.AdminNote, maxAdminNoteLength)
	}

	var updated Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if patch.TrackingNumber != nil {
			order.TrackingNumber = tracking
		}
		if patch.AdminNote != nil {
			order.AdminNote = note
		}
		order.UpdatedAt = s.clock()
		if err := s.orders.Update(txCtx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	s.logger(ctx, "order.fields.updated", map[string]any{
		"orderID":  updated.ID,
		"tracking": patch.TrackingNumber != nil,
		"note":     patch.AdminNote != nil,
	})
	return updated, nil
}

func (s *orderService) StatusHistory(ctx context.Context, orderID string) ([]OrderStatusChange, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, s.mapRepositoryError(err)
	}
	changes, err := s.history.List(ctx, orderID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return changes, nil
}

func (s *orderService) canTransition(current, target OrderStatus) bool {
	if current == target {
		return true
	}
	if s.allowReopen && current == domain.OrderStatusCancelled && target == domain.OrderStatusPending {
		return true
	}
	return slices.Contains(orderStateTransitions[current], target)
}

// archivePersonalization copies a committed order's uploads into its archive and stores the new
// refs. Any failure keeps the original refs on the order.
func (s *orderService) archivePersonalization(ctx context.Context, order Order) Order {
	if s.archiver == nil {
		return order
	}
	var (
		refs    []string
		indexes []int
	)
	for i, item := range order.Items {
		if item.PersonalizationImage != "" {
			refs = append(refs, item.PersonalizationImage)
			indexes = append(indexes, i)
		}
	}
	if len(refs) == 0 {
		return order
	}
	archived, err := s.archiver.ArchivePersonalization(ctx, order.ID, refs)
	if err == nil && len(archived) != len(refs) {
		err = fmt.Errorf("archiver returned %d refs for %d images", len(archived), len(refs))
	}
	if err != nil {
		s.logger(ctx, "order.personalization.archive.failed", map[string]any{
			"orderID": order.ID,
			"images":  len(refs),
			"error":   err.Error(),
		})
		return order
	}

	updated := order
	updated.Items = slices.Clone(order.Items)
	for n, idx := range indexes {
		updated.Items[idx].PersonalizationImage = archived[n]
	}
	if err := s.orders.Update(ctx, updated); err != nil {
		s.logger(ctx, "order.personalization.update.failed", map[string]any{
			"orderID": order.ID,
			"error":   err.Error(),
		})
		return order
	}
	return updated
}

func (s *orderService) notify(ctx context.Context, order Order) {
	if s.notifier == nil {
		return
	}
	items := make([]OrderNotificationItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderNotificationItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			LineTotal: s.localizer.Money(item.LineTotal),
		})
	}
	notification := OrderNotification{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Locale:        s.localizer.Locale(),
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		PaymentMethod: order.PaymentMethod,
		DisplayDate:   order.DisplayDate,
		Items:         items,
		Subtotal:      s.localizer.Money(order.Subtotal),
		ShippingCost:  s.localizer.Money(order.ShippingCost),
		Discount:      s.localizer.Money(order.CouponDiscount),
		Total:         s.localizer.Money(order.Total),
	}
	if err := s.notifier.NotifyOrderCreated(ctx, notification); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"orderID": order.ID,
			"number":  order.OrderNumber,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
