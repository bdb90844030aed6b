package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/pagination"
	"github.com/glassworks/storefront/internal/repositories"
)

type orderRepository struct{ s *Store }

func (r orderRepository) Insert(ctx context.Context, order domain.Order) error {
	defer r.s.lock(ctx)()
	if _, exists := r.s.state.orders[order.ID]; exists {
		return repositories.Conflict("orders.insert", "order %s already exists", order.ID)
	}
	r.s.state.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r orderRepository) Update(ctx context.Context, order domain.Order) error {
	defer r.s.lock(ctx)()
	current, ok := r.s.state.orders[order.ID]
	if !ok {
		return repositories.NotFound("orders.update", "order %s not found", order.ID)
	}
	current.Status = order.Status
	current.AdminNote = order.AdminNote
	current.TrackingNumber = order.TrackingNumber
	current.ManualReview = order.ManualReview
	current.ReviewReason = order.ReviewReason
	current.UpdatedAt = order.UpdatedAt
	r.s.state.orders[order.ID] = current
	return nil
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	defer r.s.lock(ctx)()
	order, ok := r.s.state.orders[strings.TrimSpace(orderID)]
	if !ok {
		return domain.Order{}, repositories.NotFound("orders.find_by_id", "order %s not found", orderID)
	}
	return cloneOrder(order), nil
}

func (r orderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	defer r.s.lock(ctx)()
	number := strings.TrimSpace(orderNumber)
	for _, order := range r.s.state.orders {
		if number != "" && order.OrderNumber == number {
			return cloneOrder(order), nil
		}
	}
	return domain.Order{}, repositories.NotFound("orders.find_by_number", "order %s not found", orderNumber)
}

func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}
	email := strings.ToLower(strings.TrimSpace(filter.CustomerEmail))

	unlock := r.s.lock(ctx)
	matches := make([]domain.Order, 0, len(r.s.state.orders))
	for _, order := range r.s.state.orders {
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, order.Status) {
			continue
		}
		if email != "" && strings.ToLower(strings.TrimSpace(order.Customer.Email)) != email {
			continue
		}
		if !inRange(order.CreatedAt, filter.CreatedRange) {
			continue
		}
		if !cursor.Before(order.CreatedAt, order.ID) {
			continue
		}
		matches = append(matches, cloneOrder(order))
	}
	unlock()

	slices.SortFunc(matches, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	page := domain.CursorPage[domain.Order]{Items: matches}
	if len(matches) > limit {
		page.Items = matches[:limit]
		last := page.Items[limit-1]
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func inRange(value time.Time, rng domain.RangeQuery[time.Time]) bool {
	if rng.From != nil && value.Before(*rng.From) {
		return false
	}
	if rng.To != nil && value.After(*rng.To) {
		return false
	}
	return true
}

type orderNumberRepository struct{ s *Store }

func (r orderNumberRepository) Create(ctx context.Context, entry domain.OrderNumberEntry) error {
	defer r.s.lock(ctx)()
	if _, exists := r.s.state.numbers[entry.Number]; exists {
		return repositories.Conflict("order_numbers.create", "order number %s already issued", entry.Number)
	}
	r.s.state.numbers[entry.Number] = entry
	return nil
}

func (r orderNumberRepository) Get(ctx context.Context, number string) (domain.OrderNumberEntry, error) {
	defer r.s.lock(ctx)()
	entry, ok := r.s.state.numbers[strings.TrimSpace(number)]
	if !ok {
		return domain.OrderNumberEntry{}, repositories.NotFound("order_numbers.get", "order number %s not found", number)
	}
	return entry, nil
}

func (r orderNumberRepository) Commit(ctx context.Context, number, orderID string, committedAt time.Time) error {
	defer r.s.lock(ctx)()
	entry, ok := r.s.state.numbers[number]
	if !ok {
		return repositories.NotFound("order_numbers.commit", "order number %s not found", number)
	}
	entry.State = domain.OrderNumberCommitted
	entry.OrderID = orderID
	entry.CommittedAt = &committedAt
	r.s.state.numbers[number] = entry
	return nil
}

func (r orderNumberRepository) DeleteExpiredReservations(ctx context.Context, before time.Time, limit int) (int, error) {
	defer r.s.lock(ctx)()
	deleted := 0
	for number, entry := range r.s.state.numbers {
		if limit > 0 && deleted >= limit {
			break
		}
		if entry.State == domain.OrderNumberReserved && entry.ReservedAt.Before(before) {
			delete(r.s.state.numbers, number)
			deleted++
		}
	}
	return deleted, nil
}

type historyRepository struct{ s *Store }

func (r historyRepository) Append(ctx context.Context, change domain.OrderStatusChange) error {
	defer r.s.lock(ctx)()
	existing := r.s.state.history[change.OrderID]
	r.s.state.history[change.OrderID] = append(slices.Clip(existing), change)
	return nil
}

func (r historyRepository) List(ctx context.Context, orderID string) ([]domain.OrderStatusChange, error) {
	defer r.s.lock(ctx)()
	return slices.Clone(r.s.state.history[orderID]), nil
}
