package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/glassworks/storefront/internal/domain"
	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/platform/pagination"
	"github.com/glassworks/storefront/internal/repositories"
)

const (
	ordersCollection        = "orders"
	statusHistoryCollection = "statusHistory"
	// Firestore "in" filters accept at most 30 values.
	maxStatusFilter = 30
)

// OrderRepository stores orders keyed by order id.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Create(ctx, order.ID, encodeOrder(order))
}

// Update rewrites the mutable order fields. The customer, items and totals are never touched.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Update(ctx, order.ID, []firestore.Update{
		{Path: "status", Value: string(order.Status)},
		{Path: "adminNote", Value: order.AdminNote},
		{Path: "trackingNumber", Value: order.TrackingNumber},
		{Path: "manualReview", Value: order.ManualReview},
		{Path: "reviewReason", Value: order.ReviewReason},
		{Path: "updatedAt", Value: order.UpdatedAt.UTC()},
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	number := strings.TrimSpace(orderNumber)
	if number == "" {
		return domain.Order{}, repositories.NotFound("orders.find_by_number", "order number is empty")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", number).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, repositories.NotFound("orders.find_by_number", "order %s not found", number)
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	statuses := make([]string, 0, len(filter.Status))
	for _, status := range filter.Status {
		if len(statuses) == maxStatusFilter {
			break
		}
		statuses = append(statuses, string(status))
	}
	email := strings.ToLower(strings.TrimSpace(filter.CustomerEmail))

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		switch len(statuses) {
		case 0:
		case 1:
			q = q.Where("status", "==", statuses[0])
		default:
			q = q.Where("status", "in", statuses)
		}
		if email != "" {
			q = q.Where("customer.emailLower", "==", email)
		}
		if from := filter.CreatedRange.From; from != nil {
			q = q.Where("createdAt", ">=", from.UTC())
		}
		if to := filter.CreatedRange.To; to != nil {
			q = q.Where("createdAt", "<=", to.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.CreatedAt.UTC(), cursor.ID)
		}
		return q.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	if len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.Data.CreatedAt, ID: last.ID})
	}
	page.Items = make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	return page, nil
}

// StatusHistoryRepository stores status changes under orders/{id}/statusHistory.
type StatusHistoryRepository struct {
	orders *pfirestore.BaseRepository[orderDocument]
}

// NewStatusHistoryRepository constructs the subcollection-backed history repository.
func NewStatusHistoryRepository(provider *pfirestore.Provider) (*StatusHistoryRepository, error) {
	if provider == nil {
		return nil, errors.New("status history repository requires firestore provider")
	}
	return &StatusHistoryRepository{orders: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)}, nil
}

func (r *StatusHistoryRepository) history(orderID string) *pfirestore.BaseRepository[statusChangeDocument] {
	return pfirestore.Sub[statusChangeDocument](r.orders, orderID, statusHistoryCollection)
}

func (r *StatusHistoryRepository) Append(ctx context.Context, change domain.OrderStatusChange) error {
	if strings.TrimSpace(change.OrderID) == "" || strings.TrimSpace(change.ID) == "" {
		return errors.New("status history repository: order id and change id are required")
	}
	return r.history(change.OrderID).Create(ctx, change.ID, statusChangeDocument{
		From:       string(change.From),
		To:         string(change.To),
		ActorID:    change.ActorID,
		Reason:     change.Reason,
		OccurredAt: change.OccurredAt.UTC(),
	})
}

func (r *StatusHistoryRepository) List(ctx context.Context, orderID string) ([]domain.OrderStatusChange, error) {
	docs, err := r.history(strings.TrimSpace(orderID)).Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("occurredAt", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	changes := make([]domain.OrderStatusChange, 0, len(docs))
	for _, doc := range docs {
		changes = append(changes, domain.OrderStatusChange{
			ID:         doc.ID,
			OrderID:    orderID,
			From:       domain.OrderStatus(doc.Data.From),
			To:         domain.OrderStatus(doc.Data.To),
			ActorID:    doc.Data.ActorID,
			Reason:     doc.Data.Reason,
			OccurredAt: doc.Data.OccurredAt,
		})
	}
	return changes, nil
}

type orderDocument struct {
	OrderNumber    string              `firestore:"orderNumber"`
	Customer       customerDocument    `firestore:"customer"`
	Items          []orderItemDocument `firestore:"items"`
	Currency       string              `firestore:"currency"`
	Subtotal       int64               `firestore:"subtotal"`
	ShippingCost   int64               `firestore:"shippingCost"`
	CouponCode     string              `firestore:"couponCode,omitempty"`
	CouponDiscount int64               `firestore:"couponDiscount"`
	Total          int64               `firestore:"total"`
	PaymentMethod  string              `firestore:"paymentMethod"`
	Status         string              `firestore:"status"`
	Note           string              `firestore:"note,omitempty"`
	AdminNote      string              `firestore:"adminNote"`
	TrackingNumber string              `firestore:"trackingNumber"`
	ManualReview   bool                `firestore:"manualReview"`
	ReviewReason   string              `firestore:"reviewReason"`
	DisplayDate    string              `firestore:"displayDate"`
	CreatedAt      time.Time           `firestore:"createdAt"`
	UpdatedAt      time.Time           `firestore:"updatedAt"`
}

type customerDocument struct {
	Name       string `firestore:"name"`
	Email      string `firestore:"email"`
	EmailLower string `firestore:"emailLower"`
	Phone      string `firestore:"phone"`
	Address    string `firestore:"address"`
	City       string `firestore:"city"`
}

type orderItemDocument struct {
	ProductRef           string            `firestore:"productRef"`
	Name                 string            `firestore:"name"`
	UnitPrice            int64             `firestore:"unitPrice"`
	Quantity             int               `firestore:"quantity"`
	LineTotal            int64             `firestore:"lineTotal"`
	SelectedOptions      map[string]string `firestore:"selectedOptions,omitempty"`
	OptionLabels         map[string]string `firestore:"optionLabels,omitempty"`
	PersonalizationImage string            `firestore:"personalizationImage,omitempty"`
	PersonalizationNote  string            `firestore:"personalizationNote,omitempty"`
}

type statusChangeDocument struct {
	From       string    `firestore:"from"`
	To         string    `firestore:"to"`
	ActorID    string    `firestore:"actorId"`
	Reason     string    `firestore:"reason,omitempty"`
	OccurredAt time.Time `firestore:"occurredAt"`
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductRef:           item.ProductRef,
			Name:                 item.Name,
			UnitPrice:            item.UnitPrice,
			Quantity:             item.Quantity,
			LineTotal:            item.LineTotal,
			SelectedOptions:      encodeOptionMap(item.SelectedOptions),
			OptionLabels:         encodeOptionMap(item.OptionLabels),
			PersonalizationImage: item.PersonalizationImage,
			PersonalizationNote:  item.PersonalizationNote,
		})
	}
	return orderDocument{
		OrderNumber: order.OrderNumber,
		Customer: customerDocument{
			Name:       order.Customer.Name,
			Email:      order.Customer.Email,
			EmailLower: strings.ToLower(strings.TrimSpace(order.Customer.Email)),
			Phone:      order.Customer.Phone,
			Address:    order.Customer.Address,
			City:       order.Customer.City,
		},
		Items:          items,
		Currency:       order.Currency,
		Subtotal:       order.Subtotal,
		ShippingCost:   order.ShippingCost,
		CouponCode:     order.CouponCode,
		CouponDiscount: order.CouponDiscount,
		Total:          order.Total,
		PaymentMethod:  string(order.PaymentMethod),
		Status:         string(order.Status),
		Note:           order.Note,
		AdminNote:      order.AdminNote,
		TrackingNumber: order.TrackingNumber,
		ManualReview:   order.ManualReview,
		ReviewReason:   order.ReviewReason,
		DisplayDate:    order.DisplayDate,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductRef:           item.ProductRef,
			Name:                 item.Name,
			UnitPrice:            item.UnitPrice,
			Quantity:             item.Quantity,
			LineTotal:            item.LineTotal,
			SelectedOptions:      decodeOptionMap(item.SelectedOptions),
			OptionLabels:         decodeOptionMap(item.OptionLabels),
			PersonalizationImage: item.PersonalizationImage,
			PersonalizationNote:  item.PersonalizationNote,
		})
	}
	return domain.Order{
		ID:          id,
		OrderNumber: doc.OrderNumber,
		Customer: domain.Customer{
			Name:    doc.Customer.Name,
			Email:   doc.Customer.Email,
			Phone:   doc.Customer.Phone,
			Address: doc.Customer.Address,
			City:    doc.Customer.City,
		},
		Items:          items,
		Currency:       doc.Currency,
		Subtotal:       doc.Subtotal,
		ShippingCost:   doc.ShippingCost,
		CouponCode:     doc.CouponCode,
		CouponDiscount: doc.CouponDiscount,
		Total:          doc.Total,
		PaymentMethod:  domain.PaymentMethod(doc.PaymentMethod),
		Status:         domain.OrderStatus(doc.Status),
		Note:           doc.Note,
		AdminNote:      doc.AdminNote,
		TrackingNumber: doc.TrackingNumber,
		ManualReview:   doc.ManualReview,
		ReviewReason:   doc.ReviewReason,
		DisplayDate:    doc.DisplayDate,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

func encodeOptionMap(values map[domain.OptionKey]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		out[string(key)] = value
	}
	return out
}

func decodeOptionMap(values map[string]string) map[domain.OptionKey]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[domain.OptionKey]string, len(values))
	for key, value := range values {
		out[domain.OptionKey(key)] = value
	}
	return out
}

var (
	_ repositories.OrderRepository              = (*OrderRepository)(nil)
	_ repositories.OrderStatusHistoryRepository = (*StatusHistoryRepository)(nil)
)
