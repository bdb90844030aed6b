package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/glassworks/storefront/internal/domain"
	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/repositories"
)

const (
	orderNumbersCollection = "orderNumbers"

	// Stays under the 500 writes a transaction accepts.
	defaultReservationSweepLimit = 200
)

// OrderNumberRepository keeps one document per issued order number, keyed by the number itself.
type OrderNumberRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderNumberDocument]
}

// NewOrderNumberRepository constructs the Firestore order number registry.
func NewOrderNumberRepository(provider *pfirestore.Provider) (*OrderNumberRepository, error) {
	if provider == nil {
		return nil, errors.New("order number repository requires firestore provider")
	}
	return &OrderNumberRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderNumberDocument](provider, orderNumbersCollection),
	}, nil
}

// Create registers the number. Inside a transaction scope the existence check happens at commit
// and surfaces as a conflict from RunInTx.
func (r *OrderNumberRepository) Create(ctx context.Context, entry domain.OrderNumberEntry) error {
	number := strings.TrimSpace(entry.Number)
	if number == "" {
		return errors.New("order number repository: number is required")
	}
	return r.base.Create(ctx, number, orderNumberDocument{
		State:       string(entry.State),
		SessionID:   entry.SessionID,
		OrderID:     entry.OrderID,
		ReservedAt:  entry.ReservedAt.UTC(),
		CommittedAt: entry.CommittedAt,
	})
}

func (r *OrderNumberRepository) Get(ctx context.Context, number string) (domain.OrderNumberEntry, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(number))
	if err != nil {
		return domain.OrderNumberEntry{}, err
	}
	return domain.OrderNumberEntry{
		Number:      doc.ID,
		State:       domain.OrderNumberState(doc.Data.State),
		SessionID:   doc.Data.SessionID,
		OrderID:     doc.Data.OrderID,
		ReservedAt:  doc.Data.ReservedAt,
		CommittedAt: doc.Data.CommittedAt,
	}, nil
}

// Commit binds a reserved entry to the order; the update precondition requires the entry to exist.
func (r *OrderNumberRepository) Commit(ctx context.Context, number, orderID string, committedAt time.Time) error {
	return r.base.Update(ctx, strings.TrimSpace(number), []firestore.Update{
		{Path: "state", Value: string(domain.OrderNumberCommitted)},
		{Path: "orderId", Value: orderID},
		{Path: "committedAt", Value: committedAt.UTC()},
	})
}

// DeleteExpiredReservations queries and deletes in one transaction, so an entry committed in the
// meantime aborts the attempt instead of being removed. Needs the (state, reservedAt) index.
func (r *OrderNumberRepository) DeleteExpiredReservations(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultReservationSweepLimit
	}
	var deleted int
	err := r.provider.RunInScope(ctx, func(ctx context.Context) error {
		deleted = 0
		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("state", "==", string(domain.OrderNumberReserved)).
				Where("reservedAt", "<", before.UTC()).
				Limit(limit)
		})
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := r.base.Delete(ctx, doc.ID); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, pfirestore.WrapError("order_numbers.delete_expired", err)
	}
	return deleted, nil
}

type orderNumberDocument struct {
	State       string     `firestore:"state"`
	SessionID   string     `firestore:"sessionId,omitempty"`
	OrderID     string     `firestore:"orderId,omitempty"`
	ReservedAt  time.Time  `firestore:"reservedAt"`
	CommittedAt *time.Time `firestore:"committedAt,omitempty"`
}

var _ repositories.OrderNumberRepository = (*OrderNumberRepository)(nil)
