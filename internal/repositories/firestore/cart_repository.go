package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists one cart document per session id.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection)}, nil
}

func (r *CartRepository) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: session id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	cart := domain.Cart{
		SessionID: doc.ID,
		Currency:  doc.Data.Currency,
		Visible:   doc.Data.Visible,
		CreatedAt: doc.Data.CreatedAt,
		UpdatedAt: doc.Data.UpdatedAt,
	}
	for _, line := range doc.Data.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			Key:                  line.Key,
			ProductRef:           line.ProductRef,
			Name:                 line.Name,
			UnitPrice:            line.UnitPrice,
			Quantity:             line.Quantity,
			SelectedOptions:      decodeOptionMap(line.SelectedOptions),
			OptionLabels:         decodeOptionMap(line.OptionLabels),
			PersonalizationImage: line.PersonalizationImage,
			PersonalizationNote:  line.PersonalizationNote,
		})
	}
	return cart, nil
}

func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	id := strings.TrimSpace(cart.SessionID)
	if id == "" {
		return errors.New("cart repository: session id is required")
	}
	doc := cartDocument{
		Currency:  cart.Currency,
		Visible:   cart.Visible,
		ItemCount: cart.ItemCount(),
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	for _, line := range cart.Lines {
		doc.Lines = append(doc.Lines, cartLineDocument{
			Key:                  line.Key,
			ProductRef:           line.ProductRef,
			Name:                 line.Name,
			UnitPrice:            line.UnitPrice,
			Quantity:             line.Quantity,
			SelectedOptions:      encodeOptionMap(line.SelectedOptions),
			OptionLabels:         encodeOptionMap(line.OptionLabels),
			PersonalizationImage: line.PersonalizationImage,
			PersonalizationNote:  line.PersonalizationNote,
		})
	}
	return r.base.Set(ctx, id, doc)
}

func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(sessionID))
}

type cartDocument struct {
	Currency  string             `firestore:"currency"`
	Lines     []cartLineDocument `firestore:"lines"`
	Visible   bool               `firestore:"visible"`
	ItemCount int                `firestore:"itemCount"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	Key                  string            `firestore:"key"`
	ProductRef           string            `firestore:"productRef"`
	Name                 string            `firestore:"name"`
	UnitPrice            int64             `firestore:"unitPrice"`
	Quantity             int               `firestore:"quantity"`
	SelectedOptions      map[string]string `firestore:"selectedOptions,omitempty"`
	OptionLabels         map[string]string `firestore:"optionLabels,omitempty"`
	PersonalizationImage string            `firestore:"personalizationImage,omitempty"`
	PersonalizationNote  string            `firestore:"personalizationNote,omitempty"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
