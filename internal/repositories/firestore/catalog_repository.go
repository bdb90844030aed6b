package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/glassworks/storefront/internal/domain"
	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/repositories"
)

const productsCollection = "products"

// CatalogRepository reads product documents maintained by the catalog back office.
type CatalogRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewCatalogRepository constructs a read-only product repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection)}, nil
}

func (r *CatalogRepository) Product(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	product := domain.Product{
		ID:        doc.ID,
		Name:      doc.Data.Name,
		BasePrice: doc.Data.BasePrice,
		Active:    doc.Data.Active,
	}
	for _, opt := range doc.Data.Options {
		option := domain.ProductOption{
			Key:      domain.NormalizeOptionKey(opt.Key),
			Label:    opt.Label,
			Required: opt.Required,
		}
		for _, choice := range opt.Choices {
			option.Choices = append(option.Choices, domain.OptionChoice{
				ID:         choice.ID,
				Label:      choice.Label,
				PriceDelta: choice.PriceDelta,
			})
		}
		product.Options = append(product.Options, option)
	}
	return product, nil
}

type productDocument struct {
	Name      string                  `firestore:"name"`
	BasePrice int64                   `firestore:"basePrice"`
	Active    bool                    `firestore:"active"`
	Options   []productOptionDocument `firestore:"options"`
}

type productOptionDocument struct {
	Key      string                 `firestore:"key"`
	Label    string                 `firestore:"label"`
	Required bool                   `firestore:"required"`
	Choices  []optionChoiceDocument `firestore:"choices"`
}

type optionChoiceDocument struct {
	ID         string `firestore:"id"`
	Label      string `firestore:"label"`
	PriceDelta int64  `firestore:"priceDelta"`
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
