package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/glassworks/storefront/internal/domain"
	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/repositories"
)

const (
	settingsCollection = "settings"
	settingsDocumentID = "storefront"
)

// SettingsRepository reads and writes the settings/storefront document.
type SettingsRepository struct {
	base *pfirestore.BaseRepository[settingsDocument]
}

// NewSettingsRepository constructs a Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	return &SettingsRepository{base: pfirestore.NewBaseRepository[settingsDocument](provider, settingsCollection)}, nil
}

// ShippingPolicy returns a not-found error when the document or its shipping section is missing.
func (r *SettingsRepository) ShippingPolicy(ctx context.Context) (domain.ShippingPolicy, error) {
	doc, err := r.base.Get(ctx, settingsDocumentID)
	if err != nil {
		return domain.ShippingPolicy{}, err
	}
	shipping := doc.Data.Shipping
	if shipping == nil {
		return domain.ShippingPolicy{}, repositories.NotFound("settings.shipping", "shipping policy not configured")
	}
	return domain.ShippingPolicy{
		FlatShippingCost:      shipping.FlatShippingCost,
		FreeShippingThreshold: shipping.FreeShippingThreshold,
		UpdatedAt:             shipping.UpdatedAt,
		UpdatedBy:             shipping.UpdatedBy,
	}, nil
}

func (r *SettingsRepository) SaveShippingPolicy(ctx context.Context, policy domain.ShippingPolicy) error {
	return r.base.Set(ctx, settingsDocumentID, settingsDocument{
		Shipping: &shippingDocument{
			FlatShippingCost:      policy.FlatShippingCost,
			FreeShippingThreshold: policy.FreeShippingThreshold,
			UpdatedAt:             policy.UpdatedAt.UTC(),
			UpdatedBy:             policy.UpdatedBy,
		},
	}, firestore.Merge([]string{"shipping"}))
}

type settingsDocument struct {
	Shipping *shippingDocument `firestore:"shipping,omitempty"`
}

type shippingDocument struct {
	FlatShippingCost      int64     `firestore:"flatShippingCost"`
	FreeShippingThreshold int64     `firestore:"freeShippingThreshold"`
	UpdatedAt             time.Time `firestore:"updatedAt"`
	UpdatedBy             string    `firestore:"updatedBy,omitempty"`
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)
