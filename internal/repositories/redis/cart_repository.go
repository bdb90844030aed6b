// Package redis stores shopper carts in Redis with a sliding expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories"
)

const (
	defaultKeyPrefix = "storefront:cart"
	defaultTTL       = 30 * 24 * time.Hour
)

// CartRepository persists each cart as one JSON value. Every save refreshes the TTL.
type CartRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCartRepository wraps an existing client. A non-positive ttl uses 30 days.
func NewCartRepository(client *redis.Client, ttl time.Duration) (*CartRepository, error) {
	if client == nil {
		return nil, errors.New("redis cart repository requires client")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CartRepository{client: client, prefix: defaultKeyPrefix, ttl: ttl}, nil
}

func (r *CartRepository) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, strings.TrimSpace(sessionID))
}

func (r *CartRepository) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, repositories.NotFound("redis.carts.get", "cart %s not found", sessionID)
	}
	if err != nil {
		return domain.Cart{}, repositories.Unavailable("redis.carts.get", err)
	}
	var record cartRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.Cart{}, fmt.Errorf("redis.carts.get: decode %s: %w", sessionID, err)
	}
	return record.toDomain(sessionID), nil
}

func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.SessionID) == "" {
		return errors.New("redis cart repository: session id is required")
	}
	payload, err := json.Marshal(newCartRecord(cart))
	if err != nil {
		return fmt.Errorf("redis.carts.save: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(cart.SessionID), payload, r.ttl).Err(); err != nil {
		return repositories.Unavailable("redis.carts.save", err)
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return repositories.Unavailable("redis.carts.delete", err)
	}
	return nil
}

// Ping reports whether Redis answers; used as a readiness check.
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type cartRecord struct {
	Currency  string           `json:"currency"`
	Lines     []cartLineRecord `json:"lines"`
	Visible   bool             `json:"visible"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type cartLineRecord struct {
	Key                  string                      `json:"key"`
	ProductRef           string                      `json:"product_ref"`
	Name                 string                      `json:"name"`
	UnitPrice            int64                       `json:"unit_price"`
	Quantity             int                         `json:"quantity"`
	SelectedOptions      map[domain.OptionKey]string `json:"selected_options,omitempty"`
	OptionLabels         map[domain.OptionKey]string `json:"option_labels,omitempty"`
	PersonalizationImage string                      `json:"personalization_image,omitempty"`
	PersonalizationNote  string                      `json:"personalization_note,omitempty"`
}

func newCartRecord(cart domain.Cart) cartRecord {
	record := cartRecord{
		Currency:  cart.Currency,
		Visible:   cart.Visible,
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	for _, line := range cart.Lines {
		record.Lines = append(record.Lines, cartLineRecord(line))
	}
	return record
}

func (r cartRecord) toDomain(sessionID string) domain.Cart {
	cart := domain.Cart{
		SessionID: sessionID,
		Currency:  r.Currency,
		Visible:   r.Visible,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for _, line := range r.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine(line))
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
