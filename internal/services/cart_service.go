package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/platform/textutil"
	"github.com/glassworks/storefront/internal/repositories"
)

const (
	maxPersonalizationNoteLength = 500
	maxObjectRefLength           = 1024
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartLineNotFound indicates the line key does not exist in the cart.
	ErrCartLineNotFound = errors.New("cart: line not found")
)

// CartServiceDeps wires the cart store and catalog used for pricing.
type CartServiceDeps struct {
	Carts        repositories.CartRepository
	Catalog      CatalogReader
	Currency     string
	Clock        func() time.Time
	NewSessionID func() string
	Logger       Logger
}

type cartService struct {
	carts        repositories.CartRepository
	catalog      CatalogReader
	currency     string
	clock        func() time.Time
	newSessionID func() string
	logger       Logger
}

// NewCartService constructs the cart service.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog reader is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newSessionID := deps.NewSessionID
	if newSessionID == nil {
		newSessionID = func() string { return uuid.NewString() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:        deps.Carts,
		catalog:      deps.Catalog,
		currency:     strings.ToUpper(strings.TrimSpace(deps.Currency)),
		clock:        func() time.Time { return clock().UTC() },
		newSessionID: newSessionID,
		logger:       logger,
	}, nil
}

// GetCart returns the stored cart. Unknown and empty sessions yield an empty cart.
func (s *cartService) GetCart(ctx context.Context, sessionID string) (Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Cart{Currency: s.currency}, nil
	}
	return s.load(ctx, sessionID)
}

// AddItem prices the product from the catalog and merges the line into the cart. A session id
// is issued when the command carries none.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if cmd.Quantity < 1 {
		return Cart{}, fmt.Errorf("%w: %w", ErrCartInvalidInput, domain.ErrInvalidQuantity)
	}
	line, err := s.priceLine(ctx, cmd)
	if err != nil {
		return Cart{}, err
	}

	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		sessionID = s.newSessionID()
	}
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	if err := cart.Add(line, cmd.Quantity); err != nil {
		return Cart{}, fmt.Errorf("%w: %w", ErrCartInvalidInput, err)
	}
	if err := s.save(ctx, &cart); err != nil {
		return Cart{}, err
	}
	s.logger(ctx, "cart.item.added", map[string]any{
		"session":  sessionID,
		"product":  line.ProductRef,
		"quantity": cmd.Quantity,
		"subtotal": cart.Subtotal(),
	})
	return cart, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, sessionID, lineKey string, quantity int) (Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *Cart) error {
		return cart.UpdateQuantity(strings.TrimSpace(lineKey), quantity)
	})
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID, lineKey string) (Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *Cart) error {
		return cart.Remove(strings.TrimSpace(lineKey))
	})
}

func (s *cartService) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := s.carts.Delete(ctx, sessionID); err != nil && !repositories.IsNotFound(err) {
		return storeError(err)
	}
	return nil
}

func (s *cartService) SetVisibility(ctx context.Context, sessionID string, visible bool) (Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *Cart) error {
		cart.Visible = visible
		return nil
	})
}

func (s *cartService) mutate(ctx context.Context, sessionID string, fn func(*Cart) error) (Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Cart{}, fmt.Errorf("%w: cart session is required", ErrCartInvalidInput)
	}
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	if err := fn(&cart); err != nil {
		if errors.Is(err, domain.ErrLineNotFound) {
			return Cart{}, fmt.Errorf("%w: %v", ErrCartLineNotFound, err)
		}
		return Cart{}, fmt.Errorf("%w: %w", ErrCartInvalidInput, err)
	}
	if err := s.save(ctx, &cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (s *cartService) load(ctx context.Context, sessionID string) (Cart, error) {
	cart, err := s.carts.Get(ctx, sessionID)
	switch {
	case err == nil:
		return cart, nil
	case repositories.IsNotFound(err):
		return Cart{SessionID: sessionID, Currency: s.currency}, nil
	default:
		return Cart{}, storeError(err)
	}
}

func (s *cartService) save(ctx context.Context, cart *Cart) error {
	now := s.clock()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	if cart.Currency == "" {
		cart.Currency = s.currency
	}
	cart.UpdatedAt = now
	if err := s.carts.Save(ctx, *cart); err != nil {
		return storeError(err)
	}
	return nil
}

// priceLine resolves unit price and option labels from the catalog. Every selected option must
// exist on the product and every required option must be selected.
func (s *cartService) priceLine(ctx context.Context, cmd AddCartItemCommand) (CartLine, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return CartLine{}, fmt.Errorf("%w: product is required", ErrCartInvalidInput)
	}
	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return CartLine{}, fmt.Errorf("%w: unknown product %s", ErrCartInvalidInput, productID)
		}
		return CartLine{}, storeError(err)
	}
	if !product.Active {
		return CartLine{}, fmt.Errorf("%w: product %s is not available", ErrCartInvalidInput, productID)
	}

	line := CartLine{
		ProductRef: product.ID,
		Name:       product.Name,
		UnitPrice:  product.BasePrice,
	}
	for key, choiceID := range textutil.NormalizeStringMap(cmd.Options) {
		optionKey := domain.OptionKey(key)
		option, ok := product.Option(optionKey)
		if !ok {
			return CartLine{}, fmt.Errorf("%w: product %s has no option %q", ErrCartInvalidInput, productID, key)
		}
		choice, ok := option.Choice(choiceID)
		if !ok {
			return CartLine{}, fmt.Errorf("%w: invalid choice %q for option %q", ErrCartInvalidInput, choiceID, key)
		}
		if line.SelectedOptions == nil {
			line.SelectedOptions = map[OptionKey]string{}
			line.OptionLabels = map[OptionKey]string{}
		}
		line.SelectedOptions[optionKey] = choice.ID
		line.OptionLabels[optionKey] = choice.Label
		line.UnitPrice += choice.PriceDelta
	}
	for _, option := range product.Options {
		if _, selected := line.SelectedOptions[option.Key]; option.Required && !selected {
			return CartLine{}, fmt.Errorf("%w: option %q is required", ErrCartInvalidInput, option.Key)
		}
	}
	if line.UnitPrice < 0 {
		return CartLine{}, fmt.Errorf("%w: negative unit price for product %s", ErrCartInvalidInput, productID)
	}

	image := strings.TrimSpace(cmd.PersonalizationImage)
	if len(image) > maxObjectRefLength {
		return CartLine{}, fmt.Errorf("%w: personalization image reference too long", ErrCartInvalidInput)
	}
	line.PersonalizationImage = image
	line.PersonalizationNote = textutil.PlainText(cmd.PersonalizationNote, maxPersonalizationNoteLength)
	return line, nil
}
