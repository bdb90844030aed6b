package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/glassworks/storefront/internal/domain"
	"github.com/glassworks/storefront/internal/repositories"
)

// Order number strategies.
const (
	OrderNumberStrategyTimestamp = "timestamp"
	OrderNumberStrategySequence  = "sequence"

	defaultOrderNumberPrefix = "GW"
	sequenceMaxValue         = int64(999999)
)

var (
	// ErrOrderNumberConflict indicates the number was claimed concurrently twice in a row. Retryable.
	ErrOrderNumberConflict = errors.New("order number: conflict")
	// ErrOrderNumberUnknown indicates a reserved number that was never issued.
	ErrOrderNumberUnknown = errors.New("order number: unknown reservation")
	// ErrOrderNumberExhausted indicates the yearly sequence ran out of numbers.
	ErrOrderNumberExhausted = errors.New("order number: sequence exhausted")
)

// OrderNumberAllocatorDeps configures number generation.
type OrderNumberAllocatorDeps struct {
	Numbers  repositories.OrderNumberRepository
	Counters repositories.CounterRepository
	Strategy string
	Prefix   string
	Clock    func() time.Time
	Logger   Logger
}

type orderNumberAllocator struct {
	numbers  repositories.OrderNumberRepository
	counters repositories.CounterRepository
	strategy string
	prefix   string
	clock    func() time.Time
	logger   Logger

	configMu   sync.Mutex
	configured map[string]bool

	// lastMillis is the newest timestamp token handed out by this process.
	lastMillis atomic.Int64
}

// NewOrderNumberAllocator validates the strategy and returns an allocator.
func NewOrderNumberAllocator(deps OrderNumberAllocatorDeps) (OrderNumberAllocator, error) {
	if deps.Numbers == nil {
		return nil, errors.New("order number allocator: number repository is required")
	}
	strategy := strings.ToLower(strings.TrimSpace(deps.Strategy))
	if strategy == "" {
		strategy = OrderNumberStrategyTimestamp
	}
	switch strategy {
	case OrderNumberStrategyTimestamp:
	case OrderNumberStrategySequence:
		if deps.Counters == nil {
			return nil, errors.New("order number allocator: counter repository is required for the sequence strategy")
		}
	default:
		return nil, fmt.Errorf("order number allocator: unknown strategy %q", deps.Strategy)
	}
	prefix := strings.ToUpper(strings.TrimSpace(deps.Prefix))
	if prefix == "" {
		prefix = defaultOrderNumberPrefix
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderNumberAllocator{
		numbers:    deps.Numbers,
		counters:   deps.Counters,
		strategy:   strategy,
		prefix:     prefix,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
		configured: make(map[string]bool),
	}, nil
}

func (a *orderNumberAllocator) Generate(ctx context.Context) (string, error) {
	if a.strategy == OrderNumberStrategySequence {
		return a.nextSequence(ctx, a.clock())
	}
	return a.timestampNumber(0), nil
}

// Regenerate for the timestamp strategy moves past the previous token, so a number claimed by
// another instance in the same millisecond is not tried again.
func (a *orderNumberAllocator) Regenerate(ctx context.Context, previous string) (string, error) {
	if a.strategy == OrderNumberStrategySequence {
		return a.nextSequence(ctx, a.clock())
	}
	token := strings.TrimPrefix(strings.TrimSpace(previous), a.prefix+"-")
	ms, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return a.Generate(ctx)
	}
	return a.timestampNumber(ms + 1), nil
}

// timestampNumber returns the clock reading in milliseconds, raised to at least floor and past
// every token this process already issued. Tokens from one process never repeat.
func (a *orderNumberAllocator) timestampNumber(floor int64) string {
	for {
		last := a.lastMillis.Load()
		next := max(a.clock().UnixMilli(), last+1, floor)
		if a.lastMillis.CompareAndSwap(last, next) {
			return a.prefix + "-" + strconv.FormatInt(next, 10)
		}
	}
}

// Reserve registers a number for the cart session. Only that session can check out with it.
func (a *orderNumberAllocator) Reserve(ctx context.Context, sessionID string) (OrderNumberEntry, error) {
	number, err := a.Generate(ctx)
	if err != nil {
		return OrderNumberEntry{}, err
	}
	for attempt := 0; ; attempt++ {
		entry := OrderNumberEntry{
			Number:     number,
			State:      domain.OrderNumberReserved,
			SessionID:  strings.TrimSpace(sessionID),
			ReservedAt: a.clock(),
		}
		err := a.numbers.Create(ctx, entry)
		if err == nil {
			a.logger(ctx, "order_number.reserved", map[string]any{"number": number})
			return entry, nil
		}
		if !repositories.IsConflict(err) {
			return OrderNumberEntry{}, storeError(err)
		}
		if attempt > 0 {
			return OrderNumberEntry{}, fmt.Errorf("%w: %s", ErrOrderNumberConflict, number)
		}
		if number, err = a.Regenerate(ctx, number); err != nil {
			return OrderNumberEntry{}, err
		}
	}
}

// PurgeExpiredReservations removes reservations older than maxAge that never reached checkout.
func (a *orderNumberAllocator) PurgeExpiredReservations(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	if maxAge <= 0 {
		return 0, errors.New("order number allocator: reservation max age must be positive")
	}
	deleted, err := a.numbers.DeleteExpiredReservations(ctx, a.clock().Add(-maxAge), limit)
	if err != nil {
		return 0, storeError(err)
	}
	if deleted > 0 {
		a.logger(ctx, "order_number.reservations.purged", map[string]any{"count": deleted})
	}
	return deleted, nil
}

func (a *orderNumberAllocator) nextSequence(ctx context.Context, now time.Time) (string, error) {
	year := fmt.Sprintf("%04d", now.Year())
	counterID := "orders-" + year
	if err := a.ensureConfigured(ctx, counterID); err != nil {
		return "", storeError(err)
	}
	seq, err := a.counters.Next(ctx, counterID, 1)
	if err != nil {
		if errors.Is(err, repositories.ErrCounterExhausted) {
			return "", fmt.Errorf("%w: %s", ErrOrderNumberExhausted, counterID)
		}
		return "", storeError(err)
	}
	return fmt.Sprintf("%s-%s-%06d", a.prefix, year, seq), nil
}

func (a *orderNumberAllocator) ensureConfigured(ctx context.Context, counterID string) error {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	if a.configured[counterID] {
		return nil
	}
	maxValue := sequenceMaxValue
	if err := a.counters.Configure(ctx, counterID, repositories.CounterConfig{Step: 1, MaxValue: &maxValue}); err != nil {
		return err
	}
	a.configured[counterID] = true
	return nil
}
