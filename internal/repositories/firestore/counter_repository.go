package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pfirestore "github.com/glassworks/storefront/internal/platform/firestore"
	"github.com/glassworks/storefront/internal/repositories"
)

// counters/{id} holds the yearly order sequences, e.g. counters/orders-2025.
const countersCollection = "counters"

type sequenceDocument struct {
	Value     int64     `firestore:"value"`
	Increment int64     `firestore:"increment"`
	Ceiling   *int64    `firestore:"ceiling,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CounterRepository hands out gap-free sequence values. Every call runs in a transaction
// scope so concurrent checkouts never share a value.
type CounterRepository struct {
	provider  *pfirestore.Provider
	sequences *pfirestore.BaseRepository[sequenceDocument]
	now       func() time.Time
}

func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore counters: provider is required")
	}
	return &CounterRepository{
		provider:  provider,
		sequences: pfirestore.NewBaseRepository[sequenceDocument](provider, countersCollection),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Next adds step (or the stored increment when step is zero) and returns the new value.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if step < 0 {
		return 0, fmt.Errorf("%w: negative step %d", repositories.ErrInvalidCounter, step)
	}
	var value int64
	err := r.update(ctx, counterID, func(seq *sequenceDocument) error {
		inc := step
		if inc == 0 {
			inc = max(seq.Increment, 1)
		}
		if seq.Ceiling != nil && seq.Value+inc > *seq.Ceiling {
			return fmt.Errorf("counter %s reached %d: %w", counterID, *seq.Ceiling, repositories.ErrCounterExhausted)
		}
		seq.Value += inc
		seq.Increment = inc
		value = seq.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Configure changes the increment, ceiling or current value. Zero or nil fields keep what is
// stored.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return r.update(ctx, counterID, func(seq *sequenceDocument) error {
		if cfg.Step > 0 {
			seq.Increment = cfg.Step
		}
		if cfg.MaxValue != nil {
			ceiling := *cfg.MaxValue
			seq.Ceiling = &ceiling
		}
		if cfg.InitialValue != nil {
			seq.Value = *cfg.InitialValue
		}
		return nil
	})
}

// update runs a read-modify-write of one counter document; a missing document starts at zero.
func (r *CounterRepository) update(ctx context.Context, counterID string, apply func(*sequenceDocument) error) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return fmt.Errorf("%w: counter id is required", repositories.ErrInvalidCounter)
	}
	err := r.provider.RunInScope(ctx, func(ctx context.Context) error {
		var seq sequenceDocument
		switch stored, err := r.sequences.Get(ctx, id); {
		case err == nil:
			seq = stored.Data
		case !repositories.IsNotFound(err):
			return err
		}
		if err := apply(&seq); err != nil {
			return err
		}
		seq.UpdatedAt = r.now()
		return r.sequences.Set(ctx, id, seq)
	})
	if errors.Is(err, repositories.ErrCounterExhausted) {
		return err
	}
	return pfirestore.WrapError("counters.update", err)
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)
