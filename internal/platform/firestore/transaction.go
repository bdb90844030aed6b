package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	txMaxAttempts = 5
	txTimeout     = 15 * time.Second
)

// TxFunc is executed within a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// RunTransaction runs fn in a Firestore transaction, bounded by txTimeout unless ctx already
// expires sooner. Contention is retried by the client up to txMaxAttempts.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > txTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, txTimeout)
		defer cancel()
	}
	return WrapError("transaction", client.RunTransaction(ctx, fn, firestore.MaxAttempts(txMaxAttempts)))
}

// RunInScope runs fn with a TxScope on its context; repositories that find the scope read and
// write through it. A scope already on ctx is joined rather than nested.
func (p *Provider) RunInScope(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ScopeFromContext(ctx); ok {
		return fn(ctx)
	}
	return p.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		scope := &TxScope{tx: tx}
		if err := fn(context.WithValue(ctx, scopeKey{}, scope)); err != nil {
			return err
		}
		for _, write := range scope.writes {
			if err := write(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

type scopeKey struct{}

// TxScope is one unit of work shared by several repositories. Firestore rejects reads issued
// after a write, so writes queue up and are applied in call order when fn returns. Reads never
// see the scope's own pending writes.
type TxScope struct {
	tx     *firestore.Transaction
	writes []func(*firestore.Transaction) error
}

// ScopeFromContext returns the active transaction scope, if any.
func ScopeFromContext(ctx context.Context) (*TxScope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*TxScope)
	return scope, ok && scope != nil
}

func (s *TxScope) Get(ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	return s.tx.Get(ref)
}

func (s *TxScope) Documents(q firestore.Queryer) *firestore.DocumentIterator {
	return s.tx.Documents(q)
}

func (s *TxScope) Create(ref *firestore.DocumentRef, data any) {
	s.queue(func(tx *firestore.Transaction) error { return tx.Create(ref, data) })
}

func (s *TxScope) Set(ref *firestore.DocumentRef, data any, opts ...firestore.SetOption) {
	s.queue(func(tx *firestore.Transaction) error { return tx.Set(ref, data, opts...) })
}

func (s *TxScope) Update(ref *firestore.DocumentRef, updates []firestore.Update, preconds ...firestore.Precondition) {
	s.queue(func(tx *firestore.Transaction) error { return tx.Update(ref, updates, preconds...) })
}

func (s *TxScope) Delete(ref *firestore.DocumentRef, preconds ...firestore.Precondition) {
	s.queue(func(tx *firestore.Transaction) error { return tx.Delete(ref, preconds...) })
}

func (s *TxScope) queue(write func(*firestore.Transaction) error) {
	s.writes = append(s.writes, write)
}
