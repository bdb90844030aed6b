package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document is a decoded snapshot plus its server timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryBuilder adds filters and ordering to a collection query.
type QueryBuilder func(query firestore.Query) firestore.Query

// BaseRepository wraps typed collection access. Reads and writes join the transaction scope
// on ctx when one is active; writes inside a scope are applied at commit.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	parent     func(ctx context.Context, client *firestore.Client) (*firestore.CollectionRef, error)
}

// NewBaseRepository binds a repository to a top level collection such as "orders".
func NewBaseRepository[T any](provider *Provider, collection string) *BaseRepository[T] {
	collection = strings.TrimSpace(collection)
	return &BaseRepository[T]{
		provider:   provider,
		collection: collection,
		parent: func(_ context.Context, client *firestore.Client) (*firestore.CollectionRef, error) {
			return client.Collection(collection), nil
		},
	}
}

// mutate resolves id and applies the write either to the active scope or directly.
func (r *BaseRepository[T]) mutate(ctx context.Context, id, action string, scoped func(*TxScope, *firestore.DocumentRef), direct func(*firestore.DocumentRef) error) error {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if scope, ok := ScopeFromContext(ctx); ok {
		scoped(scope, doc)
		return nil
	}
	return WrapError(r.op(action), direct(doc))
}

// Create fails with a conflict when the document already exists.
func (r *BaseRepository[T]) Create(ctx context.Context, id string, value T) error {
	return r.mutate(ctx, id, "create",
		func(s *TxScope, doc *firestore.DocumentRef) { s.Create(doc, value) },
		func(doc *firestore.DocumentRef) error { _, err := doc.Create(ctx, value); return err })
}

func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T, opts ...firestore.SetOption) error {
	return r.mutate(ctx, id, "set",
		func(s *TxScope, doc *firestore.DocumentRef) { s.Set(doc, value, opts...) },
		func(doc *firestore.DocumentRef) error { _, err := doc.Set(ctx, value, opts...); return err })
}

// Update applies field updates; the document must exist.
func (r *BaseRepository[T]) Update(ctx context.Context, id string, updates []firestore.Update, preconds ...firestore.Precondition) error {
	return r.mutate(ctx, id, "update",
		func(s *TxScope, doc *firestore.DocumentRef) { s.Update(doc, updates, preconds...) },
		func(doc *firestore.DocumentRef) error { _, err := doc.Update(ctx, updates, preconds...); return err })
}

// Delete succeeds for a missing document.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string) error {
	return r.mutate(ctx, id, "delete",
		func(s *TxScope, doc *firestore.DocumentRef) { s.Delete(doc) },
		func(doc *firestore.DocumentRef) error { _, err := doc.Delete(ctx); return err })
}

// Get fetches the document by ID and decodes it.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	var snapshot *firestore.DocumentSnapshot
	if scope, ok := ScopeFromContext(ctx); ok {
		snapshot, err = scope.Get(doc)
	} else {
		snapshot, err = doc.Get(ctx)
	}
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return decodeDocument[T](snapshot)
}

// Query runs build against the collection and decodes every match.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}

	var iter *firestore.DocumentIterator
	if scope, ok := ScopeFromContext(ctx); ok {
		iter = scope.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var docs []Document[T]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		decoded, err := decodeDocument[T](snapshot)
		if err != nil {
			return nil, fmt.Errorf("firestore: decode document %s: %w", snapshot.Ref.ID, err)
		}
		docs = append(docs, decoded)
	}
	return docs, nil
}

// Sub returns a repository over a subcollection of the document id in this collection.
func Sub[T any, P any](parent *BaseRepository[P], id, collection string) *BaseRepository[T] {
	return &BaseRepository[T]{
		provider:   parent.provider,
		collection: parent.collection + "/" + id + "/" + collection,
		parent: func(ctx context.Context, _ *firestore.Client) (*firestore.CollectionRef, error) {
			doc, err := parent.DocumentRef(ctx, id)
			if err != nil {
				return nil, err
			}
			return doc.Collection(collection), nil
		},
	}
}

func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func decodeDocument[T any](snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	var entity T
	if err := snapshot.DataTo(&entity); err != nil {
		return Document[T]{}, err
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       entity,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, WrapError(r.op("collection"), errors.New("firestore: provider is nil"))
	}
	if r.collection == "" {
		return nil, WrapError(r.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return r.parent(ctx, client)
}

func (r *BaseRepository[T]) op(action string) string {
	name := "firestore"
	if r != nil && r.collection != "" {
		name = r.collection
	}
	return name + "." + strings.ToLower(action)
}
