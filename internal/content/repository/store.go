package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is the raw shape exchanged with a Store.
type Document = bson.M

// Op is a filter comparison.
type Op string

const (
	OpEq            Op = "=="
	OpIn            Op = "in"
	OpArrayContains Op = "array-contains"
)

// Filter restricts a query on a single field.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

func Eq(field string, v interface{}) Filter {
	return Filter{Field: field, Op: OpEq, Value: v}
}

func In(field string, vs ...interface{}) Filter {
	return Filter{Field: field, Op: OpIn, Value: vs}
}

func ArrayContains(field string, v interface{}) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: v}
}

// Order sorts query results by Field.
type Order struct {
	Field string
	Desc  bool
}

// Query is a conjunction of filters with an optional ordering and limit.
// A zero Limit means no limit.
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// SnapshotFunc receives the full result set of a subscribed query, or the
// error that ended the subscription.
type SnapshotFunc func(docs []Document, err error)

// CancelFunc releases a subscription. It is safe to call more than once and
// returns only after the listener has stopped delivering snapshots.
type CancelFunc func()

// Store is the document-store boundary. Get, Update and Delete return an
// error wrapping content.ErrNotFound for a missing id. Every other failure is
// a *content.PersistenceError.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Put writes doc under doc["_id"], replacing any previous version.
	Put(ctx context.Context, collection string, doc Document) error
	// Update sets the given top-level fields on an existing document.
	Update(ctx context.Context, collection, id string, set Document) error
	Delete(ctx context.Context, collection, id string) error
	// OnSnapshot delivers the current result set of q and then a fresh one
	// after every change to collection, until the returned CancelFunc is
	// called or ctx is done.
	OnSnapshot(ctx context.Context, collection string, q Query, fn SnapshotFunc) (CancelFunc, error)
}
