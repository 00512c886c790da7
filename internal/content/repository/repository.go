// Package repository persists content objects in a document store.
//
// Two collections back the content model: the canonical collection written
// by the current code, and the legacy collection of pre-migration
// submissions, which is adapted into the canonical shape on read. Callers
// always speak canonical field names; the adapter for each collection
// translates queries and patches.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection selects one of the logical collections.
type Collection string

const (
	Canonical Collection = "canonical"
	Legacy    Collection = "legacy"
)

const (
	DefaultCanonicalCollection = "content"
	DefaultLegacyCollection    = "content_submissions"
)

// Canonical field names usable in queries and orderings.
const (
	FieldID          = "_id"
	FieldStatus      = "status"
	FieldTags        = "tags"
	FieldAuthorID    = "authorId"
	FieldAuthorName  = "authorName"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
	FieldPublishedAt = "publishedAt"
)

type adapter interface {
	encode(o *content.Object) (Document, error)
	decode(d Document) (*content.Object, error)
	query(q Query) Query
	patch(set Document) Document
}

// Patch lists the mutable fields of an Object. Nil fields are left as they
// are; a non-nil empty Tags clears the tags.
type Patch struct {
	Status      *content.Status
	Tags        []string
	PublishedAt *time.Time
}

// Repository reads and writes content.Objects through a Store.
type Repository struct {
	store    Store
	names    map[Collection]string
	adapters map[Collection]adapter
	now      func() time.Time
	newID    func() string
}

// Option configures a Repository.
type Option func(*Repository)

// WithCollectionNames overrides the physical collection names.
func WithCollectionNames(canonical, legacy string) Option {
	return func(r *Repository) {
		if canonical != "" {
			r.names[Canonical] = canonical
		}
		if legacy != "" {
			r.names[Legacy] = legacy
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) { r.newID = fn }
}

func New(store Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		names: map[Collection]string{
			Canonical: DefaultCanonicalCollection,
			Legacy:    DefaultLegacyCollection,
		},
		adapters: map[Collection]adapter{
			Canonical: canonicalAdapter{},
			Legacy:    legacyAdapter{},
		},
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name returns the physical collection name behind c.
func (r *Repository) Name(c Collection) string {
	return r.names[c]
}

func (r *Repository) collection(c Collection) (string, adapter, error) {
	a, ok := r.adapters[c]
	if !ok {
		return "", nil, fmt.Errorf("unknown collection %q", c)
	}
	return r.names[c], a, nil
}

func (r *Repository) timestamp() time.Time {
	// stores keep millisecond precision
	return r.now().UTC().Truncate(time.Millisecond)
}

// Create assigns an id and timestamps to o and writes it to the canonical
// collection in a single write. An empty status becomes draft.
func (r *Repository) Create(ctx context.Context, o *content.Object) (string, error) {
	now := r.timestamp()
	o.ID = r.newID()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = content.StatusDraft
	}
	if o.Status == content.StatusPublished && o.PublishedAt == nil {
		p := now
		o.PublishedAt = &p
	}
	if o.Tags == nil {
		o.Tags = []string{}
	}
	if err := r.Put(ctx, Canonical, o); err != nil {
		return "", err
	}
	return o.ID, nil
}

// Put writes o unchanged into collection c. It is meant for imports and
// fixtures; regular writes go through Create and Update.
func (r *Repository) Put(ctx context.Context, c Collection, o *content.Object) error {
	name, a, err := r.collection(c)
	if err != nil {
		return err
	}
	if o.ID == "" {
		return fmt.Errorf("put into %s: object has no id", name)
	}
	doc, err := a.encode(o)
	if err != nil {
		return &content.PersistenceError{Kind: content.KindUnknown, Op: "encode", Collection: name, Err: err}
	}
	return persist("put", name, r.store.Put(ctx, name, doc))
}

// Get returns the object with id, or nil and no error when it does not exist.
func (r *Repository) Get(ctx context.Context, c Collection, id string) (*content.Object, error) {
	name, a, err := r.collection(c)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.Get(ctx, name, id)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, nil
		}
		return nil, persist("get", name, err)
	}
	o, err := a.decode(doc)
	if err != nil {
		return nil, &content.PersistenceError{Kind: content.KindUnknown, Op: "decode", Collection: name, Err: err}
	}
	return o, nil
}

// Query runs q, written in canonical field names, against collection c.
func (r *Repository) Query(ctx context.Context, c Collection, q Query) ([]*content.Object, error) {
	name, a, err := r.collection(c)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, name, a.query(q))
	if err != nil {
		return nil, persist("query", name, err)
	}
	return decodeAll(a, name, docs)
}

// Update applies p to the object with id and bumps its updatedAt.
func (r *Repository) Update(ctx context.Context, c Collection, id string, p Patch) error {
	name, a, err := r.collection(c)
	if err != nil {
		return err
	}
	set := Document{FieldUpdatedAt: r.timestamp()}
	if p.Status != nil {
		set[FieldStatus] = string(*p.Status)
	}
	if p.Tags != nil {
		set[FieldTags] = append([]string{}, p.Tags...)
	}
	if p.PublishedAt != nil {
		set[FieldPublishedAt] = p.PublishedAt.UTC().Truncate(time.Millisecond)
	}
	return persist("update", name, r.store.Update(ctx, name, id, a.patch(set)))
}

// Subscribe delivers the result of q now and after every change to c. The
// returned CancelFunc must be called to release the listener; cancelling ctx
// releases it too.
func (r *Repository) Subscribe(ctx context.Context, c Collection, q Query, fn func([]*content.Object, error)) (CancelFunc, error) {
	name, a, err := r.collection(c)
	if err != nil {
		return nil, err
	}
	cancel, err := r.store.OnSnapshot(ctx, name, a.query(q), func(docs []Document, err error) {
		if err != nil {
			fn(nil, persist("snapshot", name, err))
			return
		}
		fn(decodeAll(a, name, docs))
	})
	if err != nil {
		return nil, persist("snapshot", name, err)
	}
	return cancel, nil
}

// HardDelete physically removes a document. Normal deletion is the deleted
// status; this is reserved for administrative cleanup.
func (r *Repository) HardDelete(ctx context.Context, c Collection, id string) error {
	name, _, err := r.collection(c)
	if err != nil {
		return err
	}
	return persist("delete", name, r.store.Delete(ctx, name, id))
}

// IndexSpecs lists the compound indexes the service's ordered queries use.
func (r *Repository) IndexSpecs() []IndexSpec {
	canonical := []Query{
		{OrderBy: []Order{{Field: FieldCreatedAt, Desc: true}}},
		{Filters: []Filter{Eq(FieldStatus, "")}, OrderBy: []Order{{Field: FieldCreatedAt, Desc: true}}},
		{Filters: []Filter{Eq(FieldTags, "")}, OrderBy: []Order{{Field: FieldCreatedAt, Desc: true}}},
		{Filters: []Filter{Eq(FieldAuthorID, "")}, OrderBy: []Order{{Field: FieldCreatedAt, Desc: true}}},
		{Filters: []Filter{Eq(FieldStatus, ""), Eq(FieldTags, "")}, OrderBy: []Order{{Field: FieldCreatedAt, Desc: true}}},
	}
	var specs []IndexSpec
	for _, q := range canonical {
		specs = append(specs, IndexSpec{Collection: r.names[Canonical], Keys: IndexKeys(q)})
	}
	legacy := legacyAdapter{}.query(Query{
		Filters: []Filter{Eq(FieldStatus, "")},
		OrderBy: []Order{{Field: FieldCreatedAt, Desc: true}},
	})
	specs = append(specs, IndexSpec{Collection: r.names[Legacy], Keys: IndexKeys(legacy)})
	return specs
}

func decodeAll(a adapter, name string, docs []Document) ([]*content.Object, error) {
	out := make([]*content.Object, 0, len(docs))
	for _, d := range docs {
		o, err := a.decode(d)
		if err != nil {
			return nil, &content.PersistenceError{Kind: content.KindUnknown, Op: "decode", Collection: name, Err: err}
		}
		out = append(out, o)
	}
	return out, nil
}

// persist passes not-found and typed persistence errors through and
// classifies anything else.
func persist(op, name string, err error) error {
	if err == nil || errors.Is(err, content.ErrNotFound) {
		return err
	}
	var pe *content.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &content.PersistenceError{Kind: Classify(err), Op: op, Collection: name, Err: err}
}

type canonicalAdapter struct{}

func (canonicalAdapter) encode(o *content.Object) (Document, error) {
	return toDocument(o)
}

func (canonicalAdapter) decode(d Document) (*content.Object, error) {
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, err
	}
	var o content.Object
	if err := bson.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	if o.Tags == nil {
		o.Tags = []string{}
	}
	return &o, nil
}

func (canonicalAdapter) query(q Query) Query          { return q }
func (canonicalAdapter) patch(set Document) Document { return set }

func toDocument(v interface{}) (Document, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d Document
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}
