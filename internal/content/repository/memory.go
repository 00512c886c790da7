package repository

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-memory Store used for unit tests and local runs
// without MongoDB. Documents are kept BSON-encoded so readers always get a
// private copy with the same value types the Mongo driver would return.
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[string]map[string]bson.Raw
	listeners map[string]map[*listener]struct{}
}

type listener struct {
	notify chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:      make(map[string]map[string]bson.Raw),
		listeners: make(map[string]map[*listener]struct{}),
	}
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get", collection, err)
	}
	m.mu.RLock()
	raw, ok := m.data[collection][id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", content.ErrNotFound, collection, id)
	}
	return decodeRaw("get", collection, raw)
}

func (m *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("query", collection, err)
	}
	m.mu.RLock()
	raws := make([]bson.Raw, 0, len(m.data[collection]))
	for _, raw := range m.data[collection] {
		raws = append(raws, raw)
	}
	m.mu.RUnlock()

	out := []Document{}
	for _, raw := range raws {
		d, err := decodeRaw("query", collection, raw)
		if err != nil {
			return nil, err
		}
		if matchAll(d, q.Filters) {
			out = append(out, d)
		}
	}
	sortDocuments(out, q.OrderBy)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, collection string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put", collection, err)
	}
	id, ok := doc["_id"].(string)
	if !ok || id == "" {
		return &content.PersistenceError{Kind: content.KindUnknown, Op: "put", Collection: collection, Err: fmt.Errorf("document has no string _id")}
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return &content.PersistenceError{Kind: content.KindUnknown, Op: "put", Collection: collection, Err: err}
	}
	m.mu.Lock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]bson.Raw)
	}
	m.data[collection][id] = raw
	m.mu.Unlock()
	m.changed(collection)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, set Document) error {
	if err := ctx.Err(); err != nil {
		return unavailable("update", collection, err)
	}
	m.mu.Lock()
	raw, ok := m.data[collection][id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", content.ErrNotFound, collection, id)
	}
	d, err := decodeRaw("update", collection, raw)
	if err == nil {
		for k, v := range set {
			d[k] = v
		}
		raw, err = bson.Marshal(d)
		if err != nil {
			err = &content.PersistenceError{Kind: content.KindUnknown, Op: "update", Collection: collection, Err: err}
		}
	}
	if err == nil {
		m.data[collection][id] = raw
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.changed(collection)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", collection, err)
	}
	m.mu.Lock()
	if _, ok := m.data[collection][id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", content.ErrNotFound, collection, id)
	}
	delete(m.data[collection], id)
	m.mu.Unlock()
	m.changed(collection)
	return nil
}

// OnSnapshot runs fn on its own goroutine. Bursts of writes are coalesced
// into a single snapshot. The CancelFunc must not be called from inside fn.
func (m *MemoryStore) OnSnapshot(ctx context.Context, collection string, q Query, fn SnapshotFunc) (CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("snapshot", collection, err)
	}
	l := &listener{notify: make(chan struct{}, 1)}
	l.notify <- struct{}{}

	m.mu.Lock()
	if m.listeners[collection] == nil {
		m.listeners[collection] = make(map[*listener]struct{})
	}
	m.listeners[collection][l] = struct{}{}
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer m.unregister(collection, l)
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.notify:
			}
			docs, err := m.Query(ctx, collection, q)
			if ctx.Err() != nil {
				return
			}
			fn(docs, err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (m *MemoryStore) unregister(collection string, l *listener) {
	m.mu.Lock()
	delete(m.listeners[collection], l)
	m.mu.Unlock()
}

func (m *MemoryStore) changed(collection string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for l := range m.listeners[collection] {
		select {
		case l.notify <- struct{}{}:
		default:
		}
	}
}

// listenerCount is used by tests to check subscriptions are released.
func (m *MemoryStore) listenerCount(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[collection])
}

func unavailable(op, collection string, err error) error {
	return &content.PersistenceError{Kind: content.KindUnavailable, Op: op, Collection: collection, Err: err}
}

func decodeRaw(op, collection string, raw bson.Raw) (Document, error) {
	var d Document
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, &content.PersistenceError{Kind: content.KindUnknown, Op: op, Collection: collection, Err: err}
	}
	return d, nil
}

func matchAll(d Document, filters []Filter) bool {
	for _, f := range filters {
		if !match(d, f) {
			return false
		}
	}
	return true
}

func match(d Document, f Filter) bool {
	v, ok := d[f.Field]
	switch f.Op {
	case OpEq:
		return ok && matchesValue(v, f.Value)
	case OpIn:
		if !ok {
			return false
		}
		for _, want := range elements(f.Value) {
			if matchesValue(v, want) {
				return true
			}
		}
		return false
	case OpArrayContains:
		if !ok {
			return false
		}
		for _, have := range elements(v) {
			if equal(have, f.Value) {
				return true
			}
		}
		return false
	}
	return false
}

// matchesValue follows MongoDB equality: an array field matches when any
// element equals want.
func matchesValue(v, want interface{}) bool {
	if items := elements(v); items != nil {
		for _, have := range items {
			if equal(have, want) {
				return true
			}
		}
		return false
	}
	return equal(v, want)
}

func elements(v interface{}) []interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// scalar reduces a value to a string, float64, bool or nil so values written
// through different Go types compare equal. ok is false for anything else.
func scalar(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case string, bool, float64:
		return x, true
	case time.Time:
		return float64(x.UnixMilli()), true
	case *time.Time:
		if x == nil {
			return nil, true
		}
		return float64(x.UnixMilli()), true
	case primitive.DateTime:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return nil, false
}

func equal(a, b interface{}) bool {
	sa, ok := scalar(a)
	if !ok {
		return false
	}
	sb, ok := scalar(b)
	if !ok {
		return false
	}
	return sa == sb
}

// compare orders nil first, then numbers, then strings.
func compare(a, b interface{}) int {
	sa, _ := scalar(a)
	sb, _ := scalar(b)
	ra, rb := rank(sa), rank(sb)
	if ra != rb {
		return ra - rb
	}
	switch x := sa.(type) {
	case float64:
		y := sb.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case string:
		y := sb.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}

func sortDocuments(docs []Document, order []Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range order {
			c := compare(docs[i][o.Field], docs[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return compare(docs[i]["_id"], docs[j]["_id"]) < 0
	})
}
