package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB database. Documents use the
// string content id as _id.
type MongoStore struct {
	db             *mongo.Database
	requireIndexes bool
}

// MongoOption configures a MongoStore.
type MongoOption func(*MongoStore)

// WithRequireIndexes makes ordered queries hint the compound index matching
// their filter and sort fields, so a missing index fails loudly with
// KindMissingIndex instead of degrading into a collection scan.
func WithRequireIndexes(on bool) MongoOption {
	return func(s *MongoStore) { s.requireIndexes = on }
}

func NewMongoStore(db *mongo.Database, opts ...MongoOption) *MongoStore {
	s := &MongoStore{db: db}
	for _, o := range opts {
		o(s)
	}
	return s
}

// IndexSpec is a compound index on one collection.
type IndexSpec struct {
	Collection string
	Keys       bson.D
}

// EnsureIndexes creates the given indexes if they do not exist yet.
func (s *MongoStore) EnsureIndexes(ctx context.Context, specs []IndexSpec) error {
	for _, spec := range specs {
		name, err := s.db.Collection(spec.Collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: spec.Keys})
		if err != nil {
			return s.wrap("create_index", spec.Collection, err)
		}
		logger.Debugf("mongo index %s.%s ready", spec.Collection, name)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var d Document
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s/%s", content.ErrNotFound, collection, id)
		}
		return nil, s.wrap("get", collection, err)
	}
	return d, nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, mongoFilter(q.Filters), s.findOptions(q))
	if err != nil {
		return nil, s.wrap("query", collection, err)
	}
	defer cur.Close(ctx)
	out := []Document{}
	for cur.Next(ctx) {
		var d Document
		if err := cur.Decode(&d); err != nil {
			return nil, s.wrap("query", collection, err)
		}
		out = append(out, d)
	}
	if err := cur.Err(); err != nil {
		return nil, s.wrap("query", collection, err)
	}
	return out, nil
}

func (s *MongoStore) Put(ctx context.Context, collection string, doc Document) error {
	id, ok := doc["_id"].(string)
	if !ok || id == "" {
		return &content.PersistenceError{Kind: content.KindUnknown, Op: "put", Collection: collection, Err: fmt.Errorf("document has no string _id")}
	}
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return s.wrap("put", collection, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, set Document) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return s.wrap("update", collection, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", content.ErrNotFound, collection, id)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return s.wrap("delete", collection, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s/%s", content.ErrNotFound, collection, id)
	}
	return nil
}

// OnSnapshot opens a change stream on the collection and re-runs q after
// every event. Change streams need a replica set; on a standalone server the
// call fails with a PersistenceError.
func (s *MongoStore) OnSnapshot(ctx context.Context, collection string, q Query, fn SnapshotFunc) (CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	cs, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, s.wrap("snapshot", collection, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cs.Close(context.Background())

		deliver := func() {
			docs, err := s.Query(ctx, collection, q)
			if ctx.Err() == nil {
				fn(docs, err)
			}
		}
		deliver()
		for cs.Next(ctx) {
			// drain whatever else is already buffered so bursts coalesce
			for cs.RemainingBatchLength() > 0 {
				if !cs.TryNext(ctx) {
					break
				}
			}
			deliver()
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			fn(nil, s.wrap("snapshot", collection, err))
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

func (s *MongoStore) findOptions(q Query) *options.FindOptions {
	opts := options.Find()
	if len(q.OrderBy) > 0 {
		sort := bson.D{}
		for _, o := range q.OrderBy {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Field, Value: dir})
		}
		opts.SetSort(sort)
		if s.requireIndexes {
			opts.SetHint(IndexKeys(q))
		}
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

// IndexKeys is the compound index a query needs: filter fields first, then
// the sort fields.
func IndexKeys(q Query) bson.D {
	keys := bson.D{}
	seen := map[string]bool{}
	for _, f := range q.Filters {
		if seen[f.Field] {
			continue
		}
		seen[f.Field] = true
		keys = append(keys, bson.E{Key: f.Field, Value: 1})
	}
	for _, o := range q.OrderBy {
		if seen[o.Field] {
			continue
		}
		seen[o.Field] = true
		dir := 1
		if o.Desc {
			dir = -1
		}
		keys = append(keys, bson.E{Key: o.Field, Value: dir})
	}
	return keys
}

func mongoFilter(filters []Filter) bson.M {
	m := bson.M{}
	for _, f := range filters {
		switch f.Op {
		case OpIn:
			m[f.Field] = bson.M{"$in": f.Value}
		default:
			// equality on an array field already matches any element
			m[f.Field] = f.Value
		}
	}
	return m
}

func (s *MongoStore) wrap(op, collection string, err error) error {
	return &content.PersistenceError{Kind: Classify(err), Op: op, Collection: collection, Err: err}
}

// Mongo server error codes used for classification.
const (
	codeBadValue          = 2
	codeUnauthorized      = 13
	codeNoQueryExecution  = 291
	codeAtlasUnauthorized = 8000
)

// Classify maps a driver error onto a PersistenceKind.
func Classify(err error) content.PersistenceKind {
	if err == nil {
		return content.KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, mongo.ErrClientDisconnected) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return content.KindUnavailable
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		switch {
		case se.HasErrorCode(codeUnauthorized), se.HasErrorCode(codeAtlasUnauthorized):
			return content.KindPermissionDenied
		case se.HasErrorCode(codeNoQueryExecution), se.HasErrorCodeWithMessage(codeBadValue, "hint"):
			return content.KindMissingIndex
		}
	}
	return content.KindUnknown
}
