package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	n := 0
	clock := time.Date(2026, 4, 1, 12, 0, 0, 123456789, time.UTC)
	r := New(store,
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("c%d", n)
		}),
	)
	return r, store
}

func TestRepositoryCreateGet(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	o := &content.Object{Title: "Fair", Description: "d", AuthorID: "u1", Tags: []string{"content-type:event"}}
	o.Features = content.Features{}
	o.Features.Set(&content.LocationFeature{Address: "Market Sq"})
	id, err := r.Create(ctx, o)
	require.NoError(t, err)
	require.Equal(t, "c1", id)
	require.Equal(t, content.StatusDraft, o.Status)
	require.Equal(t, 0, o.CreatedAt.Nanosecond()%int(time.Millisecond))
	require.Equal(t, o.CreatedAt, o.UpdatedAt)
	require.Nil(t, o.PublishedAt)

	got, err := r.Get(ctx, Canonical, id)
	require.NoError(t, err)
	require.Equal(t, "Fair", got.Title)
	require.True(t, o.CreatedAt.Equal(got.CreatedAt))
	l, ok := content.LocationOf(got)
	require.True(t, ok)
	require.Equal(t, "Market Sq", l.Address)

	missing, err := r.Get(ctx, Canonical, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	pub := &content.Object{Title: "t", Description: "d", Status: content.StatusPublished}
	_, err = r.Create(ctx, pub)
	require.NoError(t, err)
	require.NotNil(t, pub.PublishedAt)
	require.NotNil(t, pub.Tags)
}

func TestRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	o := &content.Object{Title: "t", Description: "d", Tags: []string{"category:food"}}
	id, err := r.Create(ctx, o)
	require.NoError(t, err)

	st := content.StatusPublished
	now := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Update(ctx, Canonical, id, Patch{Status: &st, PublishedAt: &now}))
	got, err := r.Get(ctx, Canonical, id)
	require.NoError(t, err)
	require.Equal(t, content.StatusPublished, got.Status)
	require.True(t, now.Equal(*got.PublishedAt))
	require.Equal(t, []string{"category:food"}, got.Tags)
	require.True(t, got.UpdatedAt.After(got.CreatedAt))

	require.NoError(t, r.Update(ctx, Canonical, id, Patch{Tags: []string{}}))
	got, err = r.Get(ctx, Canonical, id)
	require.NoError(t, err)
	require.Empty(t, got.Tags)

	err = r.Update(ctx, Canonical, "missing", Patch{Status: &st})
	require.ErrorIs(t, err, content.ErrNotFound)
}

func TestRepositoryQueryAndHardDelete(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)
	for _, s := range []content.Status{content.StatusPublished, content.StatusDraft, content.StatusPublished} {
		_, err := r.Create(ctx, &content.Object{Title: "t", Description: "d", Status: s})
		require.NoError(t, err)
	}
	got, err := r.Query(ctx, Canonical, Query{
		Filters: []Filter{Eq(FieldStatus, content.StatusPublished)},
		OrderBy: []Order{{Field: FieldCreatedAt, Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c3", got[0].ID)
	require.Equal(t, "c1", got[1].ID)

	require.NoError(t, r.HardDelete(ctx, Canonical, "c1"))
	o, err := r.Get(ctx, Canonical, "c1")
	require.NoError(t, err)
	require.Nil(t, o)
	require.ErrorIs(t, r.HardDelete(ctx, Canonical, "c1"), content.ErrNotFound)

	_, err = r.Query(ctx, Collection("archive"), Query{})
	require.Error(t, err)
}

func TestRepositorySubscribe(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRepo(t)
	snaps := make(chan []*content.Object, 8)
	cancel, err := r.Subscribe(ctx, Canonical, Query{Filters: []Filter{Eq(FieldStatus, content.StatusPublished)}}, func(objs []*content.Object, err error) {
		if err != nil {
			t.Error(err)
			return
		}
		snaps <- objs
	})
	require.NoError(t, err)
	defer cancel()

	require.Empty(t, nextSnapshot(t, snaps))
	_, err = r.Create(ctx, &content.Object{Title: "t", Description: "d", Status: content.StatusPublished})
	require.NoError(t, err)
	objs := nextSnapshot(t, snaps)
	require.Len(t, objs, 1)
	require.Equal(t, "t", objs[0].Title)

	cancel()
	require.Equal(t, 0, store.listenerCount(DefaultCanonicalCollection))
}

func nextSnapshot(t *testing.T, ch <-chan []*content.Object) []*content.Object {
	t.Helper()
	select {
	case objs := <-ch:
		return objs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

// failingStore fails every call with err.
type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string, string) (Document, error) { return nil, f.err }
func (f failingStore) Query(context.Context, string, Query) ([]Document, error) {
	return nil, f.err
}
func (f failingStore) Put(context.Context, string, Document) error            { return f.err }
func (f failingStore) Update(context.Context, string, string, Document) error { return f.err }
func (f failingStore) Delete(context.Context, string, string) error           { return f.err }
func (f failingStore) OnSnapshot(context.Context, string, Query, SnapshotFunc) (CancelFunc, error) {
	return nil, f.err
}

func TestRepositoryPropagatesPersistenceErrors(t *testing.T) {
	ctx := context.Background()
	denied := &content.PersistenceError{Kind: content.KindPermissionDenied, Op: "query", Collection: "content", Err: errors.New("denied")}
	r := New(failingStore{err: denied})

	objs, err := r.Query(ctx, Canonical, Query{})
	require.Nil(t, objs)
	require.Same(t, denied, err)

	_, err = r.Get(ctx, Legacy, "x")
	require.Same(t, denied, err)

	// untyped backend errors are classified rather than swallowed
	r = New(failingStore{err: context.DeadlineExceeded})
	_, err = r.Create(ctx, &content.Object{Title: "t"})
	var pe *content.PersistenceError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, content.KindUnavailable, pe.Kind)
	require.Equal(t, DefaultCanonicalCollection, pe.Collection)
}
