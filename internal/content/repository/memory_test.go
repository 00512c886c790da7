package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Put(ctx, "c", Document{"_id": "a", "title": "hello", "tags": []string{"x:y"}})
	require.NoError(t, err)

	got, err := s.Get(ctx, "c", "a")
	require.NoError(t, err)
	require.Equal(t, "hello", got["title"])

	// readers get a private copy
	got["title"] = "mutated"
	again, err := s.Get(ctx, "c", "a")
	require.NoError(t, err)
	require.Equal(t, "hello", again["title"])

	require.NoError(t, s.Update(ctx, "c", "a", Document{"title": "new"}))
	got, err = s.Get(ctx, "c", "a")
	require.NoError(t, err)
	require.Equal(t, "new", got["title"])

	require.NoError(t, s.Delete(ctx, "c", "a"))
	_, err = s.Get(ctx, "c", "a")
	require.ErrorIs(t, err, content.ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, "c", "a", Document{"title": "x"}), content.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "c", "a"), content.ErrNotFound)

	err = s.Put(ctx, "c", Document{"title": "no id"})
	var pe *content.PersistenceError
	require.True(t, errors.As(err, &pe))
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		{"_id": "1", "status": "published", "tags": []string{"newsletter:ready"}, "createdAt": base},
		{"_id": "2", "status": "draft", "tags": []string{}, "createdAt": base.Add(time.Hour)},
		{"_id": "3", "status": "published", "tags": []string{"category:food"}, "createdAt": base.Add(2 * time.Hour)},
		{"_id": "4", "status": "approved", "tags": []string{"newsletter:ready"}, "createdAt": base.Add(3 * time.Hour)},
	}
	for _, d := range docs {
		require.NoError(t, s.Put(ctx, "c", d))
	}

	ids := func(ds []Document) []string {
		out := []string{}
		for _, d := range ds {
			out = append(out, d["_id"].(string))
		}
		return out
	}

	got, err := s.Query(ctx, "c", Query{
		Filters: []Filter{Eq("status", content.StatusPublished)},
		OrderBy: []Order{{Field: "createdAt", Desc: true}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"3", "1"}, ids(got))

	got, err = s.Query(ctx, "c", Query{
		Filters: []Filter{In("status", "approved", "published")},
		OrderBy: []Order{{Field: "createdAt"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "3", "4"}, ids(got))

	got, err = s.Query(ctx, "c", Query{Filters: []Filter{ArrayContains("tags", "newsletter:ready")}})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "4"}, ids(got))

	got, err = s.Query(ctx, "c", Query{OrderBy: []Order{{Field: "createdAt", Desc: true}}, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"4", "3"}, ids(got))

	got, err = s.Query(ctx, "empty", Query{})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestMemoryStoreQuery_EqualityOnArrays(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "c", Document{"_id": "1", "tags": []string{"category:food", "newsletter:ready"}}))
	require.NoError(t, s.Put(ctx, "c", Document{"_id": "2", "tags": []string{"category:music"}}))
	require.NoError(t, s.Put(ctx, "c", Document{"_id": "3", "tags": "newsletter:ready"}))

	got, err := s.Query(ctx, "c", Query{Filters: []Filter{Eq(FieldTags, "newsletter:ready")}})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = s.Query(ctx, "c", Query{Filters: []Filter{In(FieldTags, "category:music", "category:none")}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "2", got[0]["_id"])

	got, err = s.Query(ctx, "c", Query{Filters: []Filter{Eq(FieldTags, "category")}})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().Query(ctx, "c", Query{})
	var pe *content.PersistenceError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, content.KindUnavailable, pe.Kind)
	require.True(t, pe.Transient())
}

func TestMemoryStoreOnSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "c", Document{"_id": "1", "status": "published"}))

	var mu sync.Mutex
	var sizes []int
	snap := make(chan struct{}, 16)
	cancel, err := s.OnSnapshot(ctx, "c", Query{Filters: []Filter{Eq("status", "published")}}, func(docs []Document, err error) {
		if err != nil {
			t.Error(err)
		}
		mu.Lock()
		sizes = append(sizes, len(docs))
		mu.Unlock()
		snap <- struct{}{}
	})
	require.NoError(t, err)

	waitSnapshot(t, snap)
	require.NoError(t, s.Put(ctx, "c", Document{"_id": "2", "status": "published"}))
	waitSnapshot(t, snap)

	cancel()
	cancel()
	require.Equal(t, 0, s.listenerCount("c"))

	// no deliveries after cancel
	require.NoError(t, s.Put(ctx, "c", Document{"_id": "3", "status": "published"}))
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, sizes[0])
	require.Equal(t, 2, sizes[len(sizes)-1])
}

func TestMemoryStoreOnSnapshot_ContextCancelReleases(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	stop, err := s.OnSnapshot(ctx, "c", Query{}, func([]Document, error) {})
	require.NoError(t, err)
	cancel()
	stop()
	require.Equal(t, 0, s.listenerCount("c"))
}

func waitSnapshot(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}
