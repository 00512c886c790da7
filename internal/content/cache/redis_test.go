package cache

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ttl time.Duration) (*RedisCache, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ttl), m
}

func TestRedisCache_HitMissInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, time.Minute)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	_, ok, err := c.Get(ctx, gen, "all")
	require.NoError(t, err)
	require.False(t, ok)

	o := &content.Object{ID: "a", Title: "Fair", Tags: []string{content.TagNewsletterReady}, Features: content.Features{}}
	o.Features.Set(&content.TaskFeature{Category: "food", Qty: 2, Unit: "kg"})
	require.NoError(t, c.Set(ctx, gen, "all", []*content.Object{o}))

	hitsBefore := testutil.ToFloat64(metrics.EligibilityCache.WithLabelValues("hit"))
	items, ok, err := c.Get(ctx, gen, "all")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, items, 1)
	require.Equal(t, "Fair", items[0].Title)
	task, ok := content.TaskOf(items[0])
	require.True(t, ok)
	require.Equal(t, 2.0, task.Qty)
	require.Equal(t, hitsBefore+1, testutil.ToFloat64(metrics.EligibilityCache.WithLabelValues("hit")))

	require.NoError(t, c.Invalidate(ctx))
	next, err := c.Generation(ctx)
	require.NoError(t, err)
	require.Greater(t, next, gen)
	_, ok, err = c.Get(ctx, next, "all")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_SetUnderOldGenerationIsNeverRead(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, time.Minute)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	// a write lands while the set for gen is being computed
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, gen, "all", []*content.Object{}))

	current, err := c.Generation(ctx)
	require.NoError(t, err)
	_, ok, err := c.Get(ctx, current, "all")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_EmptySetIsAHit(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, time.Minute)
	require.NoError(t, c.Set(ctx, 0, "k", []*content.Object{}))
	items, ok, err := c.Get(ctx, 0, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, items)
	require.Empty(t, items)
}

func TestRedisCache_Expires(t *testing.T) {
	ctx := context.Background()
	c, m := newCache(t, time.Second)
	require.NoError(t, c.Set(ctx, 0, "k", []*content.Object{{ID: "a"}}))
	m.FastForward(2 * time.Second)
	_, ok, err := c.Get(ctx, 0, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_BackendDown(t *testing.T) {
	c, m := newCache(t, time.Minute)
	m.Close()
	_, err := c.Generation(context.Background())
	require.Error(t, err)
	_, ok, err := c.Get(context.Background(), 0, "k")
	require.Error(t, err)
	require.False(t, ok)
}
