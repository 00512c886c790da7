// Package cache keeps computed eligibility sets in Redis.
//
// Entries are keyed by a generation number. Every content write bumps the
// generation, so stale sets are never read again and simply expire.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "newsdesk:eligible"

// RedisCache stores eligibility sets as JSON.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: DefaultPrefix, ttl: ttl}
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":gen"
}

// Generation returns the current generation. Callers read it before
// computing a set and pass it to Get and Set, so a set computed while a
// write happened is stored under a generation nobody reads any more.
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		metrics.EligibilityCache.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("eligibility cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisCache) entryKey(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, key)
}

// Get returns the set cached for key in generation gen. ok is false on a
// miss.
func (c *RedisCache) Get(ctx context.Context, gen int64, key string) ([]*content.Object, bool, error) {
	data, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.EligibilityCache.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.EligibilityCache.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("eligibility cache get: %w", err)
	}
	var items []*content.Object
	if err := json.Unmarshal(data, &items); err != nil {
		metrics.EligibilityCache.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("eligibility cache decode: %w", err)
	}
	if items == nil {
		items = []*content.Object{}
	}
	metrics.EligibilityCache.WithLabelValues("hit").Inc()
	return items, true, nil
}

// Set stores items under key for generation gen.
func (c *RedisCache) Set(ctx context.Context, gen int64, key string, items []*content.Object) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("eligibility cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.entryKey(gen, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("eligibility cache set: %w", err)
	}
	return nil
}

// Invalidate starts a new generation.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("eligibility cache invalidate: %w", err)
	}
	return nil
}
