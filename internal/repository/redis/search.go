// Package redis caches search results in Redis.
package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
)

const (
	keyPrefix  = "search:"
	versionKey = keyPrefix + "version"
)

var cacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_search_cache_lookups_total",
		Help: "Search cache lookups by result (hit, miss, error).",
	},
	[]string{"result"},
)

// SearchCache stores search results under a catalog version. Invalidate
// bumps the version so every earlier entry becomes unreachable and ages
// out through its TTL.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSearchCache creates a Redis-backed search cache.
func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{client: client, ttl: ttl}
}

func (c *SearchCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get search version: %w", err)
	}
	return v, nil
}

func entryKey(version int64, key string) string {
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("%sv%d:%s", keyPrefix, version, hex.EncodeToString(sum[:]))
}

// Versioned binds key to the current catalog version. Callers resolve it
// once before reading the catalog and use the result for both Get and Set,
// so a result computed across an Invalidate lands under the old version and
// is never served.
func (c *SearchCache) Versioned(ctx context.Context, key string) (string, error) {
	v, err := c.version(ctx)
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		return "", err
	}
	return entryKey(v, key), nil
}

// Get returns the result stored under a key from Versioned, or false on a miss.
func (c *SearchCache) Get(ctx context.Context, vkey string) (*domain.SearchResult, bool, error) {
	data, err := c.client.Get(ctx, vkey).Bytes()
	if errors.Is(err, redis.Nil) {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("redis get search result: %w", err)
	}

	var res domain.SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("unmarshal search result: %w", err)
	}
	cacheLookups.WithLabelValues("hit").Inc()
	return &res, true, nil
}

// Set stores res under a key from Versioned.
func (c *SearchCache) Set(ctx context.Context, vkey string, res *domain.SearchResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal search result: %w", err)
	}
	if err := c.client.Set(ctx, vkey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set search result: %w", err)
	}
	return nil
}

// Invalidate makes every cached result stale.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("redis incr search version: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable; used by the readiness check.
func (c *SearchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
