package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
)

func setupTestRedis(t *testing.T) (*SearchCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSearchCache(client, time.Minute), mr
}

func sampleResult() *domain.SearchResult {
	return &domain.SearchResult{
		Products:      []domain.Product{{ID: "p1", Name: "Nike Slim Pant", Price: 25, Rating: 4, Reviews: []domain.Review{}}},
		CountProducts: 6,
		Page:          1,
		Pages:         2,
	}
}

func versioned(t *testing.T, c *SearchCache, key string) string {
	t.Helper()
	vkey, err := c.Versioned(context.Background(), key)
	require.NoError(t, err)
	return vkey
}

func TestSearchCache_MissThenHit(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()
	vkey := versioned(t, cache, "category=Pants")
	assert.Equal(t, entryKey(0, "category=Pants"), vkey)

	got, ok, err := cache.Get(ctx, vkey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, vkey, sampleResult()))

	got, ok, err = cache.Get(ctx, versioned(t, cache, "category=Pants"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(6), got.CountProducts)
	assert.Equal(t, 2, got.Pages)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "Nike Slim Pant", got.Products[0].Name)
}

func TestSearchCache_InvalidateHidesOldEntries(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, versioned(t, cache, "k"), sampleResult()))
	require.NoError(t, cache.Invalidate(ctx))

	_, ok, err := cache.Get(ctx, versioned(t, cache, "k"))
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := mr.Get(versionKey)
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestSearchCache_WriteDuringSearchOrphansResult(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	// A search misses, a review lands while it reads the catalog, then the
	// search stores what it read before the review.
	vkey := versioned(t, cache, "rating=4")
	_, ok, err := cache.Get(ctx, vkey)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Invalidate(ctx))
	require.NoError(t, cache.Set(ctx, vkey, sampleResult()))

	_, ok, err = cache.Get(ctx, versioned(t, cache, "rating=4"))
	require.NoError(t, err)
	assert.False(t, ok, "result computed before the write must not be served after it")
}

func TestSearchCache_EntriesExpire(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, versioned(t, cache, "k"), sampleResult()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, versioned(t, cache, "k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, mr.Set(entryKey(0, "k"), "{{not-json"))

	_, ok, err := cache.Get(context.Background(), versioned(t, cache, "k"))
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "unmarshal search result")
}

func TestSearchCache_RedisDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Versioned(context.Background(), "k")
	assert.Error(t, err)
	_, _, err = cache.Get(context.Background(), entryKey(0, "k"))
	assert.Error(t, err)
	assert.Error(t, cache.Ping(context.Background()))
}
