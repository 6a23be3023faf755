package jsonapi_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

func newRedisCache(t *testing.T) *jsonapi.RedisCache {
	t.Helper()

	server := miniredis.RunT(t)

	cache, err := jsonapi.NewRedisCache(context.Background(), &jsonapi.RedisConfig{Addr: server.Addr()})
	require.NoError(t, err)

	t.Cleanup(func() { _ = cache.Close() })

	return cache
}

func TestRedisCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := newRedisCache(t)
	ctx := context.Background()

	entry := &jsonapi.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	require.NoError(t, cache.Set(ctx, "key1", entry))

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.True(t, cache.Has(ctx, "key1"))
}

func TestRedisCache_GetNonExistent(t *testing.T) {
	t.Parallel()

	cache := newRedisCache(t)

	_, err := cache.Get(context.Background(), "missing")
	require.ErrorIs(t, err, jsonapi.ErrCacheKeyNotFound)
}

func TestRedisCache_SetManyGetMany(t *testing.T) {
	t.Parallel()

	cache := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetMany(ctx, map[string]*jsonapi.CacheEntry{
		"a": {Data: []byte("a")},
		"b": {Data: []byte("b")},
	}))

	entries, err := cache.GetMany(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("a"), entries["a"].Data)
	assert.Equal(t, []byte("b"), entries["b"].Data)
}

func TestRedisCache_DeleteAndClear(t *testing.T) {
	t.Parallel()

	cache := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", &jsonapi.CacheEntry{Data: []byte("a")}))
	require.NoError(t, cache.Delete(ctx, "a"))
	assert.False(t, cache.Has(ctx, "a"))

	require.NoError(t, cache.Set(ctx, "b", &jsonapi.CacheEntry{Data: []byte("b")}))
	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.Has(ctx, "b"))
}

func TestRedisCache_BacksRecordCache(t *testing.T) {
	t.Parallel()

	cache := newRedisCache(t)
	ctx := context.Background()
	_, _, users, _ := newTestRegistry(t)

	records := jsonapi.NewRecordCache(cache, "", "")

	alice, err := jsonapi.NewRecord(users, 1, map[string]any{"name": "Alice"})
	require.NoError(t, err)

	records.SetRecord(ctx, alice)

	restored := records.GetRecord(ctx, users, 1)
	require.NotNil(t, restored)
	assert.Equal(t, "Alice", restored.StringAttr("name"))
}
