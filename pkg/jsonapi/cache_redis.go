package jsonapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	// Addr is the Redis server address, e.g. "localhost:6379".
	Addr string

	// Username and Password authenticate the connection when set.
	Username string
	Password string

	// DB selects the Redis logical database.
	DB int
}

// RedisCache is a cache backend on a Redis server. Entry expiration is
// delegated to Redis key TTLs; entries without a deadline are stored without
// expiration.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a Redis cache backend and verifies connectivity.
func NewRedisCache(ctx context.Context, config *RedisConfig) (*RedisCache, error) {
	if config == nil {
		return nil, ErrRedisConfigRequired
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", config.Addr, err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing Redis client.
func NewRedisCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves an entry.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheKeyNotFound
		}

		return nil, fmt.Errorf("reading cache key %q: %w", key, err)
	}

	var entry CacheEntry

	err = msgpack.Unmarshal(data, &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding cache key %q: %w", key, err)
	}

	if entry.Expired() {
		_ = c.client.Del(ctx, key).Err()

		return nil, ErrCacheEntryExpired
	}

	return &entry, nil
}

// GetMany retrieves the entries present and unexpired, using one MGET.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) (map[string]*CacheEntry, error) {
	found := make(map[string]*CacheEntry, len(keys))

	if len(keys) == 0 {
		return found, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %d cache keys: %w", len(keys), err)
	}

	for i, value := range values {
		text, ok := value.(string)
		if !ok {
			continue
		}

		var entry CacheEntry

		if msgpack.Unmarshal([]byte(text), &entry) != nil || entry.Expired() {
			continue
		}

		found[keys[i]] = &entry
	}

	return found, nil
}

// Set stores an entry, mirroring its deadline as a Redis key TTL.
func (c *RedisCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache key %q: %w", key, err)
	}

	err = c.client.Set(ctx, key, data, redisTTL(entry)).Err()
	if err != nil {
		return fmt.Errorf("writing cache key %q: %w", key, err)
	}

	return nil
}

// SetMany stores all entries in one pipeline round trip.
func (c *RedisCache) SetMany(ctx context.Context, entries map[string]*CacheEntry) error {
	pipe := c.client.Pipeline()

	for key, entry := range entries {
		data, err := msgpack.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encoding cache key %q: %w", key, err)
		}

		pipe.Set(ctx, key, data, redisTTL(entry))
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("writing %d cache keys: %w", len(entries), err)
	}

	return nil
}

// Delete removes an entry.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("deleting cache key %q: %w", key, err)
	}

	return nil
}

// Clear flushes the selected Redis database.
func (c *RedisCache) Clear(ctx context.Context) error {
	err := c.client.FlushDB(ctx).Err()
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	return nil
}

// Has checks whether an unexpired entry exists.
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func redisTTL(entry *CacheEntry) time.Duration {
	if entry.ExpiresAt.IsZero() {
		return 0
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		// Already expired; keep it around just long enough to be evicted.
		return time.Second
	}

	return ttl
}
