package jsonapi

import (
	"context"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/recordlink-io/jsonapi-orm/internal/constants"
)

// CacheEntry is one stored cache value. A zero ExpiresAt means the entry
// never expires.
type CacheEntry struct {
	Data      []byte    `msgpack:"data"`
	ExpiresAt time.Time `msgpack:"expires_at"`
}

// Expired reports whether the entry's deadline has passed.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Cache is a process-wide key/value store for encoded records. Get returns
// ErrCacheKeyNotFound or ErrCacheEntryExpired on a miss; GetMany simply
// omits missing keys.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	GetMany(ctx context.Context, keys []string) (map[string]*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	SetMany(ctx context.Context, entries map[string]*CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// MemoryCache is a bounded in-process cache backend on an LRU with
// per-entry expiration.
type MemoryCache struct {
	entries *lru.Cache[string, *CacheEntry]
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	entries, err := lru.New[string, *CacheEntry](maxSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}

	return &MemoryCache{entries: entries}
}

// Get retrieves an entry, evicting it when expired.
func (c *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, ErrCacheKeyNotFound
	}

	if entry.Expired() {
		c.entries.Remove(key)

		return nil, ErrCacheEntryExpired
	}

	return entry, nil
}

// GetMany retrieves the entries present and unexpired.
func (c *MemoryCache) GetMany(ctx context.Context, keys []string) (map[string]*CacheEntry, error) {
	found := make(map[string]*CacheEntry, len(keys))

	for _, key := range keys {
		entry, err := c.Get(ctx, key)
		if err == nil {
			found[key] = entry
		}
	}

	return found, nil
}

// Set stores an entry.
func (c *MemoryCache) Set(_ context.Context, key string, entry *CacheEntry) error {
	c.entries.Add(key, entry)

	return nil
}

// SetMany stores all entries.
func (c *MemoryCache) SetMany(ctx context.Context, entries map[string]*CacheEntry) error {
	for key, entry := range entries {
		_ = c.Set(ctx, key, entry)
	}

	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.entries.Purge()

	return nil
}

// Has checks whether an unexpired entry exists.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// NoOpCache is a cache that does nothing (no caching).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always misses.
func (c *NoOpCache) Get(context.Context, string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

// GetMany always returns no entries.
func (c *NoOpCache) GetMany(context.Context, []string) (map[string]*CacheEntry, error) {
	return map[string]*CacheEntry{}, nil
}

// Set does nothing.
func (c *NoOpCache) Set(context.Context, string, *CacheEntry) error {
	return nil
}

// SetMany does nothing.
func (c *NoOpCache) SetMany(context.Context, map[string]*CacheEntry) error {
	return nil
}

// Delete does nothing.
func (c *NoOpCache) Delete(context.Context, string) error {
	return nil
}

// Clear does nothing.
func (c *NoOpCache) Clear(context.Context) error {
	return nil
}

// Has always returns false.
func (c *NoOpCache) Has(context.Context, string) bool {
	return false
}

// CacheChain layers cache backends (L1, L2, ...): reads check each level in
// order and backfill earlier levels on a hit; writes go to every level.
type CacheChain struct {
	caches []Cache
}

// NewCacheChain creates a new cache chain.
func NewCacheChain(caches ...Cache) *CacheChain {
	return &CacheChain{caches: caches}
}

// Get retrieves an item from the chain, populating earlier levels.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, cache := range c.caches {
		entry, err := cache.Get(ctx, key)
		if err == nil {
			for j := 0; j < i; j++ {
				_ = c.caches[j].Set(ctx, key, entry)
			}

			return entry, nil
		}
	}

	return nil, ErrKeyNotFoundInAnyCache
}

// GetMany retrieves items across all levels, backfilling earlier ones.
func (c *CacheChain) GetMany(ctx context.Context, keys []string) (map[string]*CacheEntry, error) {
	found := make(map[string]*CacheEntry, len(keys))
	remaining := keys

	for i, cache := range c.caches {
		if len(remaining) == 0 {
			break
		}

		entries, err := cache.GetMany(ctx, remaining)
		if err != nil {
			continue
		}

		missing := remaining[:0:0]

		for _, key := range remaining {
			entry, ok := entries[key]
			if !ok {
				missing = append(missing, key)

				continue
			}

			found[key] = entry

			for j := 0; j < i; j++ {
				_ = c.caches[j].Set(ctx, key, entry)
			}
		}

		remaining = missing
	}

	return found, nil
}

// Set stores an item in all levels.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	var lastErr error

	for _, cache := range c.caches {
		err := cache.Set(ctx, key, entry)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// SetMany stores all items in all levels.
func (c *CacheChain) SetMany(ctx context.Context, entries map[string]*CacheEntry) error {
	var lastErr error

	for _, cache := range c.caches {
		err := cache.SetMany(ctx, entries)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Delete removes an item from all levels.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	var lastErr error

	for _, cache := range c.caches {
		err := cache.Delete(ctx, key)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Clear removes all items from all levels.
func (c *CacheChain) Clear(ctx context.Context) error {
	var lastErr error

	for _, cache := range c.caches {
		err := cache.Clear(ctx)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Has checks if a key exists in any level.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, cache := range c.caches {
		if cache.Has(ctx, key) {
			return true
		}
	}

	return false
}

// RecordCache stores hydrated records in a Cache backend under
// "<prefix>:<resource-type>[:<version>]:<id>" keys, honoring each record
// type's TTL semantics. Backend failures are indistinguishable from misses.
type RecordCache struct {
	backend    Cache
	prefix     string
	keyVersion string
}

// NewRecordCache wraps a cache backend for record storage.
func NewRecordCache(backend Cache, prefix, keyVersion string) *RecordCache {
	if prefix == "" {
		prefix = constants.DefaultCachePrefix
	}

	return &RecordCache{backend: backend, prefix: prefix, keyVersion: keyVersion}
}

// Key builds the cache key for a record type and id.
func (c *RecordCache) Key(rt *RecordType, id int) string {
	if c.keyVersion != "" {
		return c.prefix + ":" + rt.ResourceType + ":" + c.keyVersion + ":" + strconv.Itoa(id)
	}

	return c.prefix + ":" + rt.ResourceType + ":" + strconv.Itoa(id)
}

// GetRecord reads one cached record, nil on any kind of miss.
func (c *RecordCache) GetRecord(ctx context.Context, rt *RecordType, id int) *Record {
	_, enabled, _ := rt.cacheTTL()
	if !enabled {
		return nil
	}

	entry, err := c.backend.Get(ctx, c.Key(rt, id))
	if err != nil {
		return nil
	}

	record, err := decodeRecord(rt, entry.Data)
	if err != nil {
		return nil
	}

	return record
}

// GetRecords bulk-reads cached records by id in one backend round trip.
// Missing, expired, and undecodable entries are simply absent from the
// result. A record type with caching disabled reads nothing.
func (c *RecordCache) GetRecords(ctx context.Context, rt *RecordType, ids []int) map[int]*Record {
	found := make(map[int]*Record, len(ids))

	_, enabled, _ := rt.cacheTTL()
	if !enabled {
		return found
	}

	keys := make([]string, 0, len(ids))
	keyToID := make(map[string]int, len(ids))

	for _, id := range ids {
		key := c.Key(rt, id)
		keys = append(keys, key)
		keyToID[key] = id
	}

	entries, err := c.backend.GetMany(ctx, keys)
	if err != nil {
		return found
	}

	for key, entry := range entries {
		record, decodeErr := decodeRecord(rt, entry.Data)
		if decodeErr != nil {
			continue
		}

		found[keyToID[key]] = record
	}

	return found
}

// SetRecord writes one record, respecting the type's TTL semantics.
func (c *RecordCache) SetRecord(ctx context.Context, record *Record) {
	rt := record.Type()

	ttl, enabled, expires := rt.cacheTTL()
	if !enabled {
		return
	}

	data, err := record.MarshalBinary()
	if err != nil {
		return
	}

	entry := &CacheEntry{Data: data}
	if expires {
		entry.ExpiresAt = time.Now().Add(ttl)
	}

	_ = c.backend.Set(ctx, c.Key(rt, record.ID()), entry)
}

// SetRecords bulk-writes records of one type in one backend round trip.
func (c *RecordCache) SetRecords(ctx context.Context, rt *RecordType, records []*Record) {
	ttl, enabled, expires := rt.cacheTTL()
	if !enabled || len(records) == 0 {
		return
	}

	var expiresAt time.Time
	if expires {
		expiresAt = time.Now().Add(ttl)
	}

	entries := make(map[string]*CacheEntry, len(records))

	for _, record := range records {
		data, err := record.MarshalBinary()
		if err != nil {
			continue
		}

		entries[c.Key(rt, record.ID())] = &CacheEntry{Data: data, ExpiresAt: expiresAt}
	}

	_ = c.backend.SetMany(ctx, entries)
}
