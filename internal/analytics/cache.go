package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultReportTTL is how long a cached report stays fresh. Reports are
// cheap to rebuild and views arrive continuously, so the window is short.
const DefaultReportTTL = 30 * time.Second

// CacheStore is the byte-level storage behind ReportCache.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ReportCache caches built reports keyed by their query options. Degraded
// reports are never stored; callers only Set when analytics was available.
type ReportCache struct {
	store CacheStore
	ttl   time.Duration
}

// NewReportCache creates a ReportCache over the given store. A zero ttl
// falls back to DefaultReportTTL.
func NewReportCache(store CacheStore, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	return &ReportCache{store: store, ttl: ttl}
}

// Get returns the cached report for opts, if present and decodable.
// Storage and decode failures read as misses.
func (c *ReportCache) Get(ctx context.Context, opts Options) (*Report, bool) {
	data, ok, err := c.store.Get(ctx, cacheKey(opts))
	if err != nil || !ok {
		return nil, false
	}

	var report Report
	if err := cbor.Unmarshal(data, &report); err != nil {
		return nil, false
	}
	return &report, true
}

// Set stores the report for opts.
func (c *ReportCache) Set(ctx context.Context, opts Options, report *Report) error {
	data, err := cbor.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return c.store.Set(ctx, cacheKey(opts), data, c.ttl)
}

func cacheKey(opts Options) string {
	return fmt.Sprintf("report:%s:%s:%s:%d:%d:%t",
		opts.DocumentID, opts.LinkID, opts.TeamID, opts.Page, opts.Limit, opts.ExcludeTeamMembers)
}

// RedisStore backs ReportCache with Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed cache store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get retrieves a value from Redis. A missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores a value in Redis with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process cache store for tests and single-node
// deployments without Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Get retrieves a value, treating expired entries as absent.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a value with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}
