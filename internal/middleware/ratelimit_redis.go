package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, so limits are
// shared across API replicas. It uses a fixed window counter (INCR + EXPIRE).
//
// The store fails open: if Redis is unreachable the request is allowed, since
// dropping traffic on a cache outage is worse than briefly exceeding a limit.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
	logger  *slog.Logger
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client: client,
		logger: slog.Default(),
	}
}

// WithMetrics attaches middleware metrics so fail-open events are counted.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// WithLogger sets the logger used for Redis errors.
func (s *RedisRateLimitStore) WithLogger(logger *slog.Logger) *RedisRateLimitStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	bucketKey := "ratelimit:" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.ExpireNX(ctx, bucketKey, config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		s.failOpen(ctx, err)
		return true, config.RequestsPerWindow, 0
	}

	count := int(incr.Val())
	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}

	ttl, err := s.client.TTL(ctx, bucketKey).Result()
	if err != nil {
		s.failOpen(ctx, err)
		return true, 0, 0
	}

	retryAfter := int(ttl / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

func (s *RedisRateLimitStore) failOpen(ctx context.Context, err error) {
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
	s.logger.WarnContext(ctx, "rate limit check failed, allowing request", "error", err)
}
