package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

const (
	defaultKeyPrefix = "dispatch:"
	defaultTTL       = 300 * time.Second
	scanBatch        = 256
	statsTimeout     = 2 * time.Second
)

// Cache is a Redis-backed query result cache. Values are stored as JSON, so
// a hit returns the decoded JSON shape (maps and slices), not the handler's
// original Go types; callers that need typed results decode downstream.
// Redis key matching is natively glob-style, which is exactly the
// invalidation pattern syntax of the cache contract.
//
// Hit/miss counters are kept process-locally; Size is read from Redis.
type Cache struct {
	client *redis.Client
	prefix string

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps an existing client. An empty prefix applies "dispatch:".
func New(client *redis.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &Cache{client: client, prefix: prefix}
}

var _ cdsp.Cache = (*Cache)(nil)

// Config holds connection settings for NewWithRedis.
type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// NewWithRedis dials Redis, verifies the connection, and returns a Cache
// and a cleanup that closes the client.
func NewWithRedis(cfg Config) (*Cache, func(), error) {
	if cfg.Addr == "" {
		return nil, nil, fmt.Errorf("%w: redis addr required", derr.ErrCacheFailed)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", errors.Join(derr.ErrCacheFailed, err))
	}

	cleanup := func() { _ = client.Close() }

	return New(client, cfg.KeyPrefix), cleanup, nil
}

// Get returns the live value for key. redis.Nil, expiry, and backend
// failures all degrade to a miss; the cache is an optimization, never a
// correctness dependency.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)

	return value, true
}

// Set stores value under key with ttl. A non-positive ttl applies the
// conservative 300s default. Redis expiry enforces the TTL server-side.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", errors.Join(derr.ErrSerializationFailed, err))
	}

	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", errors.Join(derr.ErrCacheFailed, err))
	}

	return nil
}

// Invalidate removes a single key. Removing an absent key is not an error.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", errors.Join(derr.ErrCacheFailed, err))
	}

	return nil
}

// InvalidateMatching removes every key matching the glob-style pattern and
// reports how many entries were removed. The pattern is scoped under the
// cache's key prefix before scanning.
func (c *Cache) InvalidateMatching(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan: %w", errors.Join(derr.ErrCacheFailed, err))
		}

		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", errors.Join(derr.ErrCacheFailed, err))
			}

			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Stats reports the process-local hit/miss counters and the current number
// of cache keys under the prefix. The size scan runs on a short internal
// timeout so a slow Redis cannot stall statistics reads.
func (c *Cache) Stats() cdsp.CacheStats {
	stats := cdsp.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	var cursor uint64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return stats
		}

		stats.Size += int64(len(keys))

		cursor = next
		if cursor == 0 {
			return stats
		}
	}
}
