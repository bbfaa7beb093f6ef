package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

// DefaultTTL applies when Set is called with a non-positive ttl.
const DefaultTTL = 300 * time.Second

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an in-process TTL key/value store for query results. Entries
// never outlive their TTL; an expired read counts as a miss. The cache is a
// latency optimization, not a bounded-memory structure: there is no LRU,
// invalidation and expiry are the only ways entries leave.
//
// Cache is concurrency-safe.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// New constructs an empty Cache on the system clock.
func New() *Cache { return NewWithNow(time.Now) }

// NewWithNow constructs a Cache with an injected time source.
func NewWithNow(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     now,
	}
}

var _ cdsp.Cache = (*Cache)(nil)

// Get returns the live value for key. Missing and expired entries both
// count as a miss; expired entries are removed on the way out.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	_ = ctx

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; Set may have refreshed the entry.
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		c.misses.Add(1)

		return nil, false
	}

	c.hits.Add(1)

	return e.value, true
}

// Set stores value under key, overwriting any prior entry.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	_ = ctx

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()

	return nil
}

// Invalidate removes a single key. Removing an absent key is not an error.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	_ = ctx

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	return nil
}

// InvalidateMatching removes every key matching the glob-style pattern and
// reports how many entries were removed. The scan is O(n) over current
// entries; caches stay small and invalidations are rare next to reads.
func (c *Cache) InvalidateMatching(ctx context.Context, pattern string) (int, error) {
	_ = ctx

	g, err := glob.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("compile pattern %q: %w", pattern, derr.ErrCacheFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0

	for k := range c.entries {
		if g.Match(k) {
			delete(c.entries, k)
			removed++
		}
	}

	return removed, nil
}

// Stats reports hit/miss counters and the live entry count. Expired entries
// are pruned so Size never includes dead weight.
func (c *Cache) Stats() cdsp.CacheStats {
	now := c.now()

	c.mu.Lock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	size := int64(len(c.entries))
	c.mu.Unlock()

	return cdsp.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
}
