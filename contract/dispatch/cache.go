package dispatch

import (
	"context"
	"time"
)

// Cache stores successful query results under deterministically derived keys.
// A read of an expired entry is treated as absent and counted as a miss.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the live value for key, or ok=false on a missing or
	// expired entry. Backend failures degrade to a miss.
	Get(ctx context.Context, key string) (value any, ok bool)

	// Set stores value under key, overwriting any prior entry.
	// A non-positive ttl applies the implementation's conservative default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Invalidate removes a single key. Removing an absent key is not an error.
	Invalidate(ctx context.Context, key string) error

	// InvalidateMatching removes every key matching the glob-style pattern
	// (not a regex) and reports how many entries were removed.
	InvalidateMatching(ctx context.Context, pattern string) (int, error)

	// Stats reports hit/miss counters and the current entry count.
	Stats() CacheStats
}

// CacheStats are process-wide counters, reset only on restart.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int64
}
