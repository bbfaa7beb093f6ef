package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

// DefaultQueryTTL bounds cache entries when neither the registration nor the
// dispatcher configuration provides a TTL.
const DefaultQueryTTL = 300 * time.Second

const queryKeyPrefix = "query:"

// QueryBus executes queries through the result cache. Identical concurrent
// dispatches of a cacheable query are coalesced into a single handler
// invocation; every caller still receives its own correlation id and timing.
// Queries never run inside a transaction.
type QueryBus struct {
	reg        *Registry
	obs        observer
	cache      cdsp.Cache
	defaultTTL time.Duration
	timeout    time.Duration
	group      singleflight.Group
}

// Execute dispatches one query and always returns an envelope; no error
// escapes past this boundary. Failed executions are never cached.
func (b *QueryBus) Execute(ctx context.Context, q cdsp.Query) cdsp.ExecutionResult {
	out := outcome{
		kind:    cdsp.KindQuery,
		msgType: q.Type,
		cid:     b.obs.clock.NewCorrelationID(),
		start:   b.obs.clock.Now(),
	}

	if q.Type == "" {
		out.err = fmt.Errorf("execute query: empty type: %w", derr.ErrInvalidMessage)
		return b.obs.finish(ctx, out)
	}

	h, opts, ok := b.reg.Query(q.Type)
	if !ok {
		out.err = fmt.Errorf("execute %s: %w", q.Type, derr.ErrHandlerNotFound)
		return b.obs.finish(ctx, out)
	}

	key, kerr := CacheKey(q)
	cacheable := b.cache != nil && !opts.NoCache && kerr == nil

	if kerr != nil && b.obs.logger != nil {
		// Non-canonicalizable payloads degrade to always-execute, not a failure.
		b.obs.logger.DebugContext(ctx, "query payload bypasses cache",
			"type", q.Type, "correlation_id", out.cid, "error", kerr.Error())
	}

	if cacheable {
		if v, hit := b.cache.Get(ctx, key); hit {
			out.data = v
			out.cacheHit = true

			return b.obs.finish(ctx, out)
		}
	}

	if cacheable {
		out.data, out.err = b.executeShared(ctx, key, h, q.Payload, b.ttlFor(opts))
	} else {
		out.data, out.err = runWithTimeout(ctx, b.timeout, func(ctx context.Context) (any, error) {
			return safeHandle(ctx, h, q.Payload)
		})
	}

	return b.obs.finish(ctx, out)
}

// executeShared coalesces concurrent identical misses into one handler
// invocation and populates the cache exactly once on success. The flight is
// detached from any single caller's cancellation: one caller giving up must
// not fail the others waiting on the same key. Each caller still stops
// waiting when its own context ends.
func (b *QueryBus) executeShared(
	ctx context.Context,
	key string,
	h cdsp.Handler,
	payload any,
	ttl time.Duration,
) (any, error) {
	flight := context.WithoutCancel(ctx)

	ch := b.group.DoChan(key, func() (any, error) {
		return runWithTimeout(flight, b.timeout, func(fctx context.Context) (any, error) {
			data, err := safeHandle(fctx, h, payload)
			if err != nil {
				return nil, err
			}

			if serr := b.cache.Set(fctx, key, data, ttl); serr != nil && b.obs.logger != nil {
				b.obs.logger.WarnContext(fctx, "query cache set failed", "key", key, "error", serr.Error())
			}

			return data, nil
		})
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("dispatch abandoned after deadline: %w", derr.ErrTimeout)
		}

		return nil, fmt.Errorf("dispatch abandoned: %w", errors.Join(derr.ErrExecutionFailed, ctx.Err()))
	}
}

func (b *QueryBus) ttlFor(opts cdsp.QueryOptions) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}

	if b.defaultTTL > 0 {
		return b.defaultTTL
	}

	return DefaultQueryTTL
}

// Invalidate removes the cache entry for one exact query, forcing the next
// identical dispatch to execute its handler.
func (b *QueryBus) Invalidate(ctx context.Context, q cdsp.Query) error {
	if b.cache == nil {
		return nil
	}

	key, err := CacheKey(q)
	if err != nil {
		return err
	}

	return b.cache.Invalidate(ctx, key)
}

// InvalidateType removes every cache entry produced by one query type.
func (b *QueryBus) InvalidateType(ctx context.Context, queryType string) (int, error) {
	if b.cache == nil {
		return 0, nil
	}

	return b.cache.InvalidateMatching(ctx, queryKeyPrefix+queryType+":*")
}

// InvalidateMatching removes every cache entry whose key matches the
// glob-style pattern.
func (b *QueryBus) InvalidateMatching(ctx context.Context, pattern string) (int, error) {
	if b.cache == nil {
		return 0, nil
	}

	return b.cache.InvalidateMatching(ctx, pattern)
}

// CacheKey derives the deterministic cache key for a query. Payloads are
// canonicalized through JSON (map keys are emitted sorted) and hashed, so
// structurally equal payloads share a key without naive string drift.
// Payloads that cannot be serialized report ErrSerializationFailed and the
// query bus degrades to always-execute for them.
func CacheKey(q cdsp.Query) (string, error) {
	body, err := json.Marshal(q.Payload)
	if err != nil {
		return "", fmt.Errorf("cache key for %s: %w", q.Type, errors.Join(derr.ErrSerializationFailed, err))
	}

	sum := xxhash.Sum64(body)

	return queryKeyPrefix + q.Type + ":" + strconv.FormatUint(sum, 16), nil
}
