package dispatcher_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	memcache "github.com/next-trace/scg-dispatch/cache/memory"
	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
	"github.com/next-trace/scg-dispatch/dispatcher"
)

func countingQueryHandler(calls *atomic.Int64, result any) cdsp.Handler {
	return cdsp.HandlerFunc(func(ctx context.Context, p any) (any, error) {
		calls.Add(1)
		return result, nil
	})
}

func Test_ExecuteQuery_MissThenHit(t *testing.T) {
	d, cache := newMemoryDispatcher()

	var calls atomic.Int64

	want := map[string]any{"id": "w1"}
	_ = d.RegisterQueryHandler("GetWidget", countingQueryHandler(&calls, want), cdsp.QueryOptions{TTL: 60 * time.Second})

	q := cdsp.Query{Type: "GetWidget", Payload: map[string]any{"id": "w1"}}

	first := d.ExecuteQuery(t.Context(), q)
	second := d.ExecuteQuery(t.Context(), q)

	if !first.Success || !second.Success {
		t.Fatalf("results: %+v / %+v", first, second)
	}

	if calls.Load() != 1 {
		t.Fatalf("handler calls=%d", calls.Load())
	}

	if !reflect.DeepEqual(first.Data, want) || !reflect.DeepEqual(second.Data, want) {
		t.Fatalf("data: %+v / %+v", first.Data, second.Data)
	}

	if first.CorrelationID == second.CorrelationID {
		t.Fatal("cache hit must carry a fresh correlation id")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("cache stats: %+v", stats)
	}
}

func Test_ExecuteQuery_DistinctPayloadsDistinctKeys(t *testing.T) {
	d, _ := newMemoryDispatcher()

	var calls atomic.Int64

	_ = d.RegisterQueryHandler("GetWidget", countingQueryHandler(&calls, "v"), cdsp.QueryOptions{})

	_ = d.ExecuteQuery(t.Context(), cdsp.Query{Type: "GetWidget", Payload: map[string]any{"id": "w1"}})
	_ = d.ExecuteQuery(t.Context(), cdsp.Query{Type: "GetWidget", Payload: map[string]any{"id": "w2"}})

	if calls.Load() != 2 {
		t.Fatalf("handler calls=%d", calls.Load())
	}
}

func Test_ExecuteQuery_InvalidateForcesOneReexecution(t *testing.T) {
	d, _ := newMemoryDispatcher()

	var calls atomic.Int64

	_ = d.RegisterQueryHandler("GetWidget", countingQueryHandler(&calls, "v"), cdsp.QueryOptions{})

	q := cdsp.Query{Type: "GetWidget", Payload: map[string]any{"id": "w1"}}

	_ = d.ExecuteQuery(t.Context(), q)

	if err := d.InvalidateQuery(t.Context(), q); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	_ = d.ExecuteQuery(t.Context(), q)
	_ = d.ExecuteQuery(t.Context(), q)

	if calls.Load() != 2 {
		t.Fatalf("handler calls=%d, want exactly one re-execution", calls.Load())
	}
}

func Test_ExecuteQuery_InvalidateType(t *testing.T) {
	d, _ := newMemoryDispatcher()

	var calls atomic.Int64

	_ = d.RegisterQueryHandler("GetWidget", countingQueryHandler(&calls, "v"), cdsp.QueryOptions{})
	_ = d.RegisterQueryHandler("ListWidgets", countingQueryHandler(&calls, "v"), cdsp.QueryOptions{})

	_ = d.ExecuteQuery(t.Context(), cdsp.Query{Type: "GetWidget", Payload: "a"})
	_ = d.ExecuteQuery(t.Context(), cdsp.Query{Type: "GetWidget", Payload: "b"})
	_ = d.ExecuteQuery(t.Context(), cdsp.Query{Type: "ListWidgets", Payload: "a"})

	removed, err := d.InvalidateQueryType(t.Context(), "GetWidget")
	if err != nil {
		t.Fatalf("invalidate type: %v", err)
	}

	if removed != 2 {
		t.Fatalf("removed=%d", removed)
	}

	// ListWidgets entries survive.
	_ = d.ExecuteQuery(t.Context(), cdsp.Query{Type: "ListWidgets", Payload: "a"})

	if calls.Load() != 3 {
		t.Fatalf("handler calls=%d", calls.Load())
	}
}

func Test_ExecuteQuery_FailuresNeverCached(t *testing.T) {
	d, cache := newMemoryDispatcher()

	var calls atomic.Int64

	_ = d.RegisterQueryHandler("Flaky", cdsp.HandlerFunc(func(ctx context.Context, p any) (any, error) {
		calls.Add(1)
		return nil, errors.New("read failed")
	}), cdsp.QueryOptions{})

	q := cdsp.Query{Type: "Flaky", Payload: "x"}

	first := d.ExecuteQuery(t.Context(), q)
	second := d.ExecuteQuery(t.Context(), q)

	if first.Success || second.Success {
		t.Fatal("expected failures")
	}

	if calls.Load() != 2 {
		t.Fatalf("handler calls=%d, failures must re-execute", calls.Load())
	}

	if stats := cache.Stats(); stats.Size != 0 {
		t.Fatalf("failure was cached: %+v", stats)
	}
}

func Test_ExecuteQuery_NonSerializablePayloadBypassesCache(t *testing.T) {
	d, cache := newMemoryDispatcher()

	var calls atomic.Int64

	_ = d.RegisterQueryHandler("Raw", countingQueryHandler(&calls, "v"), cdsp.QueryOptions{})

	// A channel cannot be canonicalized; the query degrades to always-execute.
	q := cdsp.Query{Type: "Raw", Payload: make(chan int)}

	first := d.ExecuteQuery(t.Context(), q)
	second := d.ExecuteQuery(t.Context(), q)

	if !first.Success || !second.Success {
		t.Fatalf("results: %+v / %+v", first, second)
	}

	if calls.Load() != 2 {
		t.Fatalf("handler calls=%d, bypass must execute fresh", calls.Load())
	}

	if stats := cache.Stats(); stats.Size != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Fatalf("cache touched on bypass: %+v", stats)
	}
}

func Test_ExecuteQuery_NoCacheOption(t *testing.T) {
	d, cache := newMemoryDispatcher()

	var calls atomic.Int64

	_ = d.RegisterQueryHandler("Fresh", countingQueryHandler(&calls, "v"), cdsp.QueryOptions{NoCache: true})

	q := cdsp.Query{Type: "Fresh", Payload: "x"}
	_ = d.ExecuteQuery(t.Context(), q)
	_ = d.ExecuteQuery(t.Context(), q)

	if calls.Load() != 2 {
		t.Fatalf("handler calls=%d", calls.Load())
	}

	if stats := cache.Stats(); stats.Size != 0 {
		t.Fatalf("NoCache type was cached: %+v", stats)
	}
}

func Test_ExecuteQuery_TTLExpiry(t *testing.T) {
	clk := newFakeClock()
	cache := memcache.NewWithNow(clk.Now)
	d := dispatcher.New(dispatcher.WithCache(cache), dispatcher.WithClock(clk))

	var calls atomic.Int64

	_ = d.RegisterQueryHandler("GetWidget", countingQueryHandler(&calls, "v"), cdsp.QueryOptions{TTL: 60 * time.Second})

	q := cdsp.Query{Type: "GetWidget", Payload: "w1"}

	_ = d.ExecuteQuery(t.Context(), q)

	clk.Advance(59 * time.Second)

	_ = d.ExecuteQuery(t.Context(), q) // still live

	clk.Advance(2 * time.Second)

	_ = d.ExecuteQuery(t.Context(), q) // expired, re-executes

	if calls.Load() != 2 {
		t.Fatalf("handler calls=%d", calls.Load())
	}
}

func Test_ExecuteQuery_HandlerNotFound(t *testing.T) {
	d, _ := newMemoryDispatcher()

	res := d.ExecuteQuery(t.Context(), cdsp.Query{Type: "Nope"})
	if res.Success || !strings.Contains(res.Error, derr.ErrCodeHandlerNotFound) {
		t.Fatalf("result: %+v", res)
	}

	if res.CorrelationID == "" {
		t.Fatal("empty correlation id")
	}
}

func Test_ExecuteQuery_ConcurrentIdenticalCoalesced(t *testing.T) {
	d, _ := newMemoryDispatcher()

	var calls atomic.Int64

	gate := make(chan struct{})
	_ = d.RegisterQueryHandler("Slow", cdsp.HandlerFunc(func(ctx context.Context, p any) (any, error) {
		calls.Add(1)
		<-gate

		return "v", nil
	}), cdsp.QueryOptions{})

	const n = 10

	var (
		wg      sync.WaitGroup
		results [n]cdsp.ExecutionResult
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i] = d.ExecuteQuery(context.Background(), cdsp.Query{Type: "Slow", Payload: "same"})
		}(i)
	}

	// Let the dispatches pile up on the in-flight execution, then release it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("handler calls=%d, concurrent identical queries must coalesce", calls.Load())
	}

	seen := make(map[string]bool)

	for i, res := range results {
		if !res.Success || res.Data != "v" {
			t.Fatalf("result %d: %+v", i, res)
		}

		if res.CorrelationID == "" || seen[res.CorrelationID] {
			t.Fatalf("result %d correlation id: %q", i, res.CorrelationID)
		}

		seen[res.CorrelationID] = true
	}
}

func Test_ExecuteQuery_CallerCancelDoesNotFailOthers(t *testing.T) {
	d, cache := newMemoryDispatcher()

	var calls atomic.Int64

	gate := make(chan struct{})
	_ = d.RegisterQueryHandler("Slow", cdsp.HandlerFunc(func(ctx context.Context, p any) (any, error) {
		calls.Add(1)
		<-gate

		return "v", nil
	}), cdsp.QueryOptions{})

	q := cdsp.Query{Type: "Slow", Payload: "same"}

	leaderCtx, cancel := context.WithCancel(context.Background())

	leaderDone := make(chan cdsp.ExecutionResult, 1)
	go func() { leaderDone <- d.ExecuteQuery(leaderCtx, q) }()

	// Let the first dispatch start its execution, then join it from a second
	// caller whose context stays live.
	time.Sleep(20 * time.Millisecond)

	followerDone := make(chan cdsp.ExecutionResult, 1)
	go func() { followerDone <- d.ExecuteQuery(context.Background(), q) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	leader := <-leaderDone
	if leader.Success || !strings.Contains(leader.Error, derr.ErrCodeExecutionFailed) {
		t.Fatalf("canceled caller: %+v", leader)
	}

	close(gate)

	follower := <-followerDone
	if !follower.Success || follower.Data != "v" {
		t.Fatalf("surviving caller: %+v", follower)
	}

	if calls.Load() != 1 {
		t.Fatalf("handler calls=%d", calls.Load())
	}

	// The execution outlived the canceled caller and still populated the cache.
	if res := d.ExecuteQuery(t.Context(), q); !res.Success {
		t.Fatalf("post-flight dispatch: %+v", res)
	}

	if stats := cache.Stats(); stats.Hits != 1 {
		t.Fatalf("cache stats: %+v", stats)
	}
}

func Test_CacheKey_DeterministicAcrossMapOrder(t *testing.T) {
	a, err := dispatcher.CacheKey(cdsp.Query{Type: "Get", Payload: map[string]any{"a": 1, "b": 2}})
	if err != nil {
		t.Fatalf("key: %v", err)
	}

	b, err := dispatcher.CacheKey(cdsp.Query{Type: "Get", Payload: map[string]any{"b": 2, "a": 1}})
	if err != nil {
		t.Fatalf("key: %v", err)
	}

	if a != b {
		t.Fatalf("keys differ: %s / %s", a, b)
	}

	c, _ := dispatcher.CacheKey(cdsp.Query{Type: "Other", Payload: map[string]any{"a": 1, "b": 2}})
	if a == c {
		t.Fatal("different types must not share keys")
	}

	if _, err := dispatcher.CacheKey(cdsp.Query{Type: "Get", Payload: make(chan int)}); !errors.Is(err, derr.ErrSerializationFailed) {
		t.Fatalf("want ErrSerializationFailed, got %v", err)
	}
}
