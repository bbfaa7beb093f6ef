package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

// safeHandle invokes the handler and converts a panic into an execution
// failure so no dispatch can crash the process.
func safeHandle(ctx context.Context, h cdsp.Handler, payload any) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("handler panic: %v: %w", r, derr.ErrExecutionFailed)
		}
	}()

	data, err = h.Handle(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("handler: %w", errors.Join(derr.ErrExecutionFailed, err))
	}

	return data, nil
}

// runWithTimeout bounds fn by d. On expiry the dispatch fails with
// ErrTimeout while fn keeps running; cancellation is cooperative through the
// derived context, since the bus does not own the handler's execution.
func runWithTimeout(
	ctx context.Context,
	d time.Duration,
	fn func(ctx context.Context) (any, error),
) (any, error) {
	if d <= 0 {
		return fn(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		data any
		err  error
	}

	done := make(chan result, 1)

	go func() {
		data, err := fn(tctx)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("dispatch timed out after %s: %w", d, derr.ErrTimeout)
		}

		return nil, tctx.Err()
	}
}
