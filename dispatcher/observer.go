package dispatcher

import (
	"context"
	"log/slog"
	"time"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
)

// observer turns the outcome of one dispatch into the uniform envelope and
// fans it out to the optional logger and record sink. Both buses share it.
type observer struct {
	clock  cdsp.Clock
	sink   cdsp.RecordSink
	logger *slog.Logger
}

type outcome struct {
	kind     cdsp.Kind
	msgType  string
	cid      string
	start    time.Time
	data     any
	err      error
	cacheHit bool
}

func (o observer) finish(ctx context.Context, out outcome) cdsp.ExecutionResult {
	elapsed := o.clock.Now().Sub(out.start)
	if elapsed < 0 {
		elapsed = 0
	}

	res := cdsp.ExecutionResult{CorrelationID: out.cid, ExecutionTime: elapsed}
	if out.err != nil {
		res.Error = out.err.Error()
	} else {
		res.Success = true
		res.Data = out.data
	}

	o.log(ctx, out, res)
	o.emit(ctx, out, res, elapsed)

	return res
}

func (o observer) log(ctx context.Context, out outcome, res cdsp.ExecutionResult) {
	if o.logger == nil {
		return
	}

	attrs := []any{
		"kind", string(out.kind),
		"type", out.msgType,
		"correlation_id", out.cid,
		"elapsed", res.ExecutionTime,
	}

	if out.kind == cdsp.KindQuery {
		attrs = append(attrs, "cache_hit", out.cacheHit)
	}

	if res.Success {
		o.logger.InfoContext(ctx, "dispatch completed", attrs...)
		return
	}

	o.logger.ErrorContext(ctx, "dispatch failed", append(attrs, "error", res.Error)...)
}

// emit delivers the record best-effort. A sink failure is logged and dropped;
// the envelope already belongs to the caller.
func (o observer) emit(ctx context.Context, out outcome, res cdsp.ExecutionResult, elapsed time.Duration) {
	if o.sink == nil {
		return
	}

	rec := cdsp.Record{
		CorrelationID: out.cid,
		Kind:          out.kind,
		MessageType:   out.msgType,
		Success:       res.Success,
		Error:         res.Error,
		CacheHit:      out.cacheHit,
		ElapsedMs:     float64(elapsed) / float64(time.Millisecond),
		At:            out.start,
		Elapsed:       elapsed,
	}

	if err := o.sink.Emit(ctx, rec); err != nil && o.logger != nil {
		o.logger.WarnContext(ctx, "record sink emit failed",
			"correlation_id", out.cid, "error", err)
	}
}
