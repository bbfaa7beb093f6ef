package dispatch

import (
	"context"
	"time"
)

// Kind distinguishes the two dispatch paths in records and sink routing.
type Kind string

const (
	KindCommand Kind = "command"
	KindQuery   Kind = "query"
)

// Record describes one completed dispatch for observability sinks.
// It carries everything needed to trace the dispatch across systems.
type Record struct {
	CorrelationID string        `json:"correlation_id"`
	Kind          Kind          `json:"kind"`
	MessageType   string        `json:"message_type"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	CacheHit      bool          `json:"cache_hit,omitempty"`
	ElapsedMs     float64       `json:"elapsed_ms"`
	At            time.Time     `json:"at"`
	Elapsed       time.Duration `json:"-"`
}

// RecordSink receives dispatch records. Sink failures never fail the dispatch
// that produced the record; buses log and drop them.
// Implementations must be safe for concurrent use.
type RecordSink interface {
	Emit(ctx context.Context, r Record) error
}

// NopRecordSink drops every record. Useful when observability is disabled.
type NopRecordSink struct{}

func (NopRecordSink) Emit(ctx context.Context, r Record) error {
	_ = ctx
	_ = r

	return nil
}
