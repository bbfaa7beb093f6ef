package inmemory

import (
	"context"
	"sync"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
)

// Sink is a thread-safe in-memory implementation of dispatch.RecordSink.
// It retains emitted records for testing and examples.
type Sink struct {
	mu      sync.Mutex
	records []cdsp.Record
}

// Ensure Sink implements the contract.
var _ cdsp.RecordSink = (*Sink)(nil)

// New creates a new in-memory sink instance.
func New() *Sink { return &Sink{} }

func (s *Sink) Emit(ctx context.Context, r cdsp.Record) error {
	_ = ctx

	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()

	return nil
}

// Records returns a snapshot of everything emitted so far.
func (s *Sink) Records() []cdsp.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]cdsp.Record(nil), s.records...)
}

// Len reports how many records were emitted.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}
