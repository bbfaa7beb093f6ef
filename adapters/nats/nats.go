package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

const defaultSubjectPrefix = "dispatch."

const correlationHeader = "correlation-id"

// Client is a minimal NATS-like publisher interface decoupled from any
// concrete library. Users can provide a wrapper around their NATS
// connection to satisfy this.
type Client interface {
	// Publish publishes a message to a subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error
}

// Sink implements dispatch.RecordSink over an injected NATS-like Client.
// Records land on "<prefix><kind>.<message type>" subjects.
type Sink struct {
	Client        Client
	SubjectPrefix string
}

// Ensure Sink implements the contract.
var _ cdsp.RecordSink = (*Sink)(nil)

// New creates a new NATS sink with the provided client.
func New(c Client) *Sink { return &Sink{Client: c} }

func (s *Sink) Emit(ctx context.Context, r cdsp.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.Client == nil {
		return fmt.Errorf("nats emit: %w", derr.ErrSinkFailed)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("nats emit serialize: %w", errors.Join(derr.ErrSerializationFailed, err))
	}

	headers := map[string]string{correlationHeader: r.CorrelationID}

	if err := s.Client.Publish(s.subjectFor(r), body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats emit publish: %w", errors.Join(derr.ErrSinkFailed, err))
	}

	return nil
}

func (s *Sink) subjectFor(r cdsp.Record) string {
	prefix := s.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	return prefix + string(r.Kind) + "." + r.MessageType
}
