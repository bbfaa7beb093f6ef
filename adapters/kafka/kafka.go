package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

const defaultTopicPrefix = "dispatch."

const correlationHeader = "correlation-id"

// Writer is a minimal Kafka-like writer interface.
// Users can adapt franz-go, segmentio/kafka-go, or any other client to this.
type Writer interface {
	Write(topic string, key, value []byte, headers map[string]string) error
}

// Sink implements dispatch.RecordSink over an injected Writer. Records land
// on "<prefix><kind>" topics keyed by message type, so one partition keeps
// per-type order.
type Sink struct {
	Writer      Writer
	TopicPrefix string
}

var _ cdsp.RecordSink = (*Sink)(nil)

// New creates a new Kafka sink with the provided writer.
func New(w Writer) *Sink { return &Sink{Writer: w} }

func (s *Sink) Emit(ctx context.Context, r cdsp.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.Writer == nil {
		return fmt.Errorf("kafka emit: %w", derr.ErrSinkFailed)
	}

	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("kafka emit serialize: %w", errors.Join(derr.ErrSerializationFailed, err))
	}

	headers := map[string]string{correlationHeader: r.CorrelationID}

	if err := s.Writer.Write(s.topicFor(r), []byte(r.MessageType), val, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("kafka emit write: %w", errors.Join(derr.ErrSinkFailed, err))
	}

	return nil
}

func (s *Sink) topicFor(r cdsp.Record) string {
	prefix := s.TopicPrefix
	if prefix == "" {
		prefix = defaultTopicPrefix
	}

	return prefix + string(r.Kind)
}
