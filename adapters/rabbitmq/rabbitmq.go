package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

const correlationHeader = "correlation-id"

type PubMsg struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

type Publisher interface {
	Publish(ctx context.Context, m PubMsg) error
}

// Sink implements dispatch.RecordSink over an injected Publisher.
type Sink struct {
	Publisher Publisher
	Exchange  string
}

var _ cdsp.RecordSink = (*Sink)(nil)

func New(p Publisher) *Sink { return &Sink{Publisher: p} }

func (s *Sink) Emit(ctx context.Context, r cdsp.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.Publisher == nil {
		return fmt.Errorf("rabbitmq emit: %w", derr.ErrSinkFailed)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("rabbitmq emit serialize: %w", errors.Join(derr.ErrSerializationFailed, err))
	}

	exchange := s.Exchange
	if exchange == "" {
		exchange = dispatchExchange
	}

	msg := PubMsg{
		Exchange:   exchange,
		RoutingKey: string(r.Kind) + "." + r.MessageType,
		Body:       body,
		Headers:    map[string]string{correlationHeader: r.CorrelationID},
	}

	if err := s.Publisher.Publish(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq emit publish: %w", errors.Join(derr.ErrSinkFailed, err))
	}

	return nil
}
