package dispatcher

import (
	"context"
	"fmt"
	"time"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

// CommandBus executes commands: resolve the single handler, run it inside
// the configured transactional boundary if any, and return the envelope.
// Failures are reported, never retried; re-dispatch is the caller's call.
type CommandBus struct {
	reg     *Registry
	obs     observer
	tx      cdsp.TransactionManager
	timeout time.Duration
}

// Execute dispatches one command and always returns an envelope; no error
// escapes past this boundary.
func (b *CommandBus) Execute(ctx context.Context, cmd cdsp.Command) cdsp.ExecutionResult {
	out := outcome{
		kind:    cdsp.KindCommand,
		msgType: cmd.Type,
		cid:     b.obs.clock.NewCorrelationID(),
		start:   b.obs.clock.Now(),
	}

	if cmd.Type == "" {
		out.err = fmt.Errorf("execute command: empty type: %w", derr.ErrInvalidMessage)
		return b.obs.finish(ctx, out)
	}

	h, ok := b.reg.Command(cmd.Type)
	if !ok {
		out.err = fmt.Errorf("execute %s: %w", cmd.Type, derr.ErrHandlerNotFound)
		return b.obs.finish(ctx, out)
	}

	out.data, out.err = runWithTimeout(ctx, b.timeout, func(ctx context.Context) (any, error) {
		return b.invoke(ctx, h, cmd.Payload)
	})

	return b.obs.finish(ctx, out)
}

// invoke runs the handler, inside the transaction manager's atomic scope
// when one is configured. A handler failure makes the manager discard any
// partial side effects it tracks.
func (b *CommandBus) invoke(ctx context.Context, h cdsp.Handler, payload any) (any, error) {
	if b.tx == nil {
		return safeHandle(ctx, h, payload)
	}

	var data any

	err := b.tx.InTransaction(ctx, func(ctx context.Context) error {
		var herr error
		data, herr = safeHandle(ctx, h, payload)

		return herr
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}
