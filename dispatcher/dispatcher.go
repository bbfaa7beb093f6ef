package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

// Dispatcher composes the command and query buses behind one facade.
// Construct one instance and pass it by injection to call sites; isolated
// instances keep tests independent, there is no ambient process state.
type Dispatcher struct {
	reg      *Registry
	commands *CommandBus
	queries  *QueryBus
	cache    cdsp.Cache
}

// Option configures a Dispatcher instance.
type Option func(*config)

type config struct {
	clock      cdsp.Clock
	cache      cdsp.Cache
	tx         cdsp.TransactionManager
	sink       cdsp.RecordSink
	logger     *slog.Logger
	timeout    time.Duration
	defaultTTL time.Duration
}

// WithClock overrides the timestamp and correlation id source.
func WithClock(c cdsp.Clock) Option { return func(cfg *config) { cfg.clock = c } }

// WithCache sets the query result cache. Nil disables caching entirely.
func WithCache(c cdsp.Cache) Option { return func(cfg *config) { cfg.cache = c } }

// WithTransactionManager wraps every command execution in the manager's
// atomic scope. Queries are never wrapped.
func WithTransactionManager(tm cdsp.TransactionManager) Option {
	return func(cfg *config) { cfg.tx = tm }
}

// WithRecordSink emits a dispatch record per completed dispatch.
func WithRecordSink(s cdsp.RecordSink) Option { return func(cfg *config) { cfg.sink = s } }

// WithLogger sets the structured logger. Nil means silent.
func WithLogger(l *slog.Logger) Option { return func(cfg *config) { cfg.logger = l } }

// WithTimeout bounds every dispatch; expiry yields an ErrTimeout envelope.
// Zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(cfg *config) { cfg.timeout = d } }

// WithDefaultQueryTTL overrides DefaultQueryTTL for registrations that do
// not specify their own.
func WithDefaultQueryTTL(d time.Duration) Option { return func(cfg *config) { cfg.defaultTTL = d } }

// New constructs a Dispatcher. Without options it uses the system clock and
// runs commands without a transactional boundary; callers that want caching
// supply one via WithCache (see cache/memory for the in-process baseline).
func New(opts ...Option) *Dispatcher {
	cfg := config{clock: SystemClock()}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.clock == nil {
		cfg.clock = SystemClock()
	}

	reg := NewRegistry()
	obs := observer{clock: cfg.clock, sink: cfg.sink, logger: cfg.logger}

	return &Dispatcher{
		reg:   reg,
		cache: cfg.cache,
		commands: &CommandBus{
			reg:     reg,
			obs:     obs,
			tx:      cfg.tx,
			timeout: cfg.timeout,
		},
		queries: &QueryBus{
			reg:        reg,
			obs:        obs,
			cache:      cfg.cache,
			defaultTTL: cfg.defaultTTL,
			timeout:    cfg.timeout,
		},
	}
}

var _ cdsp.Dispatcher = (*Dispatcher)(nil)

// RegisterCommandHandler binds a command handler. Duplicate names fail with
// ErrHandlerExists.
func (d *Dispatcher) RegisterCommandHandler(name string, h cdsp.Handler) error {
	return d.reg.BindCommand(name, h)
}

// RegisterQueryHandler binds a query handler with caching options.
// Duplicate names fail with ErrHandlerExists.
func (d *Dispatcher) RegisterQueryHandler(name string, h cdsp.Handler, opts cdsp.QueryOptions) error {
	return d.reg.BindQuery(name, h, opts)
}

// ExecuteCommand dispatches a command through the command bus.
func (d *Dispatcher) ExecuteCommand(ctx context.Context, cmd cdsp.Command) cdsp.ExecutionResult {
	return d.commands.Execute(ctx, cmd)
}

// ExecuteQuery dispatches a query through the query bus.
func (d *Dispatcher) ExecuteQuery(ctx context.Context, q cdsp.Query) cdsp.ExecutionResult {
	return d.queries.Execute(ctx, q)
}

// Statistics reports registered type names and cache counters.
func (d *Dispatcher) Statistics() cdsp.Statistics {
	stats := cdsp.Statistics{
		CommandTypes: d.reg.CommandTypes(),
		QueryTypes:   d.reg.QueryTypes(),
	}

	if d.cache != nil {
		stats.Cache = d.cache.Stats()
	}

	return stats
}

// Commands exposes the command bus for direct use.
func (d *Dispatcher) Commands() *CommandBus { return d.commands }

// Queries exposes the query bus for direct use and cache invalidation.
func (d *Dispatcher) Queries() *QueryBus { return d.queries }

// InvalidateQuery removes the cached result of one exact query.
func (d *Dispatcher) InvalidateQuery(ctx context.Context, q cdsp.Query) error {
	return d.queries.Invalidate(ctx, q)
}

// InvalidateQueryType removes every cached result of one query type.
func (d *Dispatcher) InvalidateQueryType(ctx context.Context, queryType string) (int, error) {
	return d.queries.InvalidateType(ctx, queryType)
}

// RegisterCommand is a typed helper binding a handler that takes payloads of
// type P. A payload of another type fails the dispatch, not the process.
func RegisterCommand[P any](d *Dispatcher, name string, fn func(ctx context.Context, p P) (any, error)) error {
	return d.RegisterCommandHandler(name, typedHandler(name, fn))
}

// RegisterQuery is a typed helper binding a query handler for payloads of
// type P with caching options.
func RegisterQuery[P any](
	d *Dispatcher,
	name string,
	fn func(ctx context.Context, p P) (any, error),
	opts cdsp.QueryOptions,
) error {
	return d.RegisterQueryHandler(name, typedHandler(name, fn), opts)
}

func typedHandler[P any](name string, fn func(ctx context.Context, p P) (any, error)) cdsp.Handler { //nolint:ireturn
	return cdsp.HandlerFunc(func(ctx context.Context, payload any) (any, error) {
		p, ok := payload.(P)
		if !ok {
			return nil, fmt.Errorf("%s: payload %T: %w", name, payload, derr.ErrInvalidMessage)
		}

		return fn(ctx, p)
	})
}
