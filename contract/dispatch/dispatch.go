package dispatch

import "context"

// Dispatcher is the minimal, tech-agnostic surface of the dispatch facade.
// It mirrors the concrete dispatcher while remaining non-generic so consumers
// can depend only on contracts. Typed helpers live in the dispatcher package.
type Dispatcher interface {
	// Registration. Duplicate registration for a type name fails with
	// ErrHandlerExists; registration errors are raised synchronously because
	// they are configuration mistakes, not request failures.
	RegisterCommandHandler(name string, h Handler) error
	RegisterQueryHandler(name string, h Handler, opts QueryOptions) error

	// Execution. Every dispatch returns an envelope; no error escapes.
	ExecuteCommand(ctx context.Context, cmd Command) ExecutionResult
	ExecuteQuery(ctx context.Context, q Query) ExecutionResult

	// Statistics reports registered types and cache counters.
	Statistics() Statistics
}

// Statistics aggregates operational counters over both buses.
type Statistics struct {
	CommandTypes []string
	QueryTypes   []string
	Cache        CacheStats
}
