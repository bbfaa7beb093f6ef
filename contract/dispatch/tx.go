package dispatch

import "context"

// TransactionManager runs an effect atomically. A failed effect must see its
// tracked side effects discarded, and the effect's error must be propagated
// unchanged, never swallowed.
//
// Only command execution is wrapped; queries are read-only and never run
// inside a transaction.
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTransactionManager runs the effect directly without any atomic scope.
// Useful for tests and for callers that manage transactions elsewhere.
type NopTransactionManager struct{}

func (NopTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
