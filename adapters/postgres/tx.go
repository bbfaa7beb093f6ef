package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

// Beginner begins pgx transactions. *pgxpool.Pool and *pgx.Conn satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager implements dispatch.TransactionManager over pgx transactions.
// The running transaction is carried on the effect's context so command
// handlers reach it via TxFrom and share the atomic scope; a failed effect
// rolls the transaction back, discarding its partial writes.
type TxManager struct {
	db Beginner
}

var _ cdsp.TransactionManager = (*TxManager)(nil)

// New wraps an existing pool or connection.
func New(db Beginner) *TxManager { return &TxManager{db: db} }

type txKey struct{}

// TxFrom returns the transaction carried by a context inside InTransaction.
func TxFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// InTransaction runs fn atomically. fn's error is propagated unchanged after
// rollback, never swallowed; commit and begin failures carry
// ErrTransactionFailed.
func (m *TxManager) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", errors.Join(derr.ErrTransactionFailed, err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", errors.Join(derr.ErrTransactionFailed, err))
	}

	return nil
}

// Config holds connection settings for NewWithPool.
type Config struct {
	URL         string
	ConnTimeout time.Duration
}

// NewWithPool dials Postgres, verifies the connection, and returns a
// TxManager and a cleanup that closes the pool.
func NewWithPool(ctx context.Context, cfg Config) (*TxManager, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: postgres url required", derr.ErrTransactionFailed)
	}

	if cfg.ConnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnTimeout)
		defer cancel()
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres pool: %w", errors.Join(derr.ErrTransactionFailed, err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", errors.Join(derr.ErrTransactionFailed, err))
	}

	cleanup := func() { pool.Close() }

	return New(pool), cleanup, nil
}
