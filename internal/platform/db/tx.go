package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// commandTxOptions runs commands at ReadCommitted. A writer blocked on
// SELECT ... FOR UPDATE then sees the committed row once the lock is
// released, so state checks report the conflict, and concurrent
// ON CONFLICT upserts on one key merge instead of aborting with 40001.
var commandTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ TxBeginner = (*pgxpool.Pool)(nil)

// WithTx executes fn within one command transaction.
// Errors returned by fn are passed through untouched; begin and commit failures
// are classified as storage errors.
func WithTx(ctx context.Context, pool TxBeginner, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, commandTxOptions)
	if err != nil {
		return Classify(fmt.Errorf("platform/db: begin tx: %w", err))
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return Classify(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}
