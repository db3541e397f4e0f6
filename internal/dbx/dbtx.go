// Package dbx holds the transaction plumbing of the PostgreSQL record store.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is implemented by *sql.DB, *sql.Tx and *Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is the handle WithTx passes to its callback.
type Tx struct {
	DBTX
	afterCommit []func(context.Context)
}

// AfterCommit queues fn to run once the transaction has committed. Nothing
// queued runs if the transaction rolls back.
func (t *Tx) AfterCommit(fn func(ctx context.Context)) {
	t.afterCommit = append(t.afterCommit, fn)
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back when fn fails or panics; a panic is re-raised after rollback.
// AfterCommit hooks run in order after a successful commit.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx *dbx.Tx) error {
//	    if _, err := tx.ExecContext(ctx, "UPDATE records SET ..."); err != nil {
//	        return err
//	    }
//	    tx.AfterCommit(func(ctx context.Context) { notify(ctx) })
//	    return nil
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx *Tx) error) (err error) {
	sqlTx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{DBTX: sqlTx}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if err = sqlTx.Commit(); err != nil {
			err = fmt.Errorf("commit tx: %w", err)
			return
		}
		for _, hook := range tx.afterCommit {
			hook(ctx)
		}
	}()

	return fn(ctx, tx)
}
