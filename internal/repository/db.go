// Package repository implements parameterized Postgres access for every
// entity in the data model. Each type exposes the minimal set of typed
// operations its services need — create, get by natural key, update a narrow
// field, list with a bounded limit — and never builds SQL by concatenation.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts over *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside an explicit transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner is implemented by *pgxpool.Pool: anything that can start a
// transaction for the begin/defer-rollback idiom used by rotate_key and the
// atomic meeting-creation insert.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction acquired from db, committing on a nil
// return and rolling back otherwise — including on panic, via defer.
func WithTx(ctx context.Context, db Beginner, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(tx)
	return err
}
