// Package database implements the durable record store owned by a single
// seat actor. A Store wraps one embedded SQLite database; statements run
// synchronously on the caller's goroutine and results are returned as lazy
// cursors of column-name keyed rows.
package database

import (
	"context"
	"database/sql"

	"github.com/juju/errors"
)

// Executor runs parameterized statements. Both a Store and the transaction
// handed to an Atomic callback satisfy it.
type Executor interface {
	// Exec runs a statement that produces no rows (DDL, INSERT, UPDATE) and
	// reports the number of rows it changed.
	Exec(ctx context.Context, stmt string, args ...any) (int64, error)

	// Query runs a statement that produces rows. The returned cursor must be
	// closed (or drained) before the next statement is issued.
	Query(ctx context.Context, stmt string, args ...any) (*Cursor, error)
}

// RecordStore is the storage contract consumed by an actor.
type RecordStore interface {
	Executor

	// Atomic runs fn inside a single transaction. Either every statement fn
	// issues is persisted or none is.
	Atomic(ctx context.Context, fn func(Executor) error) error

	// Close releases the underlying database handle.
	Close() error
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type conn struct {
	q queryer
}

func (c conn) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Trace(err)
	}
	return n, nil
}

func (c conn) Query(ctx context.Context, stmt string, args ...any) (*Cursor, error) {
	rows, err := c.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(err)
	}
	return newCursor(rows)
}

// Store is a SQLite backed RecordStore.
type Store struct {
	conn
	db *sql.DB
}

var _ RecordStore = (*Store)(nil)

// Atomic implements RecordStore.
func (s *Store) Atomic(ctx context.Context, fn func(Executor) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(conn{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Annotate(classify(err), "commit transaction")
	}
	committed = true
	return nil
}

// Close implements RecordStore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
