package database

import (
	"context"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
)

func openMemory(c *qt.C) *Store {
	s, err := Open(MemoryPath)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = s.Close() })
	return s
}

func TestQueryMissingTableIsUninitialized(t *testing.T) {
	c := qt.New(t)
	s := openMemory(c)

	_, err := s.Query(context.Background(), `SELECT seatId FROM seats`)
	c.Assert(errors.Is(err, ErrStorageUninitialized), qt.IsTrue, qt.Commentf("got %v", err))
}

func TestCursorYieldsRowsByColumnName(t *testing.T) {
	c := qt.New(t)
	s := openMemory(c)
	ctx := context.Background()

	_, err := s.Exec(ctx, `CREATE TABLE IF NOT EXISTS t (k TEXT PRIMARY KEY, v TEXT)`)
	c.Assert(err, qt.IsNil)
	// idempotent
	_, err = s.Exec(ctx, `CREATE TABLE IF NOT EXISTS t (k TEXT PRIMARY KEY, v TEXT)`)
	c.Assert(err, qt.IsNil)

	n, err := s.Exec(ctx, `INSERT INTO t (k, v) VALUES (?, ?), (?, NULL)`, "a", "x", "b")
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(2))

	cur, err := s.Query(ctx, `SELECT k, v FROM t ORDER BY k`)
	c.Assert(err, qt.IsNil)
	rows, err := cur.All()
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.DeepEquals, []Row{
		{"k": "a", "v": "x"},
		{"k": "b", "v": nil},
	})

	// exhausted cursors stay exhausted
	c.Assert(cur.Next(), qt.IsFalse)
}

func TestDuplicateKeyIsConstraintViolation(t *testing.T) {
	c := qt.New(t)
	s := openMemory(c)
	ctx := context.Background()

	_, err := s.Exec(ctx, `CREATE TABLE t (k TEXT PRIMARY KEY)`)
	c.Assert(err, qt.IsNil)
	_, err = s.Exec(ctx, `INSERT INTO t (k) VALUES (?)`, "a")
	c.Assert(err, qt.IsNil)
	_, err = s.Exec(ctx, `INSERT INTO t (k) VALUES (?)`, "a")
	c.Assert(errors.Is(err, ErrConstraintViolation), qt.IsTrue, qt.Commentf("got %v", err))
}

func TestAtomicRollsBackOnError(t *testing.T) {
	c := qt.New(t)
	s := openMemory(c)
	ctx := context.Background()

	_, err := s.Exec(ctx, `CREATE TABLE t (k TEXT PRIMARY KEY)`)
	c.Assert(err, qt.IsNil)

	err = s.Atomic(ctx, func(tx Executor) error {
		if _, err := tx.Exec(ctx, `INSERT INTO t (k) VALUES (?)`, "a"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO t (k) VALUES (?)`, "a")
		return err
	})
	c.Assert(errors.Is(err, ErrConstraintViolation), qt.IsTrue)

	cur, err := s.Query(ctx, `SELECT k FROM t`)
	c.Assert(err, qt.IsNil)
	rows, err := cur.All()
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.HasLen, 0)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	path := filepath.Join(c.TempDir(), "nested", "actor.db")

	s, err := Open(path)
	c.Assert(err, qt.IsNil)
	_, err = s.Exec(ctx, `CREATE TABLE t (k TEXT PRIMARY KEY)`)
	c.Assert(err, qt.IsNil)
	_, err = s.Exec(ctx, `INSERT INTO t (k) VALUES (?)`, "kept")
	c.Assert(err, qt.IsNil)
	c.Assert(s.Close(), qt.IsNil)

	s, err = Open(path)
	c.Assert(err, qt.IsNil)
	defer s.Close()
	cur, err := s.Query(ctx, `SELECT k FROM t`)
	c.Assert(err, qt.IsNil)
	rows, err := cur.All()
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.DeepEquals, []Row{{"k": "kept"}})
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	c := qt.New(t)
	_, err := Open("  ")
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
}
