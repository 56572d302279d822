package database

import (
	"strings"

	"github.com/juju/errors"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	// ErrStorageUninitialized is returned when a statement references a
	// table that has not been created yet.
	ErrStorageUninitialized = errors.ConstError("storage uninitialized")

	// ErrConstraintViolation is returned when a write breaks a primary key
	// or unique constraint.
	ErrConstraintViolation = errors.ConstError("constraint violation")
)

// classify maps driver errors onto the store's error kinds. Errors it does
// not recognise are traced and returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return errors.Annotate(ErrConstraintViolation, err.Error())
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such table"):
		return errors.Annotate(ErrStorageUninitialized, err.Error())
	case strings.Contains(msg, "unique constraint failed"):
		return errors.Annotate(ErrConstraintViolation, err.Error())
	}
	return errors.Trace(err)
}
