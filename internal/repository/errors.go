// Package repository holds the SQL for the seats table and the error kinds
// seat operations report. Handlers translate ErrSeatNotFound into 404 and
// ErrSeatOccupied / ErrNotOccupant into 409.
package repository

import "github.com/juju/errors"

const (
	// ErrSeatNotFound is returned when a seat id has no row.
	ErrSeatNotFound = errors.ConstError("seat not found")

	// ErrSeatOccupied is returned when assigning a seat that another
	// occupant already holds.
	ErrSeatOccupied = errors.ConstError("seat occupied")

	// ErrNotOccupant is returned when releasing a seat the caller does not
	// hold.
	ErrNotOccupant = errors.ConstError("seat not held by occupant")
)
