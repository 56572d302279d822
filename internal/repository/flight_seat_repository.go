package repository

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"github.com/iliyamo/flight-seat-service/internal/database"
	"github.com/iliyamo/flight-seat-service/internal/model"
)

// insertChunk bounds the number of rows per INSERT so a large layout stays
// under SQLite's bound-parameter limit.
const insertChunk = 500

// FlightSeatRepo issues the seats table statements against one flight's
// record store.
type FlightSeatRepo struct {
	ex database.Executor
}

// NewFlightSeatRepo binds a repo to the given executor, normally the
// actor's Store.
func NewFlightSeatRepo(ex database.Executor) *FlightSeatRepo {
	return &FlightSeatRepo{ex: ex}
}

// Tx returns a copy of the repo that runs its statements on tx.
func (r *FlightSeatRepo) Tx(tx database.Executor) *FlightSeatRepo {
	return &FlightSeatRepo{ex: tx}
}

// CreateTable creates the seats table and its occupant index when absent.
func (r *FlightSeatRepo) CreateTable(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS seats (
	               seatId   TEXT PRIMARY KEY,
	               occupant TEXT
	             )`
	if _, err := r.ex.Exec(ctx, ddl); err != nil {
		return errors.Annotate(err, "create seats table")
	}
	const idx = `CREATE INDEX IF NOT EXISTS seats_occupant ON seats (occupant)`
	if _, err := r.ex.Exec(ctx, idx); err != nil {
		return errors.Annotate(err, "create occupant index")
	}
	return nil
}

// Initialized reports whether the seats table exists.
func (r *FlightSeatRepo) Initialized(ctx context.Context) (bool, error) {
	cur, err := r.ex.Query(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'seats'`)
	if err != nil {
		return false, errors.Trace(err)
	}
	defer cur.Close()
	found := cur.Next()
	if err := cur.Err(); err != nil {
		return false, errors.Trace(err)
	}
	return found, nil
}

// CreateBulk inserts one free row per seed. A seat id that already exists,
// or appears twice in seeds, fails with database.ErrConstraintViolation.
func (r *FlightSeatRepo) CreateBulk(ctx context.Context, seeds []model.SeatSeed) error {
	for start := 0; start < len(seeds); start += insertChunk {
		end := min(start+insertChunk, len(seeds))
		batch := seeds[start:end]

		var q strings.Builder
		q.WriteString(`INSERT INTO seats (seatId, occupant) VALUES `)
		args := make([]any, 0, len(batch))
		for i, s := range batch {
			if i > 0 {
				q.WriteString(",")
			}
			q.WriteString("(?, NULL)")
			args = append(args, string(s.SeatID))
		}
		if _, err := r.ex.Exec(ctx, q.String(), args...); err != nil {
			return errors.Annotatef(err, "insert seats %s..%s", batch[0].SeatID, batch[len(batch)-1].SeatID)
		}
	}
	return nil
}

// FreeSeats opens a cursor over every unoccupied seat in insertion order.
// Rows carry a single "seatId" column.
func (r *FlightSeatRepo) FreeSeats(ctx context.Context) (*database.Cursor, error) {
	cur, err := r.ex.Query(ctx,
		`SELECT seatId FROM seats WHERE occupant IS NULL ORDER BY rowid`)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return cur, nil
}

// Get loads the row for id.
func (r *FlightSeatRepo) Get(ctx context.Context, id model.SeatID) (model.SeatRow, error) {
	cur, err := r.ex.Query(ctx,
		`SELECT seatId, occupant FROM seats WHERE seatId = ?`, string(id))
	if err != nil {
		return model.SeatRow{}, errors.Trace(err)
	}
	defer cur.Close()
	if !cur.Next() {
		if err := cur.Err(); err != nil {
			return model.SeatRow{}, errors.Trace(err)
		}
		return model.SeatRow{}, errors.Annotatef(ErrSeatNotFound, "seat %q", id)
	}
	row, err := model.DecodeSeatRow(cur.Row())
	if err != nil {
		return model.SeatRow{}, errors.Trace(err)
	}
	return row, nil
}

// AllSeats returns a cursor over every seat row in insertion order. Rows
// are returned raw so callers can decide what to do with ones that fail
// to decode.
func (r *FlightSeatRepo) AllSeats(ctx context.Context) (*database.Cursor, error) {
	cur, err := r.ex.Query(ctx, `SELECT seatId, occupant FROM seats ORDER BY rowid`)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return cur, nil
}

// HeldBy returns the seats currently held by occupant.
func (r *FlightSeatRepo) HeldBy(ctx context.Context, occupant model.Occupant) ([]model.SeatID, error) {
	cur, err := r.ex.Query(ctx,
		`SELECT seatId FROM seats WHERE occupant = ? ORDER BY rowid`, string(occupant))
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw, err := cur.All()
	if err != nil {
		return nil, errors.Trace(err)
	}
	out := make([]model.SeatID, 0, len(raw))
	for _, rr := range raw {
		if id, ok := rr["seatId"].(string); ok {
			out = append(out, model.SeatID(id))
		}
	}
	return out, nil
}

// Vacate clears occupant from every seat they hold and returns how many
// rows changed.
func (r *FlightSeatRepo) Vacate(ctx context.Context, occupant model.Occupant) (int64, error) {
	n, err := r.ex.Exec(ctx,
		`UPDATE seats SET occupant = NULL WHERE occupant = ?`, string(occupant))
	if err != nil {
		return 0, errors.Annotatef(err, "vacate seats of %q", occupant)
	}
	return n, nil
}

// SetOccupant writes occupant onto seat id.
func (r *FlightSeatRepo) SetOccupant(ctx context.Context, id model.SeatID, occupant model.Occupant) error {
	n, err := r.ex.Exec(ctx,
		`UPDATE seats SET occupant = ? WHERE seatId = ?`, string(occupant), string(id))
	if err != nil {
		return errors.Annotatef(err, "assign seat %q", id)
	}
	if n == 0 {
		return errors.Annotatef(ErrSeatNotFound, "seat %q", id)
	}
	return nil
}

// Clear frees seat id.
func (r *FlightSeatRepo) Clear(ctx context.Context, id model.SeatID) error {
	n, err := r.ex.Exec(ctx, `UPDATE seats SET occupant = NULL WHERE seatId = ?`, string(id))
	if err != nil {
		return errors.Annotatef(err, "clear seat %q", id)
	}
	if n == 0 {
		return errors.Annotatef(ErrSeatNotFound, "seat %q", id)
	}
	return nil
}
