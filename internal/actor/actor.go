// Package actor implements the single-writer execution unit that owns one
// flight's seat table, and the registry that addresses those units by
// flight name.
//
// Every operation on an Actor is a closure handed to the actor's own
// goroutine through an unbuffered mailbox. The goroutine runs one closure to
// completion, including its durable writes, before it receives the next, so
// a check-then-write sequence inside one operation can never interleave with
// another operation on the same flight. Different flights have different
// actors and run independently.
package actor

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/tomb.v2"

	"github.com/iliyamo/flight-seat-service/internal/database"
	"github.com/iliyamo/flight-seat-service/internal/model"
	"github.com/iliyamo/flight-seat-service/internal/repository"
)

var logger = loggo.GetLogger("flightseats.actor")

// ErrActorStopped is returned by calls made after the actor was killed.
// The call never reached the mailbox, so retrying it on a fresh actor is
// safe.
const ErrActorStopped = errors.ConstError("actor stopped")

// SelfAssignMode decides what assigning a seat to the occupant who already
// holds it does.
type SelfAssignMode int

const (
	// SelfAssignNoop returns success without touching storage.
	SelfAssignNoop SelfAssignMode = iota

	// SelfAssignRewrite runs the full reseat: vacate, then occupy the same
	// seat again. The resulting state is identical.
	SelfAssignRewrite
)

// ParseSelfAssignMode maps "noop" (or "") and "rewrite" onto a mode.
func ParseSelfAssignMode(s string) (SelfAssignMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "noop":
		return SelfAssignNoop, nil
	case "rewrite":
		return SelfAssignRewrite, nil
	}
	return 0, errors.NotValidf("self-assign mode %q", s)
}

// Config holds the dependencies of an Actor.
type Config struct {
	// ID is the stable identity derived from Name.
	ID ID

	// Name is the external flight name, used for logging.
	Name string

	// Store is handed over to the actor, which closes it when it stops.
	// Nothing else may use it afterwards.
	Store database.RecordStore

	// Clock stamps activity for idle passivation.
	Clock clock.Clock

	SelfAssign SelfAssignMode
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.NotValidf("empty actor ID")
	}
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

type request struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// Actor is the exclusive owner of one flight's seat state.
type Actor struct {
	tomb tomb.Tomb

	cfg     Config
	seats   *repository.FlightSeatRepo
	mailbox chan request

	lastActive atomic.Int64
	pending    atomic.Int32
}

// NewActor starts an actor that owns cfg.Store.
func NewActor(cfg Config) (*Actor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	a := &Actor{
		cfg:     cfg,
		seats:   repository.NewFlightSeatRepo(cfg.Store),
		mailbox: make(chan request),
	}
	a.touch()
	a.tomb.Go(a.loop)
	return a, nil
}

// ID returns the actor's identity.
func (a *Actor) ID() ID { return a.cfg.ID }

// Name returns the flight name the actor was addressed by.
func (a *Actor) Name() string { return a.cfg.Name }

// Kill asks the actor to stop once the operation in flight, if any, has
// completed.
func (a *Actor) Kill() { a.tomb.Kill(nil) }

// Wait blocks until the actor has stopped and its store is closed.
func (a *Actor) Wait() error { return a.tomb.Wait() }

func (a *Actor) loop() error {
	defer func() {
		if err := a.cfg.Store.Close(); err != nil {
			logger.Warningf("flight %q: closing store: %v", a.cfg.Name, err)
		}
		logger.Debugf("flight %q (%s) stopped", a.cfg.Name, a.cfg.ID)
	}()
	for {
		select {
		case <-a.tomb.Dying():
			return tomb.ErrDying
		case req := <-a.mailbox:
			req.done <- req.run(req.ctx)
			a.touch()
		}
	}
}

// call runs fn on the actor goroutine and returns its result. ctx only
// bounds the wait for a mailbox slot: once the actor accepts fn it runs to
// completion and call waits for it.
func (a *Actor) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	a.pending.Add(1)
	defer a.pending.Add(-1)

	req := request{
		ctx:  context.WithoutCancel(ctx),
		run:  fn,
		done: make(chan error, 1),
	}
	select {
	case a.mailbox <- req:
	case <-a.tomb.Dying():
		return errors.Annotatef(ErrActorStopped, "flight %q", a.cfg.Name)
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
	return <-req.done
}

func (a *Actor) touch() {
	a.lastActive.Store(a.cfg.Clock.Now().UnixNano())
}

// IdleFor reports how long the actor has had no calls, as of now. A busy
// actor is never idle.
func (a *Actor) IdleFor(now time.Time) time.Duration {
	if a.pending.Load() > 0 {
		return 0
	}
	return now.Sub(time.Unix(0, a.lastActive.Load()))
}

// Initialize creates the seats table if needed and inserts one free row per
// seed, all in one transaction. Duplicate seat ids, within seeds or against
// existing rows, fail with database.ErrConstraintViolation and leave the
// store unchanged.
func (a *Actor) Initialize(ctx context.Context, seeds []model.SeatSeed) error {
	if err := validateSeeds(seeds); err != nil {
		return errors.Trace(err)
	}
	return a.call(ctx, func(ctx context.Context) error {
		return a.cfg.Store.Atomic(ctx, func(tx database.Executor) error {
			return a.initialize(ctx, a.seats.Tx(tx), seeds)
		})
	})
}

// Bootstrap initializes the flight with seeds unless it is already
// initialized. The check and the write happen in the same turn, so
// concurrent bootstraps of one flight apply exactly one layout. It reports
// whether seeds were applied.
func (a *Actor) Bootstrap(ctx context.Context, seeds []model.SeatSeed) (bool, error) {
	if err := validateSeeds(seeds); err != nil {
		return false, errors.Trace(err)
	}
	var applied bool
	err := a.call(ctx, func(ctx context.Context) error {
		return a.cfg.Store.Atomic(ctx, func(tx database.Executor) error {
			seats := a.seats.Tx(tx)
			ok, err := seats.Initialized(ctx)
			if err != nil || ok {
				return err
			}
			if err := a.initialize(ctx, seats, seeds); err != nil {
				return err
			}
			applied = true
			return nil
		})
	})
	return applied, errors.Trace(err)
}

func (a *Actor) initialize(ctx context.Context, seats *repository.FlightSeatRepo, seeds []model.SeatSeed) error {
	if err := seats.CreateTable(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := seats.CreateBulk(ctx, seeds); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("flight %q initialized with %d seats", a.cfg.Name, len(seeds))
	return nil
}

func validateSeeds(seeds []model.SeatSeed) error {
	if len(seeds) == 0 {
		return errors.NotValidf("empty seat list")
	}
	for _, s := range seeds {
		if !s.SeatID.Valid() {
			return errors.NotValidf("seat id %q", s.SeatID)
		}
	}
	return nil
}

// ListAvailable returns the ids of all free seats in insertion order. Rows
// that fail to decode are skipped rather than failing the listing. A flight
// that was never initialized fails with database.ErrStorageUninitialized.
func (a *Actor) ListAvailable(ctx context.Context) ([]model.SeatID, error) {
	out := []model.SeatID{}
	err := a.call(ctx, func(ctx context.Context) error {
		cur, err := a.seats.FreeSeats(ctx)
		if err != nil {
			return err
		}
		return a.decodeRows(cur, func(row model.SeatRow) {
			out = append(out, row.SeatID)
		})
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return out, nil
}

// Seats returns the whole seat map. Rows that fail to decode are skipped
// as in ListAvailable.
func (a *Actor) Seats(ctx context.Context) ([]model.SeatRow, error) {
	out := []model.SeatRow{}
	err := a.call(ctx, func(ctx context.Context) error {
		cur, err := a.seats.AllSeats(ctx)
		if err != nil {
			return err
		}
		return a.decodeRows(cur, func(row model.SeatRow) {
			out = append(out, row)
		})
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return out, nil
}

func (a *Actor) decodeRows(cur *database.Cursor, fn func(model.SeatRow)) error {
	defer cur.Close()
	for cur.Next() {
		row, err := model.DecodeSeatRow(cur.Row())
		if err != nil {
			logger.Debugf("flight %q: skipping seat row: %v", a.cfg.Name, err)
			continue
		}
		fn(row)
	}
	return cur.Err()
}

// Assign gives seatID to occupant. An occupant holds at most one seat, so
// any seat they held before is freed in the same transaction. It fails with
// repository.ErrSeatNotFound for an unknown seat and
// repository.ErrSeatOccupied when someone else holds it; on failure nothing
// changes.
func (a *Actor) Assign(ctx context.Context, seatID model.SeatID, occupant model.Occupant) error {
	_, err := a.Reseat(ctx, seatID, occupant)
	return err
}

// Reseat is Assign, also reporting the seats occupant gave up to take
// seatID. The list is empty for a first assignment and for a self-assign.
func (a *Actor) Reseat(ctx context.Context, seatID model.SeatID, occupant model.Occupant) ([]model.SeatID, error) {
	if occupant.Free() {
		return nil, errors.NotValidf("empty occupant")
	}
	var vacated []model.SeatID
	err := a.call(ctx, func(ctx context.Context) error {
		vacated = nil
		return a.cfg.Store.Atomic(ctx, func(tx database.Executor) error {
			seats := a.seats.Tx(tx)
			row, err := seats.Get(ctx, seatID)
			if err != nil {
				return err
			}
			if !row.Occupant.Free() {
				if row.Occupant != occupant {
					return errors.Annotatef(repository.ErrSeatOccupied, "seat %q", seatID)
				}
				if a.cfg.SelfAssign == SelfAssignNoop {
					return nil
				}
			}
			held, err := seats.HeldBy(ctx, occupant)
			if err != nil {
				return err
			}
			if _, err := seats.Vacate(ctx, occupant); err != nil {
				return err
			}
			if err := seats.SetOccupant(ctx, seatID, occupant); err != nil {
				return err
			}
			for _, id := range held {
				if id != seatID {
					vacated = append(vacated, id)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return vacated, nil
}

// Release frees seatID if occupant holds it, failing with
// repository.ErrNotOccupant otherwise.
func (a *Actor) Release(ctx context.Context, seatID model.SeatID, occupant model.Occupant) error {
	if occupant.Free() {
		return errors.NotValidf("empty occupant")
	}
	return a.call(ctx, func(ctx context.Context) error {
		return a.cfg.Store.Atomic(ctx, func(tx database.Executor) error {
			seats := a.seats.Tx(tx)
			row, err := seats.Get(ctx, seatID)
			if err != nil {
				return err
			}
			if row.Occupant != occupant {
				return errors.Annotatef(repository.ErrNotOccupant, "seat %q", seatID)
			}
			return seats.Clear(ctx, seatID)
		})
	})
}
