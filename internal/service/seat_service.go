// Package service holds the flight-facing operations built on the seat
// actors: the bootstrap fallback for flights nobody initialized yet and
// publication of seat events.
package service

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/iliyamo/flight-seat-service/internal/actor"
	"github.com/iliyamo/flight-seat-service/internal/database"
	"github.com/iliyamo/flight-seat-service/internal/model"
	q "github.com/iliyamo/flight-seat-service/internal/queue"
)

var logger = loggo.GetLogger("flightseats.service")

// Flights routes a call to the actor owning a flight. *actor.Registry
// implements it.
type Flights interface {
	Do(ctx context.Context, name string, fn func(context.Context, *actor.Actor) error) error
}

// SeatService exposes per-flight seat operations to the request layer.
type SeatService struct {
	flights Flights
	layout  *LayoutPolicy
	events  EventPublisher
	clock   clock.Clock
}

// NewSeatService builds a SeatService. events may be nil to disable event
// publication.
func NewSeatService(flights Flights, layout *LayoutPolicy, events EventPublisher, clk clock.Clock) *SeatService {
	if clk == nil {
		clk = clock.WallClock
	}
	return &SeatService{flights: flights, layout: layout, events: events, clock: clk}
}

// Available lists the free seats of flight. A flight addressed for the
// first time gets a generated layout, after which the listing is retried
// once; a second failure is returned as is.
func (s *SeatService) Available(ctx context.Context, flight string) ([]model.SeatID, error) {
	var ids []model.SeatID
	err := s.flights.Do(ctx, flight, func(ctx context.Context, a *actor.Actor) error {
		var err error
		ids, err = a.ListAvailable(ctx)
		if !errors.Is(err, database.ErrStorageUninitialized) {
			return err
		}
		if err := s.bootstrap(ctx, flight, a); err != nil {
			return err
		}
		ids, err = a.ListAvailable(ctx)
		return err
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ids, nil
}

// SeatMap returns every seat of flight with its occupant, bootstrapping the
// flight like Available does.
func (s *SeatService) SeatMap(ctx context.Context, flight string) ([]model.SeatRow, error) {
	var rows []model.SeatRow
	err := s.flights.Do(ctx, flight, func(ctx context.Context, a *actor.Actor) error {
		var err error
		rows, err = a.Seats(ctx)
		if !errors.Is(err, database.ErrStorageUninitialized) {
			return err
		}
		if err := s.bootstrap(ctx, flight, a); err != nil {
			return err
		}
		rows, err = a.Seats(ctx)
		return err
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return rows, nil
}

func (s *SeatService) bootstrap(ctx context.Context, flight string, a *actor.Actor) error {
	seeds := s.layout.Generate()
	applied, err := a.Bootstrap(ctx, seeds)
	if err != nil {
		return errors.Annotatef(err, "bootstrapping flight %q", flight)
	}
	if applied {
		logger.Infof("flight %q bootstrapped with generated layout of %d seats", flight, len(seeds))
	}
	return nil
}

// Initialize sets up flight with an explicit seat list.
func (s *SeatService) Initialize(ctx context.Context, flight string, seeds []model.SeatSeed) error {
	return errors.Trace(s.flights.Do(ctx, flight, func(ctx context.Context, a *actor.Actor) error {
		return a.Initialize(ctx, seeds)
	}))
}

// Assign gives seat to occupant on flight, moving them off any seat they
// held before. A seat.released event goes out for each seat given up,
// followed by seat.assigned for the new one.
func (s *SeatService) Assign(ctx context.Context, flight string, seat model.SeatID, occupant model.Occupant) error {
	var vacated []model.SeatID
	err := s.flights.Do(ctx, flight, func(ctx context.Context, a *actor.Actor) error {
		var err error
		vacated, err = a.Reseat(ctx, seat, occupant)
		return err
	})
	if err != nil {
		return errors.Trace(err)
	}
	for _, old := range vacated {
		s.publish(ctx, q.SeatReleased, flight, old, occupant)
	}
	s.publish(ctx, q.SeatAssigned, flight, seat, occupant)
	return nil
}

// Release frees seat on flight if occupant holds it, and publishes a
// seat.released event.
func (s *SeatService) Release(ctx context.Context, flight string, seat model.SeatID, occupant model.Occupant) error {
	err := s.flights.Do(ctx, flight, func(ctx context.Context, a *actor.Actor) error {
		return a.Release(ctx, seat, occupant)
	})
	if err != nil {
		return errors.Trace(err)
	}
	s.publish(ctx, q.SeatReleased, flight, seat, occupant)
	return nil
}

// publish is best effort: the seat change is already durable.
func (s *SeatService) publish(ctx context.Context, typ, flight string, seat model.SeatID, occupant model.Occupant) {
	if s.events == nil {
		return
	}
	ev := q.SeatEvent{
		Type:       typ,
		Flight:     flight,
		Seat:       string(seat),
		Occupant:   string(occupant),
		OccurredAt: s.clock.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishSeatEvent(ctx, ev); err != nil {
		logger.Warningf("flight %q: publishing %s for seat %s: %v", flight, typ, seat, err)
	}
}
