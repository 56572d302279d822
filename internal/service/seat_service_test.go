package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	jujuerrors "github.com/juju/errors"
	"go.uber.org/goleak"

	"github.com/iliyamo/flight-seat-service/internal/actor"
	"github.com/iliyamo/flight-seat-service/internal/database"
	"github.com/iliyamo/flight-seat-service/internal/model"
	q "github.com/iliyamo/flight-seat-service/internal/queue"
	"github.com/iliyamo/flight-seat-service/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []q.SeatEvent
	err    error
}

func (p *recordingPublisher) PublishSeatEvent(_ context.Context, ev q.SeatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func newTestService(c *qt.C, minSeats, maxSeats int, events EventPublisher, clk clock.Clock) *SeatService {
	reg, err := actor.NewRegistry(actor.RegistryConfig{
		OpenStore: actor.MemoryStoreOpener(),
		Clock:     clock.WallClock,
	})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		reg.Kill()
		c.Check(reg.Wait(), qt.IsNil)
	})
	layout, err := NewLayoutPolicy(minSeats, maxSeats, rand.NewPCG(7, 11))
	c.Assert(err, qt.IsNil)
	return NewSeatService(reg, layout, events, clk)
}

func TestAvailableBootstrapsUnknownFlight(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c, 15, 15, nil, nil)
	ctx := context.Background()

	ids, err := svc.Available(ctx, "BA117")
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 15)
	c.Assert(ids[0], qt.Equals, model.SeatID("1A"))
	c.Assert(ids[14], qt.Equals, model.SeatID("3C"))

	// bootstrapped once: taking a seat is visible on the next listing
	c.Assert(svc.Assign(ctx, "BA117", "2B", "alice"), qt.IsNil)
	ids, err = svc.Available(ctx, "BA117")
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 14)
}

func TestConcurrentFirstListingsShareOneLayout(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c, 6, 300, nil, nil)
	ctx := context.Background()

	const n = 10
	results := make([][]model.SeatID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids, err := svc.Available(ctx, "DL8")
			c.Check(err, qt.IsNil)
			results[i] = ids
		}(i)
	}
	wg.Wait()
	for _, ids := range results {
		c.Assert(ids, qt.DeepEquals, results[0])
	}
}

func TestFullyBookedFlightIsNotBootstrapped(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c, 30, 30, nil, nil)
	ctx := context.Background()

	c.Assert(svc.Initialize(ctx, "EK1", []model.SeatSeed{{SeatID: "1A"}}), qt.IsNil)
	c.Assert(svc.Assign(ctx, "EK1", "1A", "alice"), qt.IsNil)

	ids, err := svc.Available(ctx, "EK1")
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 0)

	rows, err := svc.SeatMap(ctx, "EK1")
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.DeepEquals, []model.SeatRow{{SeatID: "1A", Occupant: "alice"}})
}

func TestSeatMapBootstraps(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c, 4, 4, nil, nil)

	rows, err := svc.SeatMap(context.Background(), "AA10")
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.DeepEquals, []model.SeatRow{
		{SeatID: "1A"}, {SeatID: "1B"}, {SeatID: "1C"}, {SeatID: "1D"},
	})
}

func TestAssignOnUninitializedFlight(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c, 4, 4, nil, nil)

	err := svc.Assign(context.Background(), "AA11", "1A", "alice")
	c.Assert(jujuerrors.Is(err, database.ErrStorageUninitialized), qt.IsTrue)
}

func TestSeatChangesArePublished(t *testing.T) {
	c := qt.New(t)
	pub := &recordingPublisher{}
	clk := testclock.NewClock(time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC))
	svc := newTestService(c, 6, 6, pub, clk)
	ctx := context.Background()

	_, err := svc.Available(ctx, "SQ21")
	c.Assert(err, qt.IsNil)
	c.Assert(svc.Assign(ctx, "SQ21", "1C", "bob"), qt.IsNil)
	c.Assert(svc.Assign(ctx, "SQ21", "1E", "bob"), qt.IsNil)
	c.Assert(svc.Release(ctx, "SQ21", "1E", "bob"), qt.IsNil)

	// failures publish nothing
	err = svc.Release(ctx, "SQ21", "1C", "bob")
	c.Assert(jujuerrors.Is(err, repository.ErrNotOccupant), qt.IsTrue)

	at := "2026-10-19T08:30:00Z"
	c.Assert(pub.events, qt.DeepEquals, []q.SeatEvent{
		{Type: q.SeatAssigned, Flight: "SQ21", Seat: "1C", Occupant: "bob", OccurredAt: at},
		// moving to 1E gives up 1C
		{Type: q.SeatReleased, Flight: "SQ21", Seat: "1C", Occupant: "bob", OccurredAt: at},
		{Type: q.SeatAssigned, Flight: "SQ21", Seat: "1E", Occupant: "bob", OccurredAt: at},
		{Type: q.SeatReleased, Flight: "SQ21", Seat: "1E", Occupant: "bob", OccurredAt: at},
	})
}

func TestPublishFailureDoesNotFailAssign(t *testing.T) {
	c := qt.New(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(c, 6, 6, pub, nil)
	ctx := context.Background()

	_, err := svc.Available(ctx, "NZ1")
	c.Assert(err, qt.IsNil)
	c.Assert(svc.Assign(ctx, "NZ1", "1A", "carol"), qt.IsNil)
	c.Assert(pub.events, qt.HasLen, 1)
}
