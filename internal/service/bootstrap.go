package service

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/juju/errors"

	"github.com/iliyamo/flight-seat-service/internal/model"
)

// SeatsPerRow is the width of a generated cabin row (A..F).
const SeatsPerRow = 6

// maxRows is the highest row number a SeatID can carry.
const maxRows = 9999

// Layout lays capacity seats out row by row, SeatsPerRow wide, starting at
// row 1: 1A 1B .. 1F 2A ... The last row may be partial.
func Layout(capacity int) []model.SeatSeed {
	seeds := make([]model.SeatSeed, 0, capacity)
	for i := 0; i < capacity; i++ {
		row := i/SeatsPerRow + 1
		col := rune('A' + i%SeatsPerRow)
		seeds = append(seeds, model.SeatSeed{SeatID: model.SeatID(fmt.Sprintf("%d%c", row, col))})
	}
	return seeds
}

// LayoutPolicy generates the default cabin for a flight that is addressed
// before anyone initialized it. Capacity is drawn uniformly from
// [MinSeats, MaxSeats].
type LayoutPolicy struct {
	MinSeats int
	MaxSeats int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLayoutPolicy returns a policy drawing capacities from src. A nil src
// uses a randomly seeded PCG.
func NewLayoutPolicy(minSeats, maxSeats int, src rand.Source) (*LayoutPolicy, error) {
	if minSeats < 1 {
		return nil, errors.NotValidf("minimum seats %d", minSeats)
	}
	if maxSeats < minSeats {
		return nil, errors.NotValidf("maximum seats %d below minimum %d", maxSeats, minSeats)
	}
	if maxSeats > maxRows*SeatsPerRow {
		return nil, errors.NotValidf("maximum seats %d", maxSeats)
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &LayoutPolicy{MinSeats: minSeats, MaxSeats: maxSeats, rng: rand.New(src)}, nil
}

// Capacity draws a seat count.
func (p *LayoutPolicy) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.MinSeats + p.rng.IntN(p.MaxSeats-p.MinSeats+1)
}

// Generate draws a capacity and lays it out.
func (p *LayoutPolicy) Generate() []model.SeatSeed {
	return Layout(p.Capacity())
}
