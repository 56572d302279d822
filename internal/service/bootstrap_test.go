package service

import (
	"math/rand/v2"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"

	"github.com/iliyamo/flight-seat-service/internal/model"
)

func TestLayout(t *testing.T) {
	c := qt.New(t)
	seeds := Layout(8)
	var ids []model.SeatID
	for _, s := range seeds {
		c.Assert(s.SeatID.Valid(), qt.IsTrue)
		ids = append(ids, s.SeatID)
	}
	c.Assert(ids, qt.DeepEquals, []model.SeatID{"1A", "1B", "1C", "1D", "1E", "1F", "2A", "2B"})
	c.Assert(Layout(0), qt.HasLen, 0)
}

func TestLayoutPolicyStaysInRange(t *testing.T) {
	c := qt.New(t)
	p, err := NewLayoutPolicy(10, 20, rand.NewPCG(1, 2))
	c.Assert(err, qt.IsNil)
	for i := 0; i < 200; i++ {
		n := p.Capacity()
		c.Assert(n >= 10 && n <= 20, qt.IsTrue, qt.Commentf("capacity %d", n))
	}
	c.Assert(len(p.Generate()) >= 10, qt.IsTrue)
}

func TestLayoutPolicyFixedCapacity(t *testing.T) {
	c := qt.New(t)
	p, err := NewLayoutPolicy(12, 12, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Generate(), qt.HasLen, 12)
}

func TestLayoutPolicyValidates(t *testing.T) {
	c := qt.New(t)
	for _, bounds := range [][2]int{{0, 5}, {6, 5}, {1, maxRows*SeatsPerRow + 1}} {
		_, err := NewLayoutPolicy(bounds[0], bounds[1], nil)
		c.Check(errors.Is(err, errors.NotValid), qt.IsTrue, qt.Commentf("%v", bounds))
	}
}
