package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHandleMessageAppendsLine(t *testing.T) {
	c := qt.New(t)
	c.Patch(&SeatLogPath, filepath.Join(c.TempDir(), "logs", "seating.log"))

	for _, ev := range []SeatEvent{
		{Type: SeatAssigned, Flight: "BA117", Seat: "3C", Occupant: "alice", OccurredAt: "2026-10-19T10:00:00Z"},
		{Type: SeatReleased, Flight: "BA117", Seat: "3C", Occupant: "alice", OccurredAt: "2026-10-19T10:05:00Z"},
	} {
		body, err := json.Marshal(ev)
		c.Assert(err, qt.IsNil)
		c.Assert(HandleMessage(body), qt.IsNil)
	}

	got, err := os.ReadFile(SeatLogPath)
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals,
		"[2026-10-19T10:00:00Z] seat.assigned | flight=\"BA117\" | seat=3C | occupant=\"alice\"\n"+
			"[2026-10-19T10:05:00Z] seat.released | flight=\"BA117\" | seat=3C | occupant=\"alice\"\n")
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	c := qt.New(t)
	c.Patch(&SeatLogPath, filepath.Join(c.TempDir(), "seating.log"))

	c.Assert(HandleMessage([]byte("{")), qt.ErrorMatches, "unmarshal: .*")
	c.Assert(HandleMessage([]byte(`{"type":"seat.assigned"}`)), qt.ErrorMatches, "incomplete event .*")
}
