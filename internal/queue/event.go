// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// SeatEventsQueue is the durable queue seat events are published to.
const SeatEventsQueue = "flight.seat.events"

// Seat event types.
const (
	SeatAssigned = "seat.assigned"
	SeatReleased = "seat.released"
)

// SeatEvent is published after a seat changes hands on a flight. It carries
// enough for downstream consumers to log or notify without asking the
// flight's actor.
type SeatEvent struct {
	Type       string `json:"type"`
	Flight     string `json:"flight"`
	Seat       string `json:"seat"`
	Occupant   string `json:"occupant"`
	OccurredAt string `json:"occurred_at"`
}
