package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/juju/errors"
)

// SeatID identifies a seat within one flight: a row number followed by a
// column letter, e.g. "12C". It is unique per flight only.
type SeatID string

// Occupant identifies who holds a seat. The empty value means the seat is
// free.
type Occupant string

// Free reports whether the occupant value means "nobody".
func (o Occupant) Free() bool { return o == "" }

// SeatRow is one persisted row of the seats table.
//
// Fields:
//  SeatID   – seats.seatId (primary key).
//  Occupant – seats.occupant; empty when the column is NULL.
type SeatRow struct {
	SeatID   SeatID   `json:"seat"`
	Occupant Occupant `json:"occupant,omitempty"`
}

// SeatSeed is the input for creating one seat row. Seeds never carry an
// occupant; every seat starts free.
type SeatSeed struct {
	SeatID SeatID `json:"seat"`
}

// ErrInvalidSeatRow is the kind returned by DecodeSeatRow.
const ErrInvalidSeatRow = errors.ConstError("invalid seat row")

var seatIDPattern = regexp.MustCompile(`^[1-9][0-9]{0,3}[A-Z]$`)

// Valid reports whether id has the row-number + column-letter shape.
func (id SeatID) Valid() bool {
	return seatIDPattern.MatchString(string(id))
}

// ParseSeatID normalises user input ("12c " -> "12C") and validates it.
func ParseSeatID(s string) (SeatID, error) {
	id := SeatID(strings.ToUpper(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", errors.NotValidf("seat id %q", s)
	}
	return id, nil
}

// ParseOccupant trims the input and rejects empty or oversized values.
func ParseOccupant(s string) (Occupant, error) {
	o := strings.TrimSpace(s)
	if o == "" {
		return "", errors.NotValidf("empty occupant")
	}
	if len(o) > 128 {
		return "", errors.NotValidf("occupant longer than 128 bytes")
	}
	return Occupant(o), nil
}

// DecodeSeatRow converts a raw store row (column name -> value) into a
// SeatRow. It fails when seatId is missing, not text, or not seat shaped, or
// when occupant is neither NULL nor text.
func DecodeSeatRow(raw map[string]any) (SeatRow, error) {
	var row SeatRow
	id, ok := raw["seatId"].(string)
	if !ok {
		return row, errors.Annotate(ErrInvalidSeatRow, fmt.Sprintf("seatId %T", raw["seatId"]))
	}
	row.SeatID = SeatID(id)
	if !row.SeatID.Valid() {
		return row, errors.Annotate(ErrInvalidSeatRow, fmt.Sprintf("seatId %q", id))
	}
	switch v := raw["occupant"].(type) {
	case nil:
	case string:
		row.Occupant = Occupant(v)
	default:
		return row, errors.Annotate(ErrInvalidSeatRow, fmt.Sprintf("occupant %T", v))
	}
	return row, nil
}
