// Package handler defines the HTTP handlers of the flight seat API.
package handler

import (
	"context"
	"net/http"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-service/internal/actor"
	"github.com/iliyamo/flight-seat-service/internal/database"
	"github.com/iliyamo/flight-seat-service/internal/middleware"
	"github.com/iliyamo/flight-seat-service/internal/model"
	"github.com/iliyamo/flight-seat-service/internal/repository"
)

var logger = loggo.GetLogger("flightseats.handler")

// Seats is the seat service the handlers drive. *service.SeatService
// implements it.
type Seats interface {
	Available(ctx context.Context, flight string) ([]model.SeatID, error)
	SeatMap(ctx context.Context, flight string) ([]model.SeatRow, error)
	Initialize(ctx context.Context, flight string, seeds []model.SeatSeed) error
	Assign(ctx context.Context, flight string, seat model.SeatID, occupant model.Occupant) error
	Release(ctx context.Context, flight string, seat model.SeatID, occupant model.Occupant) error
}

// FlightHandler serves /v1/flights/:name/:action. Each action is forwarded
// to the actor owning the named flight.
type FlightHandler struct {
	Seats Seats
}

// NewFlightHandler constructs a FlightHandler and panics on a nil service.
func NewFlightHandler(seats Seats) *FlightHandler {
	if seats == nil {
		panic("nil seat service passed to NewFlightHandler")
	}
	return &FlightHandler{Seats: seats}
}

type seatRequest struct {
	Seat     string `json:"seat"`
	Occupant string `json:"occupant"`
}

type initializeRequest struct {
	Seats []string `json:"seats"`
}

// Query handles GET actions: available and seats.
func (h *FlightHandler) Query(c echo.Context) error {
	flight := c.Param("name")
	switch c.Param("action") {
	case "available":
		ids, err := h.Seats.Available(c.Request().Context(), flight)
		if err != nil {
			return writeError(c, flight, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"flight": flight, "available": ids})
	case "seats":
		rows, err := h.Seats.SeatMap(c.Request().Context(), flight)
		if err != nil {
			return writeError(c, flight, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"flight": flight, "seats": rows})
	case "assign", "release", "initialize":
		return c.JSON(http.StatusMethodNotAllowed, echo.Map{"error": "use POST for " + c.Param("action")})
	}
	return unknownAction(c)
}

// Command handles POST actions: assign, release and initialize.
func (h *FlightHandler) Command(c echo.Context) error {
	flight := c.Param("name")
	ctx := c.Request().Context()
	switch action := c.Param("action"); action {
	case "assign", "release":
		seat, occupant, err := bindSeatRequest(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		if action == "assign" {
			err = h.Seats.Assign(ctx, flight, seat, occupant)
		} else {
			err = h.Seats.Release(ctx, flight, seat, occupant)
		}
		if err != nil {
			return writeError(c, flight, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"flight": flight, "seat": seat, "occupant": occupant, "action": action})
	case "initialize":
		var req initializeRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
		seeds := make([]model.SeatSeed, 0, len(req.Seats))
		for _, s := range req.Seats {
			id, err := model.ParseSeatID(s)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
			}
			seeds = append(seeds, model.SeatSeed{SeatID: id})
		}
		if err := h.Seats.Initialize(ctx, flight, seeds); err != nil {
			return writeError(c, flight, err)
		}
		return c.JSON(http.StatusCreated, echo.Map{"flight": flight, "seats": len(seeds)})
	case "available", "seats":
		return c.JSON(http.StatusMethodNotAllowed, echo.Map{"error": "use GET for " + action})
	}
	return unknownAction(c)
}

func unknownAction(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown action " + c.Param("action")})
}

// bindSeatRequest reads the seat and occupant of a write. An authenticated
// occupant takes precedence over the one in the body.
func bindSeatRequest(c echo.Context) (model.SeatID, model.Occupant, error) {
	var req seatRequest
	if err := c.Bind(&req); err != nil {
		return "", "", errors.New("invalid body")
	}
	seat, err := model.ParseSeatID(req.Seat)
	if err != nil {
		return "", "", err
	}
	raw := req.Occupant
	if authed, ok := middleware.OccupantFrom(c); ok {
		raw = authed
	}
	occupant, err := model.ParseOccupant(raw)
	if err != nil {
		return "", "", err
	}
	return seat, occupant, nil
}

func writeError(c echo.Context, flight string, err error) error {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, repository.ErrSeatNotFound):
		status, msg = http.StatusNotFound, "seat not found"
	case errors.Is(err, database.ErrStorageUninitialized):
		status, msg = http.StatusNotFound, "flight not initialized"
	case errors.Is(err, repository.ErrSeatOccupied):
		status, msg = http.StatusConflict, "seat occupied"
	case errors.Is(err, repository.ErrNotOccupant):
		status, msg = http.StatusConflict, "seat not held by occupant"
	case errors.Is(err, database.ErrConstraintViolation):
		status, msg = http.StatusConflict, "duplicate seat"
	case errors.Is(err, errors.NotValid):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, actor.ErrActorStopped), errors.Is(err, actor.ErrRegistryStopped):
		status, msg = http.StatusServiceUnavailable, "shutting down"
	default:
		logger.Errorf("flight %q: %s %s: %v", flight, c.Request().Method, c.Param("action"), errors.ErrorStack(err))
	}
	return c.JSON(status, echo.Map{"error": msg})
}
