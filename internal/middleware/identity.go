// Package middleware holds the echo middleware in front of the flight
// endpoints.
package middleware

import (
	"github.com/juju/loggo"
	"github.com/labstack/echo/v4"
)

var logger = loggo.GetLogger("flightseats.middleware")

const occupantKey = "occupant"

// OccupantFrom returns the authenticated occupant, if OccupantAuth put one
// in the context.
func OccupantFrom(c echo.Context) (string, bool) {
	s, ok := c.Get(occupantKey).(string)
	return s, ok && s != ""
}

func occupantOrAnon(c echo.Context) string {
	if s, ok := OccupantFrom(c); ok {
		return s
	}
	return "anon"
}
