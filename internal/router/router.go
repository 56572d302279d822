// Package router registers the HTTP routes of the flight seat API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-service/internal/handler"
	"github.com/iliyamo/flight-seat-service/internal/middleware"
)

// Deps carries what the routes need.
type Deps struct {
	Flights   *handler.FlightHandler
	LiveCount func() int

	// JWTSecret enables bearer authentication of writes when set.
	JWTSecret string

	// RateLimit wraps the flight group; nil disables it.
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers the health check and the flight endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.LiveCount))

	g := e.Group("/v1/flights")
	if d.RateLimit != nil {
		g.Use(d.RateLimit)
	}
	g.GET("/:name/:action", d.Flights.Query)
	g.POST("/:name/:action", d.Flights.Command, middleware.OccupantAuth(d.JWTSecret))
}
