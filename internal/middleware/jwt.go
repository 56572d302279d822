package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-service/internal/utils"
)

// OccupantAuth returns an Echo middleware that validates a Bearer access
// token and stores its subject in the context under "occupant". Handlers
// read it back with OccupantFrom. With an empty secret authentication is
// disabled and requests pass through untouched.
func OccupantAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			occupant, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.Debugf("rejecting token from %s: %v", c.RealIP(), err)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(occupantKey, occupant)
			return next(c)
		}
	}
}
