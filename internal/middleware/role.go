package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // standard HTTP status codes

    "github.com/labstack/echo/v4"
)

// RequireLocation rejects devices whose token was issued for another
// location with 403 Forbidden.  One server runs one store, so a token
// minted elsewhere must not open sessions here.  It assumes DeviceAuth
// ran first.
func RequireLocation(locationID string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if LocationID(c) != locationID {
                return c.JSON(http.StatusForbidden, map[string]string{"error": "device belongs to another location"})
            }
            return next(c)
        }
    }
}
