package middleware // middleware holds the echo middleware shared by the kiosk API

import (
    "net/http" // HTTP status codes for responses
    "strings"  // prefix checking and trimming

    "github.com/jonboulle/clockwork" // clock used for token expiry checks
    "github.com/labstack/echo/v4"    // Echo framework

    "github.com/iliyamo/pod-kiosk/internal/utils"
)

// Context keys set by DeviceAuth.
const (
    ctxDeviceID   = "device_id"
    ctxLocationID = "location_id"
)

// DeviceAuth returns an Echo middleware that validates a Bearer device
// token and stores the device and location claims in the request context.
// The secret must match the one used when issuing tokens.  Handlers read
// the device via DeviceID(c).
func DeviceAuth(secret string, clock clockwork.Clock) echo.MiddlewareFunc {
    if clock == nil {
        clock = clockwork.NewRealClock()
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header is "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims, err := utils.ParseDeviceToken(secret, raw, clock.Now())
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(ctxDeviceID, claims.Subject)
            c.Set(ctxLocationID, claims.Location)
            return next(c)
        }
    }
}
