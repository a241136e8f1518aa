package middleware

// identity.go holds the accessors for what DeviceAuth stored on the
// context.  Without an authenticated device both return "anon".

import "github.com/labstack/echo/v4"

// DeviceID returns the authenticated kiosk device ID.
func DeviceID(c echo.Context) string {
    return ctxString(c, ctxDeviceID)
}

// LocationID returns the location the device token was issued for.
func LocationID(c echo.Context) string {
    return ctxString(c, ctxLocationID)
}

func ctxString(c echo.Context, key string) string {
    if v, ok := c.Get(key).(string); ok && v != "" {
        return v
    }
    return "anon"
}
