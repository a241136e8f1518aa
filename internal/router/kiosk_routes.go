package router

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pod-kiosk/internal/handler"
	"github.com/iliyamo/pod-kiosk/internal/middleware"
)

// KioskAuth carries what the kiosk group needs to authenticate devices.
type KioskAuth struct {
	JWTSecret  string
	LocationID string
	Clock      clockwork.Clock
}

// RegisterKiosk registers the ordering endpoints under /v1/kiosk.  All
// routes require a device token for this location.  The menu read is
// served through cache; limit applies per device.
func RegisterKiosk(e *echo.Echo, h *handler.KioskHandler, auth KioskAuth, cache, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/kiosk",
		middleware.DeviceAuth(auth.JWTSecret, auth.Clock),
		middleware.RequireLocation(auth.LocationID),
		limit,
	)
	g.GET("/menu", h.Menu, cache)

	g.POST("/sessions", h.StartSession)
	g.GET("/session", h.GetSession)
	g.DELETE("/session", h.EndSession)

	// Building one guest's order.
	g.POST("/session/name", h.SubmitName)
	g.PUT("/session/cart", h.UpdateCart)
	g.PUT("/session/slider", h.UpdateSlider)
	g.PUT("/session/selection", h.UpdateSelection)
	g.POST("/session/steps/next", h.NextStep)
	g.POST("/session/steps/previous", h.PreviousStep)
	g.POST("/session/submit", h.SubmitOrder)
	g.POST("/session/handoff", h.HandOff)

	// Pods and payment.
	g.GET("/session/pods", h.Pods)
	g.POST("/session/pods/select", h.SelectPod)
	g.POST("/session/pods/auto", h.AutoPod)
	g.POST("/session/pods/confirm", h.ConfirmPod)
	g.POST("/session/pay", h.Pay)
}
