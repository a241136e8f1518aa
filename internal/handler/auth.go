package handler

import (
	"context"  // provides context with cancellation for DB calls
	"errors"   // errors.Is on repository sentinels
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for DB calls

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pod-kiosk/internal/config"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/repository"
	"github.com/iliyamo/pod-kiosk/internal/utils"
)

// DeviceStore looks up and authenticates kiosk devices.
type DeviceStore interface {
	Authenticate(ctx context.Context, id, secret string) (repository.Device, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

// AuthHandler issues device tokens.
type AuthHandler struct {
	Cfg     config.Config
	Devices DeviceStore
	Clock   clockwork.Clock
	Log     *logger.Logger
}

func NewAuthHandler(cfg config.Config, d DeviceStore, clock clockwork.Clock, log *logger.Logger) *AuthHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &AuthHandler{Cfg: cfg, Devices: d, Clock: clock, Log: log}
}

// ----- DTOs -----

type deviceTokenReq struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// DeviceToken: verify the device secret and return an access token.
func (h *AuthHandler) DeviceToken(c echo.Context) error {
	var req deviceTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.DeviceID == "" || req.Secret == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "device_id/secret required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Devices.Authenticate(ctx, req.DeviceID, req.Secret)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, repository.ErrDeviceInactive):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "device retired"})
	case err != nil:
		h.Log.Error("device_token", "", "device lookup failed", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if d.LocationID != h.Cfg.LocationID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "device belongs to another location"})
	}

	now := h.Clock.Now()
	access, err := utils.NewDeviceToken(h.Cfg.JWTSecret, d.ID, d.LocationID, h.Cfg.DeviceTokenTTL(), now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	if err := h.Devices.TouchLastSeen(ctx, d.ID, now); err != nil {
		h.Log.Warn("device_token", "", "last_seen update failed: "+err.Error())
	}
	h.Log.Info("device_token", "", "token issued to "+d.ID)
	return c.JSON(http.StatusOK, tokenResp{Token: access.Token, Expires: access.Exp})
}
