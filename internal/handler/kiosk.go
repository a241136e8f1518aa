package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pod-kiosk/internal/flow"
	"github.com/iliyamo/pod-kiosk/internal/middleware"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/pricing"
	"github.com/iliyamo/pod-kiosk/internal/session"
)

// KioskHandler serves the ordering screens.  Every route runs behind
// DeviceAuth; the device ID picks the party the request acts on.
type KioskHandler struct {
	Sessions      *session.Store
	Menus         flow.MenuCatalog
	Currency      string
	DefaultLocale string
}

func NewKioskHandler(sessions *session.Store, menus flow.MenuCatalog, currency, defaultLocale string) *KioskHandler {
	if sessions == nil || menus == nil {
		panic("nil dependency passed to NewKioskHandler")
	}
	return &KioskHandler{Sessions: sessions, Menus: menus, Currency: currency, DefaultLocale: defaultLocale}
}

// ----- DTOs -----

type startReq struct {
	flow.PartySetup
	Locale string `json:"locale"`
}

type nameReq struct {
	GuestName string `json:"guest_name"`
}

type cartReq struct {
	ItemID      string `json:"item_id"`
	Quantity    int    `json:"quantity"`
	MaxQuantity int    `json:"max_quantity"`
}

type sliderReq struct {
	ItemID string `json:"item_id"`
	Value  int    `json:"value"`
}

type selectionReq struct {
	SectionID string `json:"section_id"`
	ItemID    string `json:"item_id"`
}

type podReq struct {
	SeatID string `json:"seat_id"`
}

// guestTotals is a guest's amounts ready for display.
type guestTotals struct {
	GuestNumber int    `json:"guest_number"`
	Subtotal    string `json:"subtotal"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

type sessionResp struct {
	Session           model.PartySession `json:"session"`
	RunningTotalCents int64              `json:"running_total_cents"`
	RunningTotal      string             `json:"running_total"`
	Guests            []guestTotals      `json:"guest_totals"`
	AmountDue         string             `json:"amount_due,omitempty"`
}

func (h *KioskHandler) locale(c echo.Context) string {
	if l := strings.TrimSpace(c.QueryParam("locale")); l != "" {
		return l
	}
	return h.DefaultLocale
}

func (h *KioskHandler) render(c echo.Context, ctl *flow.Controller) sessionResp {
	s := ctl.Snapshot()
	loc := h.locale(c)
	running := ctl.RunningTotal()
	resp := sessionResp{
		Session:           s,
		RunningTotalCents: running,
		RunningTotal:      pricing.Format(running, h.Currency, loc),
	}
	var submitted []model.Totals
	for _, g := range s.Guests {
		if !g.Submitted() {
			continue
		}
		submitted = append(submitted, g.Totals)
		resp.Guests = append(resp.Guests, guestTotals{
			GuestNumber: g.GuestNumber,
			Subtotal:    pricing.Format(g.Totals.SubtotalCents, h.Currency, loc),
			Tax:         pricing.Format(g.Totals.TaxCents, h.Currency, loc),
			Total:       pricing.Format(g.Totals.TotalCents, h.Currency, loc),
		})
	}
	if s.CurrentView == model.ViewPayment {
		due := s.Current().Totals
		if s.PaymentType == model.PaySingle {
			due = pricing.Sum(submitted...)
		}
		resp.AmountDue = pricing.Format(due.TotalCents, h.Currency, loc)
	}
	return resp
}

// act runs fn against the device's party and answers with the updated
// session.  Errors carry the session too so the screen always redraws
// from the controller's state.
func (h *KioskHandler) act(c echo.Context, fn func(ctx context.Context, ctl *flow.Controller) error) error {
	ctl, err := h.Sessions.Get(middleware.DeviceID(c))
	if err != nil {
		return writeError(c, err, nil)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()
	if err := fn(ctx, ctl); err != nil {
		return writeError(c, err, echo.Map{"session": h.render(c, ctl)})
	}
	return c.JSON(http.StatusOK, h.render(c, ctl))
}

// Menu handles GET /v1/kiosk/menu?locale=.
func (h *KioskHandler) Menu(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	steps, err := h.Menus.FetchMenu(ctx, h.locale(c))
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"steps": steps})
}

// StartSession handles POST /v1/kiosk/sessions.  Any party already open
// on the device is abandoned.
func (h *KioskHandler) StartSession(c echo.Context) error {
	var req startReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = h.locale(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	ctl, err := h.Sessions.Start(ctx, middleware.DeviceID(c), locale, req.PartySetup)
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusCreated, h.render(c, ctl))
}

// GetSession handles GET /v1/kiosk/session.
func (h *KioskHandler) GetSession(c echo.Context) error {
	return h.act(c, func(context.Context, *flow.Controller) error { return nil })
}

// EndSession handles DELETE /v1/kiosk/session.  It is how an idle timeout
// or a cancel button abandons the party from any screen.
func (h *KioskHandler) EndSession(c echo.Context) error {
	snap, err := h.Sessions.End(middleware.DeviceID(c))
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"ended": snap.ID, "view": snap.CurrentView})
}

// SubmitName handles POST /v1/kiosk/session/name.
func (h *KioskHandler) SubmitName(c echo.Context) error {
	var req nameReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.act(c, func(_ context.Context, ctl *flow.Controller) error {
		return ctl.SubmitName(req.GuestName)
	})
}

// UpdateCart handles PUT /v1/kiosk/session/cart.
func (h *KioskHandler) UpdateCart(c echo.Context) error {
	var req cartReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.act(c, func(_ context.Context, ctl *flow.Controller) error {
		return ctl.UpdateCart(req.ItemID, req.Quantity, req.MaxQuantity)
	})
}

// UpdateSlider handles PUT /v1/kiosk/session/slider.
func (h *KioskHandler) UpdateSlider(c echo.Context) error {
	var req sliderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.act(c, func(_ context.Context, ctl *flow.Controller) error {
		return ctl.UpdateSlider(req.ItemID, req.Value)
	})
}

// UpdateSelection handles PUT /v1/kiosk/session/selection.
func (h *KioskHandler) UpdateSelection(c echo.Context) error {
	var req selectionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.act(c, func(_ context.Context, ctl *flow.Controller) error {
		return ctl.UpdateSelection(req.SectionID, req.ItemID)
	})
}

// NextStep handles POST /v1/kiosk/session/steps/next.
func (h *KioskHandler) NextStep(c echo.Context) error {
	return h.act(c, func(_ context.Context, ctl *flow.Controller) error { return ctl.NextStep() })
}

// PreviousStep handles POST /v1/kiosk/session/steps/previous.
func (h *KioskHandler) PreviousStep(c echo.Context) error {
	return h.act(c, func(_ context.Context, ctl *flow.Controller) error { return ctl.PreviousStep() })
}

// SubmitOrder handles POST /v1/kiosk/session/submit.  A 502 means the
// order service failed and the same call may be repeated.
func (h *KioskHandler) SubmitOrder(c echo.Context) error {
	return h.act(c, func(ctx context.Context, ctl *flow.Controller) error { return ctl.SubmitOrder(ctx) })
}

// HandOff handles POST /v1/kiosk/session/handoff.
func (h *KioskHandler) HandOff(c echo.Context) error {
	return h.act(c, func(_ context.Context, ctl *flow.Controller) error { return ctl.HandOff() })
}

// Pods handles GET /v1/kiosk/session/pods.  With ?refresh=1 a new
// snapshot is fetched instead of using the poller's latest.
func (h *KioskHandler) Pods(c echo.Context) error {
	ctl, err := h.Sessions.Get(middleware.DeviceID(c))
	if err != nil {
		return writeError(c, err, nil)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	var view flow.PodView
	if c.QueryParam("refresh") == "1" {
		view, err = ctl.RefreshSeats(ctx)
	} else {
		view, err = ctl.Seats(ctx)
	}
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, view)
}

// SelectPod handles POST /v1/kiosk/session/pods/select.
func (h *KioskHandler) SelectPod(c echo.Context) error {
	var req podReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return h.act(c, func(ctx context.Context, ctl *flow.Controller) error {
		return ctl.SelectPod(ctx, strings.TrimSpace(req.SeatID))
	})
}

// AutoPod handles POST /v1/kiosk/session/pods/auto.
func (h *KioskHandler) AutoPod(c echo.Context) error {
	return h.act(c, func(_ context.Context, ctl *flow.Controller) error { return ctl.RequestAutoPod() })
}

// ConfirmPod handles POST /v1/kiosk/session/pods/confirm.
func (h *KioskHandler) ConfirmPod(c echo.Context) error {
	return h.act(c, func(ctx context.Context, ctl *flow.Controller) error { return ctl.ConfirmPod(ctx) })
}

// Pay handles POST /v1/kiosk/session/pay.  A 409 seat_taken answer comes
// with the session back in POD_SELECTION for the affected guests.
func (h *KioskHandler) Pay(c echo.Context) error {
	return h.act(c, func(ctx context.Context, ctl *flow.Controller) error { return ctl.Pay(ctx) })
}
