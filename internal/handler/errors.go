package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/order"
	"github.com/iliyamo/pod-kiosk/internal/repository"
	"github.com/iliyamo/pod-kiosk/internal/session"
)

// writeError maps flow and repository errors to a status and a body the
// kiosk screen can act on.  extra is merged into the body; handlers pass
// the session snapshot so the screen can redraw after a refused pod.
func writeError(c echo.Context, err error, extra echo.Map) error {
	var (
		ve *kioskerr.ValidationError
		ae *kioskerr.AllocationError
		ce *kioskerr.ConcurrencyError
		st *kioskerr.StateError
		se *kioskerr.SubmissionError
	)
	status := http.StatusInternalServerError
	body := echo.Map{"error": "internal error"}
	switch {
	case errors.Is(err, session.ErrNoSession):
		status, body = http.StatusNotFound, echo.Map{"error": "no active session"}
	case errors.Is(err, repository.ErrNotFound):
		status, body = http.StatusNotFound, echo.Map{"error": "not found"}
	case errors.Is(err, repository.ErrConflict):
		status, body = http.StatusConflict, echo.Map{"error": "conflict"}
	case errors.As(err, &ve):
		status, body = http.StatusBadRequest, echo.Map{"error": "validation", "field": ve.Field, "message": ve.Message}
	case errors.Is(err, order.ErrUnknownItem), errors.Is(err, order.ErrUnknownSection):
		status, body = http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()}
	case errors.As(err, &ae):
		status, body = http.StatusConflict, echo.Map{"error": "allocation", "kind": ae.Kind, "seat_id": ae.SeatID, "message": ae.Message}
	case errors.As(err, &ce):
		status, body = http.StatusConflict, echo.Map{"error": "seat_taken", "seat_id": ce.SeatID, "message": ce.Error()}
	case errors.As(err, &st):
		status, body = http.StatusConflict, echo.Map{"error": "invalid_state", "action": st.Action, "view": st.View}
	case errors.As(err, &se):
		status, body = http.StatusBadGateway, echo.Map{"error": "upstream", "op": se.Op, "retryable": true}
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}
