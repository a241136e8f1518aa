package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pod-kiosk/internal/config"
	"github.com/iliyamo/pod-kiosk/internal/flow"
	"github.com/iliyamo/pod-kiosk/internal/handler"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/order"
	"github.com/iliyamo/pod-kiosk/internal/payment"
	"github.com/iliyamo/pod-kiosk/internal/pod"
	"github.com/iliyamo/pod-kiosk/internal/repository"
	"github.com/iliyamo/pod-kiosk/internal/router"
	"github.com/iliyamo/pod-kiosk/internal/session"
	"github.com/iliyamo/pod-kiosk/internal/utils"
)

const secret = "handler-secret"

type menus struct{}

func (menus) FetchMenu(context.Context, string) ([]model.Step, error) {
	return []model.Step{{ID: "bowl", Sections: []model.Section{{
		ID: "broth", Mode: model.ModeSingle, Required: true,
		Items: []model.MenuItem{{ID: "shoyu", Name: "Shoyu", BasePriceCents: 1000}},
	}}}}, nil
}

type seats struct {
	mu     sync.Mutex
	status map[string]model.SeatStatus
}

func (s *seats) FetchSeats(context.Context, string) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []model.Seat{
		{ID: "p1", Number: 1, Status: s.status["p1"], Type: model.PodSingle},
		{ID: "p2", Number: 2, Status: s.status["p2"], Type: model.PodSingle},
	}, nil
}

func (s *seats) ReserveSeat(_ context.Context, r model.PodReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[r.SeatID] != model.SeatAvailable {
		return pod.ErrSeatUnavailable
	}
	s.status[r.SeatID] = model.SeatReserved
	return nil
}

func (s *seats) ReleaseSeat(_ context.Context, seatID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[seatID] == model.SeatReserved {
		s.status[seatID] = model.SeatAvailable
	}
	return nil
}

type orders struct{ fail error }

func (o *orders) CreateOrder(context.Context, order.CreateOrderRequest) (order.CreateOrderResult, error) {
	if o.fail != nil {
		return order.CreateOrderResult{}, o.fail
	}
	return order.CreateOrderResult{OrderID: "o1", OrderNumber: "ORD_1", KitchenOrderNumber: "001", PreTaxTotalCents: 1000}, nil
}

func (o *orders) UpdateOrder(context.Context, string, payment.OrderUpdate) error { return nil }

type gateway struct{ calls int }

func (g *gateway) Charge(context.Context, payment.ChargeRequest) (payment.ChargeResult, error) {
	g.calls++
	return payment.ChargeResult{ChargeID: "ch_1", Status: "succeeded"}, nil
}

type server struct {
	e      *echo.Echo
	token  string
	orders *orders
	gw     *gateway
}

func newServer(t *testing.T) *server {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	srv := &server{e: echo.New(), orders: &orders{}, gw: &gateway{}}
	reg := &seats{status: map[string]model.SeatStatus{"p1": model.SeatAvailable, "p2": model.SeatOccupied}}
	log := logger.Discard()

	store := session.NewStore("loc-1", menus{}, func(locationID string) flow.Deps {
		return flow.Deps{
			Orders: order.NewSubmitter(srv.orders, locationID, 0.1, log),
			Seats:  reg,
			Payments: payment.NewCoordinator(payment.Config{
				Gateway: srv.gw, Orders: srv.orders, Seats: reg, Clock: clock, Log: log,
			}),
			Clock:        clock,
			PollInterval: time.Second,
			Log:          log,
		}
	}, log)
	t.Cleanup(store.CloseAll)

	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	h := handler.NewKioskHandler(store, menus{}, "USD", "en")
	router.RegisterKiosk(srv.e, h, router.KioskAuth{JWTSecret: secret, LocationID: "loc-1", Clock: clock}, pass, pass)

	tok, err := utils.NewDeviceToken(secret, "kiosk-1", "loc-1", time.Hour, clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	srv.token = tok.Token
	return srv
}

func (s *server) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func view(resp map[string]any) string {
	s, _ := resp["session"].(map[string]any)
	v, _ := s["current_view"].(string)
	return v
}

func TestKioskPartyOfOne(t *testing.T) {
	s := newServer(t)

	steps := []struct {
		method, path string
		body         any
		status       int
		view         string
	}{
		{http.MethodPost, "/v1/kiosk/sessions", map[string]any{"party_size": 1}, http.StatusCreated, "NAME"},
		{http.MethodPost, "/v1/kiosk/session/name", map[string]any{"guest_name": "Mina"}, http.StatusOK, "MENU"},
		{http.MethodPut, "/v1/kiosk/session/selection", map[string]any{"section_id": "broth", "item_id": "shoyu"}, http.StatusOK, "MENU"},
		{http.MethodPost, "/v1/kiosk/session/steps/next", nil, http.StatusOK, "REVIEW"},
		{http.MethodPost, "/v1/kiosk/session/submit", nil, http.StatusOK, "POD_SELECTION"},
		{http.MethodPost, "/v1/kiosk/session/pods/auto", nil, http.StatusOK, "POD_SELECTION"},
		{http.MethodPost, "/v1/kiosk/session/pods/confirm", nil, http.StatusOK, "PAYMENT"},
		{http.MethodPost, "/v1/kiosk/session/pay", nil, http.StatusOK, "COMPLETE"},
	}
	for _, st := range steps {
		code, resp := s.do(t, st.method, st.path, st.body)
		if code != st.status {
			t.Fatalf("%s %s = %d (%v), want %d", st.method, st.path, code, resp, st.status)
		}
		if got := view(resp); got != st.view {
			t.Fatalf("%s %s: view %s, want %s", st.method, st.path, got, st.view)
		}
	}
	if s.gw.calls != 1 {
		t.Fatalf("charges = %d, want 1", s.gw.calls)
	}

	code, resp := s.do(t, http.MethodDelete, "/v1/kiosk/session", nil)
	if code != http.StatusOK || resp["view"] != "COMPLETE" {
		t.Fatalf("DELETE = %d %v", code, resp)
	}
	if code, _ := s.do(t, http.MethodGet, "/v1/kiosk/session", nil); code != http.StatusNotFound {
		t.Fatalf("GET after end = %d, want 404", code)
	}
}

func TestKioskErrorMapping(t *testing.T) {
	s := newServer(t)

	if code, _ := s.do(t, http.MethodPost, "/v1/kiosk/session/name", map[string]any{"guest_name": "x"}); code != http.StatusNotFound {
		t.Fatalf("no session: %d", code)
	}
	code, resp := s.do(t, http.MethodPost, "/v1/kiosk/sessions", map[string]any{"party_size": 9, "payment_type": "SINGLE"})
	if code != http.StatusBadRequest || resp["field"] != "party_size" {
		t.Fatalf("bad party = %d %v", code, resp)
	}
	if code, _ := s.do(t, http.MethodPost, "/v1/kiosk/sessions", map[string]any{"party_size": 2, "payment_type": "SEPARATE"}); code != http.StatusCreated {
		t.Fatalf("start = %d", code)
	}

	code, resp = s.do(t, http.MethodPost, "/v1/kiosk/session/name", map[string]any{"guest_name": "  "})
	if code != http.StatusBadRequest || resp["error"] != "validation" {
		t.Fatalf("blank name = %d %v", code, resp)
	}
	code, resp = s.do(t, http.MethodPost, "/v1/kiosk/session/pay", nil)
	if code != http.StatusConflict || resp["error"] != "invalid_state" || view(resp) != "NAME" {
		t.Fatalf("pay in NAME = %d %v", code, resp)
	}

	s.do(t, http.MethodPost, "/v1/kiosk/session/name", map[string]any{"guest_name": "Jo"})
	code, resp = s.do(t, http.MethodPut, "/v1/kiosk/session/selection", map[string]any{"section_id": "broth", "item_id": "nope"})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown item = %d %v", code, resp)
	}
	s.do(t, http.MethodPut, "/v1/kiosk/session/selection", map[string]any{"section_id": "broth", "item_id": "shoyu"})
	s.do(t, http.MethodPost, "/v1/kiosk/session/steps/next", nil)

	s.orders.fail = errors.New("order service down")
	code, resp = s.do(t, http.MethodPost, "/v1/kiosk/session/submit", nil)
	if code != http.StatusBadGateway || resp["retryable"] != true || view(resp) != "REVIEW" {
		t.Fatalf("submit failure = %d %v", code, resp)
	}
	s.orders.fail = nil
	if code, resp := s.do(t, http.MethodPost, "/v1/kiosk/session/submit", nil); code != http.StatusOK || view(resp) != "POD_SELECTION" {
		t.Fatalf("submit retry = %d %v", code, resp)
	}

	code, resp = s.do(t, http.MethodPost, "/v1/kiosk/session/pods/select", map[string]any{"seat_id": "p2"})
	if code != http.StatusConflict || resp["error"] != "allocation" {
		t.Fatalf("occupied pod = %d %v", code, resp)
	}
	code, resp = s.do(t, http.MethodGet, "/v1/kiosk/session/pods?refresh=1", nil)
	if code != http.StatusOK || resp["guest_number"] != float64(1) {
		t.Fatalf("pods = %d %v", code, resp)
	}
}

func TestKioskRejectsBadToken(t *testing.T) {
	s := newServer(t)
	s.token = "garbage"
	if code, _ := s.do(t, http.MethodGet, "/v1/kiosk/menu", nil); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
}

type deviceStore struct {
	device  repository.Device
	err     error
	touched bool
}

func (d *deviceStore) Authenticate(context.Context, string, string) (repository.Device, error) {
	return d.device, d.err
}

func (d *deviceStore) TouchLastSeen(context.Context, string, time.Time) error {
	d.touched = true
	return nil
}

func TestDeviceToken(t *testing.T) {
	cfg := config.Config{JWTSecret: secret, LocationID: "loc-1", DeviceTokenTTLMin: 60}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	tests := []struct {
		name   string
		store  *deviceStore
		body   string
		status int
	}{
		{"issued", &deviceStore{device: repository.Device{ID: "kiosk-1", LocationID: "loc-1"}}, `{"device_id":"kiosk-1","secret":"s"}`, http.StatusOK},
		{"missing fields", &deviceStore{}, `{"device_id":"kiosk-1"}`, http.StatusBadRequest},
		{"bad secret", &deviceStore{err: repository.ErrNotFound}, `{"device_id":"kiosk-1","secret":"s"}`, http.StatusUnauthorized},
		{"retired", &deviceStore{err: repository.ErrDeviceInactive}, `{"device_id":"kiosk-1","secret":"s"}`, http.StatusForbidden},
		{"other store", &deviceStore{device: repository.Device{ID: "kiosk-1", LocationID: "loc-2"}}, `{"device_id":"kiosk-1","secret":"s"}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			router.RegisterAuth(e, handler.NewAuthHandler(cfg, tt.store, clock, nil), func(next echo.HandlerFunc) echo.HandlerFunc { return next })
			req := httptest.NewRequest(http.MethodPost, "/v1/devices/token", bytes.NewBufferString(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp struct {
				Token   string    `json:"token"`
				Expires time.Time `json:"expires"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			claims, err := utils.ParseDeviceToken(secret, resp.Token, clock.Now())
			if err != nil || claims.Subject != "kiosk-1" {
				t.Fatalf("token claims = %+v, %v", claims, err)
			}
			if !resp.Expires.Equal(clock.Now().Add(time.Hour)) || !tt.store.touched {
				t.Fatalf("expires %v touched %v", resp.Expires, tt.store.touched)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	router.RegisterRoutes(e, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
