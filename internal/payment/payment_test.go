package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/pod"
	"github.com/iliyamo/pod-kiosk/internal/queue"
)

type fakeGateway struct {
	reqs []ChargeRequest
	errs []error // consumed one per call
}

func (f *fakeGateway) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	f.reqs = append(f.reqs, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return ChargeResult{}, err
		}
	}
	return ChargeResult{ChargeID: "ch-" + req.IdempotencyKey[:4], Status: "captured"}, nil
}

type fakeOrders struct {
	updates map[string]OrderUpdate
	err     error
}

func (f *fakeOrders) UpdateOrder(_ context.Context, id string, u OrderUpdate) error {
	if f.err != nil {
		return f.err
	}
	if f.updates == nil {
		f.updates = map[string]OrderUpdate{}
	}
	f.updates[id] = u
	return nil
}

type fakeSeats struct {
	held     map[string]string // seat -> order
	taken    map[string]bool
	err      error
	released []string
}

func (f *fakeSeats) ReleaseSeat(_ context.Context, seatID, orderID string) error {
	if f.held[seatID] == orderID {
		delete(f.held, seatID)
		f.released = append(f.released, seatID)
	}
	return nil
}

func (f *fakeSeats) ReserveSeat(_ context.Context, r model.PodReservation) error {
	if f.err != nil {
		return f.err
	}
	if f.taken[r.SeatID] {
		return pod.ErrSeatUnavailable
	}
	if f.held == nil {
		f.held = map[string]string{}
	}
	if o, ok := f.held[r.SeatID]; ok && o != r.OrderID {
		return pod.ErrSeatUnavailable
	}
	f.held[r.SeatID] = r.OrderID
	return nil
}

type fakeNotifier struct{ events []queue.KitchenHandoffEvent }

func (f *fakeNotifier) OrderPaid(_ context.Context, ev queue.KitchenHandoffEvent) error {
	f.events = append(f.events, ev)
	return errors.New("broker down")
}

type harness struct {
	gw     *fakeGateway
	orders *fakeOrders
	seats  *fakeSeats
	notify *fakeNotifier
	clock  *clockwork.FakeClock
	c      *Coordinator
}

func newHarness() *harness {
	h := &harness{
		gw:     &fakeGateway{},
		orders: &fakeOrders{},
		seats:  &fakeSeats{taken: map[string]bool{}},
		notify: &fakeNotifier{},
		clock:  clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
	h.c = NewCoordinator(Config{
		Gateway: h.gw, Orders: h.orders, Seats: h.seats, Notifier: h.notify,
		Clock: h.clock, Currency: "USD", Log: logger.Discard(),
	})
	return h
}

func ptr(s string) *string { return &s }

func floor() *pod.PartnerIndex {
	return pod.NewPartnerIndex([]model.Seat{
		{ID: "s1", Number: 1, Status: model.SeatAvailable, Type: model.PodSingle},
		{ID: "s2", Number: 2, Status: model.SeatAvailable, Type: model.PodSingle},
		{ID: "d1", Number: 3, Status: model.SeatAvailable, Type: model.PodDual, DualPartnerID: ptr("d2")},
		{ID: "d2", Number: 4, Status: model.SeatAvailable, Type: model.PodDual},
	})
}

func party(pt model.PaymentType, pods ...string) *model.PartySession {
	s := model.NewPartySession("sess-1", "loc-1", len(pods), pt)
	for i, p := range pods {
		g := &s.Guests[i]
		g.GuestName = "guest"
		g.OrderID = "o" + string(rune('1'+i))
		g.OrderNumber = "A" + string(rune('1'+i))
		g.Totals = model.Totals{SubtotalCents: 1000, TaxCents: 80, TotalCents: 1080}
		g.Pod = model.Assigned(p)
	}
	return s
}

func TestPayGuestChargesOnceAndReserves(t *testing.T) {
	h := newHarness()
	s := party(model.PaySeparate, "s1", "s2")
	s.Guests[0].PodAutoAssigned = true

	if err := h.c.PayGuest(context.Background(), s, 0, floor()); err != nil {
		t.Fatalf("PayGuest: %v", err)
	}
	g := s.Guests[0]
	if !g.Paid || !g.SeatCommitted {
		t.Fatalf("guest not finalized: %+v", g)
	}
	if len(h.gw.reqs) != 1 || h.gw.reqs[0].AmountCents != 1080 || h.gw.reqs[0].OrderIDs[0] != "o1" {
		t.Fatalf("charges = %+v", h.gw.reqs)
	}
	if h.seats.held["s1"] != "o1" {
		t.Fatalf("seat not reserved: %v", h.seats.held)
	}
	u := h.orders.updates["o1"]
	wantExpiry := h.clock.Now().Add(15 * time.Minute)
	if u.PaymentStatus != PaymentStatusPaid || u.SeatID != "s1" || u.PodSelectionMethod != model.SelectionAuto {
		t.Fatalf("order update = %+v", u)
	}
	if u.PodReservationExpiry == nil || !u.PodReservationExpiry.Equal(wantExpiry) {
		t.Fatalf("expiry = %v, want %v", u.PodReservationExpiry, wantExpiry)
	}
	if s.Guests[1].Paid {
		t.Fatal("other guest charged")
	}
	if len(h.notify.events) != 1 || h.notify.events[0].SeatID != "s1" {
		t.Fatalf("hand-off events = %+v", h.notify.events)
	}

	// paying again does nothing new
	if err := h.c.PayGuest(context.Background(), s, 0, floor()); err != nil {
		t.Fatal(err)
	}
	if len(h.gw.reqs) != 1 {
		t.Fatalf("guest charged %d times", len(h.gw.reqs))
	}
}

func TestPayGuestRetryReusesIdempotencyKey(t *testing.T) {
	h := newHarness()
	h.gw.errs = []error{errors.New("terminal timeout")}
	s := party(model.PaySeparate, "s1")

	err := h.c.PayGuest(context.Background(), s, 0, floor())
	if !kioskerr.IsRetryable(err) {
		t.Fatalf("first attempt = %v, want SubmissionError", err)
	}
	if s.Guests[0].Paid {
		t.Fatal("guest marked paid after failed charge")
	}
	if err := h.c.PayGuest(context.Background(), s, 0, floor()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(h.gw.reqs) != 2 || h.gw.reqs[0].IdempotencyKey != h.gw.reqs[1].IdempotencyKey {
		t.Fatalf("retry used a different key: %+v", h.gw.reqs)
	}
}

func TestPayPartyChargesAggregateOnce(t *testing.T) {
	h := newHarness()
	s := party(model.PaySingle, "d1", "d2", "s1")

	if err := h.c.PayParty(context.Background(), s, floor()); err != nil {
		t.Fatalf("PayParty: %v", err)
	}
	if len(h.gw.reqs) != 1 {
		t.Fatalf("charges = %d, want 1", len(h.gw.reqs))
	}
	if r := h.gw.reqs[0]; r.AmountCents != 3*1080 || len(r.OrderIDs) != 3 {
		t.Fatalf("aggregate charge = %+v", r)
	}
	for i, g := range s.Guests {
		if !g.Paid || !g.SeatCommitted {
			t.Fatalf("guest %d not finalized", i+1)
		}
	}
	// each half of the dual pod is reserved by its own guest
	if h.seats.held["d1"] != "o1" || h.seats.held["d2"] != "o2" || h.seats.held["s1"] != "o3" {
		t.Fatalf("held = %v", h.seats.held)
	}
}

func TestPayPartyReservesUnclaimedPartner(t *testing.T) {
	h := newHarness()
	s := party(model.PaySingle, "s1", "d1")

	if err := h.c.PayParty(context.Background(), s, floor()); err != nil {
		t.Fatalf("PayParty: %v", err)
	}
	if h.seats.held["d1"] != "o2" || h.seats.held["d2"] != "o2" {
		t.Fatalf("partner not reserved with primary: %v", h.seats.held)
	}
}

func TestPayPartyLostPartnerReleasesPrimary(t *testing.T) {
	h := newHarness()
	h.seats.taken["d2"] = true
	s := party(model.PaySingle, "s1", "d1")

	err := h.c.PayParty(context.Background(), s, floor())
	var ce *kioskerr.ConcurrencyError
	if !errors.As(err, &ce) || ce.SeatID != "d1" || ce.GuestIndex != 1 {
		t.Fatalf("PayParty = %v, want ConcurrencyError on d1", err)
	}
	if _, ok := h.seats.held["d1"]; ok {
		t.Fatalf("primary still held after partner was lost: %v", h.seats.held)
	}
	if len(h.seats.released) != 1 || h.seats.released[0] != "d1" {
		t.Fatalf("released = %v", h.seats.released)
	}
	if h.seats.held["s1"] != "o1" || s.Guests[1].SeatCommitted {
		t.Fatalf("held = %v, guest 2 committed = %v", h.seats.held, s.Guests[1].SeatCommitted)
	}
	if _, ok := h.orders.updates["o2"]; ok {
		t.Fatal("order updated for a pod that was not reserved")
	}
}

func TestPayPartyConflictThenRetryFinalizesOnly(t *testing.T) {
	h := newHarness()
	h.seats.taken["s2"] = true
	s := party(model.PaySingle, "s1", "s2")

	err := h.c.PayParty(context.Background(), s, floor())
	var ce *kioskerr.ConcurrencyError
	if !errors.As(err, &ce) || ce.SeatID != "s2" || ce.GuestIndex != 1 {
		t.Fatalf("PayParty = %v, want ConcurrencyError on s2", err)
	}
	if !s.Guests[0].SeatCommitted || s.Guests[1].SeatCommitted {
		t.Fatalf("commit state = %v/%v", s.Guests[0].SeatCommitted, s.Guests[1].SeatCommitted)
	}
	if s.PartyChargeID == "" {
		t.Fatal("party charge not recorded")
	}

	// guest 2 re-selects
	s.Guests[1].Pod = model.Assigned("d1")
	if err := h.c.PayParty(context.Background(), s, floor()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(h.gw.reqs) != 1 {
		t.Fatalf("party charged %d times", len(h.gw.reqs))
	}
	if h.seats.held["d1"] != "o2" {
		t.Fatalf("held = %v", h.seats.held)
	}
}

func TestPayPartyOrderUpdateFailureIsRetryable(t *testing.T) {
	h := newHarness()
	h.orders.err = errors.New("order service 503")
	s := party(model.PaySingle, "s1")

	if err := h.c.PayParty(context.Background(), s, floor()); !kioskerr.IsRetryable(err) {
		t.Fatalf("PayParty = %v, want SubmissionError", err)
	}
	h.orders.err = nil
	// the pod is already held for this order, so the reservation replays
	if err := h.c.PayParty(context.Background(), s, floor()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(h.gw.reqs) != 1 || !s.Guests[0].SeatCommitted {
		t.Fatalf("charges=%d committed=%v", len(h.gw.reqs), s.Guests[0].SeatCommitted)
	}
}

func TestPayRejectsUnreadyGuests(t *testing.T) {
	h := newHarness()
	s := party(model.PaySingle, "s1", "s2")
	s.Guests[1].Pod = model.PodSelection{}
	var ve *kioskerr.ValidationError
	if err := h.c.Pay(context.Background(), s, floor()); !errors.As(err, &ve) || ve.Field != "pod" {
		t.Fatalf("Pay = %v, want pod validation error", err)
	}
	if len(h.gw.reqs) != 0 {
		t.Fatal("charge issued for incomplete party")
	}
}

func TestHTTPGatewayCharge(t *testing.T) {
	var gotKey, gotAuth string
	var got ChargeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/charges" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.AmountCents > 10000 {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":"limit"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(ChargeResult{ChargeID: "ch_1", Status: "captured"})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL+"/", "secret", srv.Client())
	res, err := gw.Charge(context.Background(), ChargeRequest{IdempotencyKey: "k-1", AmountCents: 1080, Currency: "USD", OrderIDs: []string{"o1"}})
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if res.ChargeID != "ch_1" || gotKey != "k-1" || gotAuth != "Bearer secret" || got.OrderIDs[0] != "o1" {
		t.Fatalf("res=%+v key=%q auth=%q req=%+v", res, gotKey, gotAuth, got)
	}

	if _, err := gw.Charge(context.Background(), ChargeRequest{IdempotencyKey: "k-2", AmountCents: 20000}); err == nil {
		t.Fatal("expected decline error")
	}
}
