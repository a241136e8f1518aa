// Package payment charges a party's orders and commits their pods.
//
// A SEPARATE party is charged guest by guest; a SINGLE party is charged
// once for the sum of every guest's order.  After a successful charge each
// guest is finalized on its own: the pod is reserved with a conditional
// write and the order is marked paid with the reservation details.  Every
// step records its outcome on the session so a retry only repeats what
// has not happened yet.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/pod"
	"github.com/iliyamo/pod-kiosk/internal/queue"
)

// DefaultReservationTTL is how long a committed pod stays reserved
// waiting for the guest to arrive.
const DefaultReservationTTL = 15 * time.Minute

// PaymentStatusPaid is written to the order once its charge succeeded.
const PaymentStatusPaid = "PAID"

const partyChargeKey = "party"

// ChargeRequest is a single charge against the payment gateway.
type ChargeRequest struct {
	IdempotencyKey string   `json:"idempotency_key"`
	AmountCents    int64    `json:"amount_cents"`
	Currency       string   `json:"currency"`
	OrderIDs       []string `json:"order_ids"`
	Description    string   `json:"description"`
}

// ChargeResult is the gateway's answer to a successful charge.
type ChargeResult struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
}

// Gateway performs charge-and-confirm.  Requests with the same idempotency
// key must not be captured twice.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// OrderUpdate is written to an order after payment.  It never carries an
// arrival timestamp; pod check-in is a separate flow.
type OrderUpdate struct {
	PaymentStatus        string
	SeatID               string
	PodSelectionMethod   model.SelectionMethod
	PodAssignedAt        *time.Time
	PodReservationExpiry *time.Time
}

// OrderUpdater persists payment and pod details on an order.
type OrderUpdater interface {
	UpdateOrder(ctx context.Context, orderID string, u OrderUpdate) error
}

// SeatCommitter reserves a pod.  Reserving a pod already held for the same
// order succeeds; any other non-AVAILABLE state fails with
// pod.ErrSeatUnavailable.  ReleaseSeat hands back a pod reserved for
// orderID and leaves pods held by anyone else untouched.
type SeatCommitter interface {
	ReserveSeat(ctx context.Context, r model.PodReservation) error
	ReleaseSeat(ctx context.Context, seatID, orderID string) error
}

// Notifier hands paid orders to kitchen fulfillment.
type Notifier interface {
	OrderPaid(ctx context.Context, ev queue.KitchenHandoffEvent) error
}

// Config holds the coordinator's collaborators.  Notifier and Clock are
// optional.
type Config struct {
	Gateway        Gateway
	Orders         OrderUpdater
	Seats          SeatCommitter
	Notifier       Notifier
	Clock          clockwork.Clock
	Currency       string
	ReservationTTL time.Duration
	Log            *logger.Logger
}

// Coordinator sequences charges and seat commits for a party.
type Coordinator struct {
	cfg Config
}

// NewCoordinator fills defaults and returns a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = DefaultReservationTTL
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}
	return &Coordinator{cfg: cfg}
}

// Pay charges according to the party's payment type: the active guest for
// SEPARATE, everyone at once for SINGLE.  floor is the latest seat
// snapshot and is used to find dual-pod partners.
func (c *Coordinator) Pay(ctx context.Context, s *model.PartySession, floor *pod.PartnerIndex) error {
	if s.PaymentType == model.PaySeparate {
		return c.PayGuest(ctx, s, s.CurrentGuestIndex, floor)
	}
	return c.PayParty(ctx, s, floor)
}

// PayGuest charges guest idx on their own and commits their pod.  A guest
// already marked paid is not charged again.
func (c *Coordinator) PayGuest(ctx context.Context, s *model.PartySession, idx int, floor *pod.PartnerIndex) error {
	if idx < 0 || idx >= len(s.Guests) {
		return kioskerr.Invalid("guest", fmt.Sprintf("no guest at position %d", idx+1))
	}
	if err := ready(&s.Guests[idx]); err != nil {
		return err
	}
	g := &s.Guests[idx]
	if !g.Paid {
		res, err := c.charge(ctx, s, "guest:"+g.OrderID, g.Totals.TotalCents, []string{g.OrderID},
			fmt.Sprintf("order %s", g.OrderNumber))
		if err != nil {
			return err
		}
		g.Paid = true
		c.cfg.Log.Info("charge", s.ID, fmt.Sprintf("guest %d charged %d (%s)", g.GuestNumber, g.Totals.TotalCents, res.ChargeID))
	}
	return c.finalize(ctx, s, idx, floor)
}

// PayParty charges the sum of every guest's order once and then commits
// each guest's pod in turn.  If the combined charge already succeeded
// only the unfinished commits are retried.
func (c *Coordinator) PayParty(ctx context.Context, s *model.PartySession, floor *pod.PartnerIndex) error {
	for i := range s.Guests {
		if err := ready(&s.Guests[i]); err != nil {
			return err
		}
	}
	if s.PartyChargeID == "" {
		var amount int64
		ids := make([]string, 0, len(s.Guests))
		for _, g := range s.Guests {
			if g.Paid {
				continue
			}
			amount += g.Totals.TotalCents
			ids = append(ids, g.OrderID)
		}
		if len(ids) > 0 {
			res, err := c.charge(ctx, s, partyChargeKey, amount, ids, fmt.Sprintf("party of %d", s.PartySize))
			if err != nil {
				return err
			}
			s.PartyChargeID = res.ChargeID
			c.cfg.Log.Info("charge", s.ID, fmt.Sprintf("party charged %d for %d orders (%s)", amount, len(ids), res.ChargeID))
		}
		for i := range s.Guests {
			s.Guests[i].Paid = true
		}
	}
	for i := range s.Guests {
		if err := c.finalize(ctx, s, i, floor); err != nil {
			return err
		}
	}
	return nil
}

func ready(g *model.GuestOrder) error {
	if !g.Submitted() {
		return kioskerr.Invalid("order", fmt.Sprintf("guest %d has not submitted an order", g.GuestNumber))
	}
	if !g.Pod.IsAssigned() {
		return kioskerr.Invalid("pod", fmt.Sprintf("guest %d has no pod", g.GuestNumber))
	}
	return nil
}

// charge issues one gateway call under the idempotency key stored for
// name, minting the key on first use.
func (c *Coordinator) charge(ctx context.Context, s *model.PartySession, name string, amount int64, orderIDs []string, desc string) (ChargeResult, error) {
	if s.ChargeKeys == nil {
		s.ChargeKeys = map[string]string{}
	}
	key, ok := s.ChargeKeys[name]
	if !ok {
		key = uuid.NewString()
		s.ChargeKeys[name] = key
	}
	res, err := c.cfg.Gateway.Charge(ctx, ChargeRequest{
		IdempotencyKey: key,
		AmountCents:    amount,
		Currency:       c.cfg.Currency,
		OrderIDs:       orderIDs,
		Description:    desc,
	})
	if err != nil {
		c.cfg.Log.Error("charge", s.ID, "charge failed", err)
		return ChargeResult{}, &kioskerr.SubmissionError{Op: "charge", Err: err}
	}
	return res, nil
}

// finalize reserves guest idx's pod and marks their order paid.  A dual
// pod whose partner no other guest in the party holds reserves the partner
// under the same order.
func (c *Coordinator) finalize(ctx context.Context, s *model.PartySession, idx int, floor *pod.PartnerIndex) error {
	g := &s.Guests[idx]
	if g.SeatCommitted {
		return nil
	}
	method := model.SelectionCustomer
	if g.PodAutoAssigned {
		method = model.SelectionAuto
	}
	now := c.cfg.Clock.Now().UTC()
	expires := now.Add(c.cfg.ReservationTTL)

	seats := []string{g.Pod.SeatID}
	if floor != nil && floor.IsDual(g.Pod.SeatID) {
		if p, ok := floor.Partner(g.Pod.SeatID); ok && !heldByParty(s, p.ID, idx) {
			seats = append(seats, p.ID)
		}
	}
	for i, id := range seats {
		err := c.cfg.Seats.ReserveSeat(ctx, model.PodReservation{
			SeatID:     id,
			OrderID:    g.OrderID,
			Method:     method,
			AssignedAt: now,
			ExpiresAt:  expires,
		})
		if errors.Is(err, pod.ErrSeatUnavailable) {
			c.cfg.Log.Warn("reserve_seat", s.ID, fmt.Sprintf("pod %s taken before guest %d could reserve it", id, g.GuestNumber))
			c.release(ctx, s.ID, g.OrderID, seats[:i])
			return &kioskerr.ConcurrencyError{SeatID: g.Pod.SeatID, GuestIndex: idx}
		}
		if err != nil {
			c.cfg.Log.Error("reserve_seat", s.ID, fmt.Sprintf("reserving pod %s failed", id), err)
			return &kioskerr.SubmissionError{Op: "reserve pod", Err: err}
		}
	}

	if err := c.cfg.Orders.UpdateOrder(ctx, g.OrderID, OrderUpdate{
		PaymentStatus:        PaymentStatusPaid,
		SeatID:               g.Pod.SeatID,
		PodSelectionMethod:   method,
		PodAssignedAt:        &now,
		PodReservationExpiry: &expires,
	}); err != nil {
		c.cfg.Log.Error("update_order", s.ID, fmt.Sprintf("updating order %s failed", g.OrderID), err)
		return &kioskerr.SubmissionError{Op: "update order", Err: err}
	}
	g.SeatCommitted = true
	c.cfg.Log.Info("reserve_seat", s.ID, fmt.Sprintf("guest %d reserved pod %s until %s", g.GuestNumber, g.Pod.SeatID, expires.Format(time.RFC3339)))

	if c.cfg.Notifier != nil {
		ev := queue.KitchenHandoffEvent{
			OrderID:            g.OrderID,
			OrderNumber:        g.OrderNumber,
			KitchenOrderNumber: g.KitchenOrderNumber,
			LocationID:         s.LocationID,
			SessionID:          s.ID,
			GuestNumber:        g.GuestNumber,
			GuestName:          g.GuestName,
			SeatID:             g.Pod.SeatID,
			PodSelectionMethod: string(method),
			TotalCents:         g.Totals.TotalCents,
			PaidAt:             now.Format(time.RFC3339),
		}
		// hand-off failures never undo a payment
		if err := c.cfg.Notifier.OrderPaid(ctx, ev); err != nil {
			c.cfg.Log.Error("handoff", s.ID, fmt.Sprintf("kitchen hand-off for order %s failed", g.OrderID), err)
		}
	}
	return nil
}

// release gives back seats reserved for orderID once the rest of the pod
// was lost.  A failed release is logged; the sweeper frees the seat when
// its reservation lapses.
func (c *Coordinator) release(ctx context.Context, sessionID, orderID string, seats []string) {
	for _, id := range seats {
		if err := c.cfg.Seats.ReleaseSeat(ctx, id, orderID); err != nil {
			c.cfg.Log.Error("release_seat", sessionID, fmt.Sprintf("releasing pod %s failed", id), err)
			continue
		}
		c.cfg.Log.Info("release_seat", sessionID, fmt.Sprintf("pod %s released for order %s", id, orderID))
	}
}

func heldByParty(s *model.PartySession, seatID string, except int) bool {
	for i, g := range s.Guests {
		if i != except && g.Pod.IsAssigned() && g.Pod.SeatID == seatID {
			return true
		}
	}
	return false
}
