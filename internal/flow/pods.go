package flow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/pod"
)

// PodOption is one pod on the floor map as the active guest sees it.
// Hidden dual partners are never listed.
type PodOption struct {
	Seat       model.Seat `json:"seat"`
	Dual       bool       `json:"dual"`
	Selectable bool       `json:"selectable"`
	// ClaimedBy is the 1-based number of the party member holding the
	// pod, or 0.
	ClaimedBy int `json:"claimed_by,omitempty"`
}

// PodView is the POD_SELECTION screen.
type PodView struct {
	GuestNumber   int                `json:"guest_number"`
	Pods          []PodOption        `json:"pods"`
	CanSelectDual bool               `json:"can_select_dual"`
	Selection     model.PodSelection `json:"selection"`
	Issue         *model.PodIssue    `json:"issue,omitempty"`
	FetchedAt     time.Time          `json:"fetched_at"`
}

func (c *Controller) snapshot(ctx context.Context) ([]model.Seat, time.Time, error) {
	seats, at := c.poller.Latest()
	if len(seats) > 0 {
		return seats, at, nil
	}
	seats, err := c.poller.Refresh(ctx)
	if err != nil {
		c.deps.Log.Error("fetch_pods", c.s.ID, "pod snapshot unavailable", err)
		return nil, time.Time{}, &kioskerr.SubmissionError{Op: "fetch pods", Err: err}
	}
	_, at = c.poller.Latest()
	return seats, at, nil
}

func (c *Controller) claims() []model.PodSelection {
	out := make([]model.PodSelection, len(c.s.Guests))
	for i, g := range c.s.Guests {
		out[i] = g.Pod
	}
	return out
}

func (c *Controller) allocator(seats []model.Seat) *pod.Allocator {
	return pod.NewAllocator(pod.Input{
		Seats:       seats,
		PartySize:   c.s.PartySize,
		PaymentType: c.s.PaymentType,
		GuestIndex:  c.s.CurrentGuestIndex,
		Claims:      c.claims(),
		NoDual:      len(c.s.Reselect) > 0,
	})
}

// Seats renders the floor map for the active guest from the latest
// snapshot.
func (c *Controller) Seats(ctx context.Context) (PodView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("list pods", model.ViewPodSelection); err != nil {
		return PodView{}, err
	}
	seats, at, err := c.snapshot(ctx)
	if err != nil {
		return PodView{}, err
	}
	return c.podView(seats, at), nil
}

// RefreshSeats fetches a new snapshot immediately.
func (c *Controller) RefreshSeats(ctx context.Context) (PodView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("refresh pods", model.ViewPodSelection); err != nil {
		return PodView{}, err
	}
	seats, err := c.poller.Refresh(ctx)
	if err != nil {
		return PodView{}, &kioskerr.SubmissionError{Op: "fetch pods", Err: err}
	}
	_, at := c.poller.Latest()
	return c.podView(seats, at), nil
}

func (c *Controller) podView(seats []model.Seat, at time.Time) PodView {
	a := c.allocator(seats)
	claimed := a.Claimed()
	v := PodView{
		GuestNumber:   c.s.Current().GuestNumber,
		CanSelectDual: a.CanSelectDualPod(),
		Selection:     c.s.Current().Pod,
		FetchedAt:     at,
	}
	if c.s.PodIssue != nil {
		issue := *c.s.PodIssue
		v.Issue = &issue
	}
	idx := a.Index()
	for _, s := range idx.Seats() {
		if idx.IsHiddenPartner(s.ID) {
			continue
		}
		opt := PodOption{Seat: s, Dual: idx.IsDual(s.ID), Selectable: a.Select(s.ID) == nil}
		if g, ok := claimed[s.ID]; ok {
			opt.ClaimedBy = g + 1
		}
		v.Pods = append(v.Pods, opt)
	}
	return v
}

func issueFor(err error) *model.PodIssue {
	var ae *kioskerr.AllocationError
	if !errors.As(err, &ae) {
		return nil
	}
	kind := model.IssueUnavailable
	switch ae.Kind {
	case kioskerr.NoneAvailable:
		kind = model.IssueNoneAvailable
	case kioskerr.DualIneligible:
		kind = model.IssueDualIneligible
	case kioskerr.AlreadyClaimed:
		kind = model.IssueSeatTaken
	}
	return &model.PodIssue{Kind: kind, Message: ae.Message}
}

// SelectPod chooses seatID for the active guest.  A refused selection
// leaves the guest's current choice untouched.
func (c *Controller) SelectPod(ctx context.Context, seatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("select pod", model.ViewPodSelection); err != nil {
		return err
	}
	seats, _, err := c.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := c.allocator(seats).Select(seatID); err != nil {
		c.s.PodIssue = issueFor(err)
		c.deps.Log.Warn("select_pod", c.s.ID, err.Error())
		return err
	}
	g := c.s.Current()
	g.Pod = model.Assigned(seatID)
	g.PodAutoAssigned = false
	c.s.PodIssue = nil
	return nil
}

// RequestAutoPod asks for a pod to be picked on confirm.
func (c *Controller) RequestAutoPod() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("auto pod", model.ViewPodSelection); err != nil {
		return err
	}
	c.s.Current().Pod = model.AutoRequest()
	c.s.PodIssue = nil
	return nil
}

// ConfirmPod locks in the active guest's pod against a fresh snapshot and
// moves on.  If no pod can be given the session stays here with a
// PodIssue describing what the guest can do; nothing reaches PAYMENT
// without a pod.
func (c *Controller) ConfirmPod(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("confirm pod", model.ViewPodSelection); err != nil {
		return err
	}
	g := c.s.Current()
	if g.Pod.Choice == model.PodUnset {
		return kioskerr.Invalid("pod", "choose a pod or let us pick one")
	}
	seats, err := c.poller.Refresh(ctx)
	if err != nil {
		return &kioskerr.SubmissionError{Op: "fetch pods", Err: err}
	}
	a := c.allocator(seats)

	var seatID string
	auto := false
	switch g.Pod.Choice {
	case model.PodAutoRequested:
		seat, err := a.AutoAssign()
		if err != nil {
			return c.allocationFailed(err)
		}
		seatID, auto = seat.ID, true
	default:
		if err := a.Select(g.Pod.SeatID); err != nil {
			return c.allocationFailed(err)
		}
		seatID, auto = g.Pod.SeatID, g.PodAutoAssigned
	}
	g.Pod = model.Assigned(seatID)
	g.PodAutoAssigned = auto
	c.s.PodIssue = nil
	c.deps.Log.Info("confirm_pod", c.s.ID, fmt.Sprintf("guest %d takes pod %s (auto=%v)", g.GuestNumber, seatID, auto))

	if len(c.s.Reselect) > 0 {
		c.s.Reselect = c.s.Reselect[1:]
		if len(c.s.Reselect) > 0 {
			c.s.CurrentGuestIndex = c.s.Reselect[0]
			return nil
		}
		c.moveTo(model.ViewPayment)
		return nil
	}

	next := pod.Branch(c.s.PartySize, c.s.PaymentType, c.s.CurrentGuestIndex, a.IsDualPod(seatID))
	if next.PartnerGuest >= 0 {
		partner, ok := a.Index().Partner(seatID)
		if !ok {
			return c.allocationFailed(&kioskerr.AllocationError{Kind: kioskerr.PartnerMissing, SeatID: seatID, Message: "the second seat of this dual pod is not available"})
		}
		pg := &c.s.Guests[next.PartnerGuest]
		pg.Pod = model.Assigned(partner.ID)
		pg.PodAutoAssigned = auto
		c.deps.Log.Info("confirm_pod", c.s.ID, fmt.Sprintf("guest %d shares dual pod via seat %s", pg.GuestNumber, partner.ID))
	}
	c.s.CurrentGuestIndex = next.GuestIndex
	c.moveTo(next.View)
	return nil
}

// allocationFailed keeps the guest in POD_SELECTION with the problem
// recorded and any auto request withdrawn.
func (c *Controller) allocationFailed(err error) error {
	g := c.s.Current()
	g.Pod = model.PodSelection{}
	g.PodAutoAssigned = false
	c.s.PodIssue = issueFor(err)
	c.deps.Log.Warn("confirm_pod", c.s.ID, fmt.Sprintf("guest %d: %v", g.GuestNumber, err))
	return err
}

// Pay charges the party (SINGLE) or the active guest (SEPARATE).  A pod
// lost to another party sends the affected guests back to choose again;
// once they confirm, Pay finishes without charging twice.
func (c *Controller) Pay(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("pay", model.ViewPayment); err != nil {
		return err
	}
	seats, _, err := c.snapshot(ctx)
	if err != nil {
		return err
	}
	floor := pod.NewPartnerIndex(seats)
	if err := c.deps.Payments.Pay(ctx, c.s, floor); err != nil {
		var ce *kioskerr.ConcurrencyError
		if errors.As(err, &ce) {
			c.reselect(ctx, ce, floor)
		}
		return err
	}

	if c.s.PaymentType == model.PaySeparate && !c.s.IsLastGuest() {
		c.moveTo(model.ViewPass)
		return nil
	}
	c.moveTo(model.ViewComplete)
	c.deps.Log.Info("complete", c.s.ID, fmt.Sprintf("party of %d complete", c.s.PartySize))
	return nil
}

func (c *Controller) reselect(ctx context.Context, ce *kioskerr.ConcurrencyError, floor *pod.PartnerIndex) {
	reset := []int{ce.GuestIndex}
	if floor.IsDual(ce.SeatID) {
		if p, ok := floor.Partner(ce.SeatID); ok {
			for i, g := range c.s.Guests {
				if i != ce.GuestIndex && !g.SeatCommitted && g.Pod.SeatID == p.ID {
					reset = append(reset, i)
				}
			}
		}
	}
	for _, i := range reset {
		c.s.Guests[i].Pod = model.PodSelection{}
		c.s.Guests[i].PodAutoAssigned = false
		if !slices.Contains(c.s.Reselect, i) {
			c.s.Reselect = append(c.s.Reselect, i)
		}
	}
	slices.Sort(c.s.Reselect)
	c.s.CurrentGuestIndex = c.s.Reselect[0]
	c.s.PodIssue = &model.PodIssue{
		Kind:    model.IssueSeatTaken,
		Message: "that pod was just taken; please choose another",
	}
	c.deps.Log.Warn("reselect", c.s.ID, fmt.Sprintf("pod %s lost; guests %v choose again", ce.SeatID, c.s.Reselect))
	c.moveTo(model.ViewPodSelection)
	if _, err := c.poller.Refresh(ctx); err != nil {
		c.deps.Log.Error("fetch_pods", c.s.ID, "refresh after pod conflict failed", err)
	}
}
