// Package flow drives one kiosk session through its screens.
//
// The Controller owns the PartySession and is the only thing that mutates
// it.  Each exported method is one guest action; it either applies a
// complete transition or returns an error and leaves the session as it
// was.  Errors are the kinds in package kioskerr, so callers can tell
// input problems from retryable network failures and pod conflicts.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/order"
	"github.com/iliyamo/pod-kiosk/internal/pod"
)

// DefaultPollInterval is how often the pod map refreshes while a guest is
// choosing a pod.
const DefaultPollInterval = 5 * time.Second

// MenuCatalog supplies the ordered menu steps for a locale.
type MenuCatalog interface {
	FetchMenu(ctx context.Context, locale string) ([]model.Step, error)
}

// OrderSubmitter creates a guest's backend order.
type OrderSubmitter interface {
	Submit(ctx context.Context, sessionID string, guest *model.GuestOrder, menu *order.Menu) error
}

// Payer charges the party and commits pods.
type Payer interface {
	Pay(ctx context.Context, s *model.PartySession, floor *pod.PartnerIndex) error
}

// Deps are the collaborators a Controller needs.
type Deps struct {
	Menu         *order.Menu
	Orders       OrderSubmitter
	Seats        pod.SeatRegistry
	Payments     Payer
	Clock        clockwork.Clock
	PollInterval time.Duration
	Log          *logger.Logger
}

// Controller is the state machine for one party.  It is safe to call from
// several goroutines, but a kiosk only ever has one guest acting at a time.
type Controller struct {
	mu      sync.Mutex
	s       *model.PartySession
	deps    Deps
	poller  *pod.Poller
	base    context.Context
	stopAll context.CancelFunc
}

// New validates setup and returns a controller at the NAME screen for the
// first guest.
func New(id, locationID string, setup PartySetup, d Deps) (*Controller, error) {
	setup, err := setup.Normalize()
	if err != nil {
		return nil, err
	}
	if d.Menu == nil {
		return nil, errors.New("flow: menu is required")
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.PollInterval <= 0 {
		d.PollInterval = DefaultPollInterval
	}
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		s:       model.NewPartySession(id, locationID, setup.PartySize, setup.PaymentType),
		deps:    d,
		poller:  pod.NewPoller(d.Seats, locationID, d.PollInterval, d.Clock, d.Log, id),
		base:    base,
		stopAll: cancel,
	}
	d.Log.Info("session_start", id, fmt.Sprintf("party of %d paying %s", setup.PartySize, setup.PaymentType))
	return c, nil
}

// Snapshot returns a copy of the session for rendering.
func (c *Controller) Snapshot() model.PartySession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Clone()
}

// Menu returns the menu the party is ordering from.
func (c *Controller) Menu() *order.Menu { return c.deps.Menu }

// Close stops background work.  The session must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poller.Stop()
	c.stopAll()
	c.deps.Log.Info("session_end", c.s.ID, fmt.Sprintf("closed at %s", c.s.CurrentView))
}

func (c *Controller) require(action string, views ...model.View) error {
	for _, v := range views {
		if c.s.CurrentView == v {
			return nil
		}
	}
	return &kioskerr.StateError{Action: action, View: string(c.s.CurrentView)}
}

func (c *Controller) moveTo(v model.View) {
	from := c.s.CurrentView
	if from == model.ViewPodSelection && v != model.ViewPodSelection {
		c.poller.Stop()
	}
	c.s.CurrentView = v
	if v == model.ViewPodSelection && from != model.ViewPodSelection {
		c.poller.Reset()
		c.poller.Start(c.base)
	}
	c.deps.Log.Debug("transition", c.s.ID, fmt.Sprintf("guest %d: %s -> %s", c.s.CurrentGuestIndex+1, from, v))
}

// SubmitName records the active guest's name and opens the menu.
func (c *Controller) SubmitName(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("submit name", model.ViewName); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if err := check(guestName{Name: name}); err != nil {
		return err
	}
	c.s.Current().GuestName = name
	c.s.CurrentStepIndex = 0
	c.moveTo(model.ViewMenu)
	return nil
}

func (c *Controller) builder(action string) (*order.Builder, error) {
	if err := c.require(action, model.ViewMenu, model.ViewReview); err != nil {
		return nil, err
	}
	g := c.s.Current()
	if g.Submitted() {
		return nil, &kioskerr.StateError{Action: action, View: "SUBMITTED"}
	}
	return order.NewBuilder(g, c.deps.Menu), nil
}

// UpdateCart sets a quantity for a MULTIPLE-mode item.  maxQty of 0 means
// the section's own limit.
func (c *Controller) UpdateCart(itemID string, qty, maxQty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.builder("update cart")
	if err != nil {
		return err
	}
	return b.UpdateCart(itemID, qty, maxQty)
}

// UpdateSlider moves a slider item to value.
func (c *Controller) UpdateSlider(itemID string, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.builder("update slider")
	if err != nil {
		return err
	}
	return b.UpdateSlider(itemID, value)
}

// UpdateSelection picks the single choice for a section.
func (c *Controller) UpdateSelection(sectionID, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.builder("update selection")
	if err != nil {
		return err
	}
	return b.UpdateSelection(sectionID, itemID)
}

// RunningTotal is the active guest's pre-tax total as currently built.
func (c *Controller) RunningTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return order.RunningTotal(c.s.Current(), c.deps.Menu)
}

// NextStep advances through the menu once the current step's required
// sections are filled; after the last step it opens REVIEW.
func (c *Controller) NextStep() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("next step", model.ViewMenu); err != nil {
		return err
	}
	steps := len(c.deps.Menu.Steps)
	if steps > 0 {
		b := order.NewBuilder(c.s.Current(), c.deps.Menu)
		if err := b.ValidateStep(c.s.CurrentStepIndex); err != nil {
			return err
		}
	}
	if c.s.CurrentStepIndex+1 < steps {
		c.s.CurrentStepIndex++
		return nil
	}
	c.moveTo(model.ViewReview)
	return nil
}

// PreviousStep goes back one menu step.  On the first step it does
// nothing; from REVIEW it reopens the last step.
func (c *Controller) PreviousStep() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("previous step", model.ViewMenu, model.ViewReview); err != nil {
		return err
	}
	if c.s.CurrentView == model.ViewReview {
		if c.s.Current().Submitted() {
			return &kioskerr.StateError{Action: "previous step", View: "SUBMITTED"}
		}
		c.s.CurrentStepIndex = max(len(c.deps.Menu.Steps)-1, 0)
		c.moveTo(model.ViewMenu)
		return nil
	}
	if c.s.CurrentStepIndex > 0 {
		c.s.CurrentStepIndex--
	}
	return nil
}

// SubmitOrder sends the active guest's order.  On failure the session is
// unchanged and the call can be repeated; a guest whose order already
// exists is never sent again.
func (c *Controller) SubmitOrder(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("submit order", model.ViewReview); err != nil {
		return err
	}
	g := c.s.Current()
	b := order.NewBuilder(g, c.deps.Menu)
	for i := range c.deps.Menu.Steps {
		if err := b.ValidateStep(i); err != nil {
			return err
		}
	}
	if err := c.deps.Orders.Submit(ctx, c.s.ID, g, c.deps.Menu); err != nil {
		return err
	}

	switch {
	case c.s.PaymentType == model.PaySeparate:
		c.moveTo(model.ViewPodSelection)
	case c.s.IsLastGuest():
		c.s.CurrentGuestIndex = 0
		c.moveTo(model.ViewPodSelection)
	default:
		c.moveTo(model.ViewPass)
	}
	return nil
}

// HandOff is the device being passed to the next guest.
func (c *Controller) HandOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("hand off", model.ViewPass); err != nil {
		return err
	}
	if c.s.IsLastGuest() {
		return &kioskerr.StateError{Action: "hand off", View: "LAST_GUEST"}
	}
	c.s.CurrentGuestIndex++
	c.s.CurrentStepIndex = 0
	c.moveTo(model.ViewName)
	c.deps.Log.Info("handoff", c.s.ID, fmt.Sprintf("device passed to guest %d", c.s.CurrentGuestIndex+1))
	return nil
}
