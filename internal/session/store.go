// Package session keeps the active party for each kiosk device.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/pod-kiosk/internal/flow"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/order"
)

// ErrNoSession is returned when a device has no active party.
var ErrNoSession = errors.New("no active session for device")

// Factory builds the per-session collaborators for a location.  Menu is
// filled in by the store.
type Factory func(locationID string) flow.Deps

// Store maps a kiosk device to its one active controller.
type Store struct {
	mu       sync.Mutex
	active   map[string]*flow.Controller
	menus    flow.MenuCatalog
	factory  Factory
	location string
	log      *logger.Logger
}

// NewStore returns an empty store.
func NewStore(locationID string, menus flow.MenuCatalog, factory Factory, log *logger.Logger) *Store {
	return &Store{
		active:   map[string]*flow.Controller{},
		menus:    menus,
		factory:  factory,
		location: locationID,
		log:      log,
	}
}

// Start opens a new party on deviceID, replacing (and closing) any party
// already running there.
func (s *Store) Start(ctx context.Context, deviceID, locale string, setup flow.PartySetup) (*flow.Controller, error) {
	steps, err := s.menus.FetchMenu(ctx, locale)
	if err != nil {
		return nil, fmt.Errorf("fetch menu: %w", err)
	}
	deps := s.factory(s.location)
	deps.Menu = order.NewMenu(steps)
	id := uuid.NewString()
	c, err := flow.New(id, s.location, setup, deps)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev := s.active[deviceID]
	s.active[deviceID] = c
	s.mu.Unlock()
	if prev != nil {
		s.log.Info("session_replace", id, fmt.Sprintf("device %s abandoned a session", deviceID))
		prev.Close()
	}
	return c, nil
}

// Get returns the active controller for deviceID.
func (s *Store) Get(deviceID string) (*flow.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.active[deviceID]
	if !ok {
		return nil, ErrNoSession
	}
	return c, nil
}

// End tears down the party on deviceID from whatever state it is in.
func (s *Store) End(deviceID string) (model.PartySession, error) {
	s.mu.Lock()
	c, ok := s.active[deviceID]
	delete(s.active, deviceID)
	s.mu.Unlock()
	if !ok {
		return model.PartySession{}, ErrNoSession
	}
	snap := c.Snapshot()
	c.Close()
	return snap, nil
}

// Len reports how many devices have an active party.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// CloseAll ends every party; used on shutdown.
func (s *Store) CloseAll() {
	s.mu.Lock()
	all := s.active
	s.active = map[string]*flow.Controller{}
	s.mu.Unlock()
	for _, c := range all {
		c.Close()
	}
}
