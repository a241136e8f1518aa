package pod

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/model"
)

// ErrSeatUnavailable is returned by a SeatRegistry when a conditional
// reservation finds the seat no longer AVAILABLE.
var ErrSeatUnavailable = errors.New("seat no longer available")

// SeatRegistry is the authoritative seat service.
type SeatRegistry interface {
	FetchSeats(ctx context.Context, locationID string) ([]model.Seat, error)
	// ReserveSeat moves a seat from AVAILABLE to RESERVED and fails with
	// ErrSeatUnavailable when the seat is in any other state.
	ReserveSeat(ctx context.Context, r model.PodReservation) error
}

// Poller refreshes a seat snapshot on a fixed interval while a guest is
// choosing a pod.  It is started on entry to POD_SELECTION and stopped on
// every exit; a stopped poller can be started again.
type Poller struct {
	registry   SeatRegistry
	locationID string
	interval   time.Duration
	clock      clockwork.Clock
	log        *logger.Logger
	sessionID  string

	mu      sync.Mutex
	seats   []model.Seat
	fetched time.Time
	issued  uint64 // sequence of the last fetch started
	kept    uint64 // sequence of the fetch behind seats
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller returns a stopped poller.
func NewPoller(registry SeatRegistry, locationID string, interval time.Duration, clock clockwork.Clock, log *logger.Logger, sessionID string) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		registry:   registry,
		locationID: locationID,
		interval:   interval,
		clock:      clock,
		log:        log,
		sessionID:  sessionID,
	}
}

// Start fetches a snapshot immediately and then every interval until Stop
// or ctx is cancelled.  Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels polling and waits for the loop to exit.  Results of a fetch
// that was in flight are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poller is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Reset forgets the current snapshot so the next reader fetches its own.
// Fetches already in flight are discarded when they land.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seats, p.fetched = nil, time.Time{}
	p.kept = p.issued
}

// Latest returns the most recent snapshot and when it was fetched.
func (p *Poller) Latest() ([]model.Seat, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Seat(nil), p.seats...), p.fetched
}

// Refresh fetches a snapshot now, outside the polling schedule.  If a
// fetch started later has already landed, that newer snapshot is
// returned instead.
func (p *Poller) Refresh(ctx context.Context) ([]model.Seat, error) {
	seq := p.begin()
	seats, err := p.registry.FetchSeats(ctx, p.locationID)
	if err != nil {
		return nil, err
	}
	if !p.store(seq, seats) {
		seats, _ = p.Latest()
		return seats, nil
	}
	return append([]model.Seat(nil), seats...), nil
}

func (p *Poller) begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	return p.issued
}

// store keeps seats unless a fetch started after seq already landed.
func (p *Poller) store(seq uint64, seats []model.Seat) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq <= p.kept {
		return false
	}
	p.seats = seats
	p.fetched = p.clock.Now()
	p.kept = seq
	return true
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	seq := p.begin()
	seats, err := p.registry.FetchSeats(ctx, p.locationID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Error("poll_seats", p.sessionID, "seat snapshot refresh failed", err)
		return
	}
	if !p.store(seq, seats) {
		p.log.Debug("poll_seats", p.sessionID, "dropped a snapshot older than the one held")
	}
}
