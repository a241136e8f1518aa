package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/iliyamo/pod-kiosk/internal/logger"
)

// ReservationExpirer releases pods whose reservation lapsed before now.
type ReservationExpirer interface {
	ExpireReservations(ctx context.Context, now time.Time) ([]string, error)
}

// ReservationSweeper frees pods that were reserved at payment but never
// checked into.  It runs on a cron schedule and skips a tick while the
// previous sweep is still running.
type ReservationSweeper struct {
	pods  ReservationExpirer
	clock clockwork.Clock
	log   *logger.Logger
	cron  *cron.Cron
}

func NewReservationSweeper(pods ReservationExpirer, clock clockwork.Clock, log *logger.Logger) *ReservationSweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &ReservationSweeper{pods: pods, clock: clock, log: log}
}

// Start schedules the sweep with a standard cron spec or a descriptor
// such as "@every 1m".
func (s *ReservationSweeper) Start(spec string) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule reservation sweep %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.Info("sweeper_start", "", "reservation sweep scheduled "+spec)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *ReservationSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("sweeper_stop", "", "reservation sweep stopped")
}

// RunOnce performs a single sweep and returns the released pod IDs.
func (s *ReservationSweeper) RunOnce(ctx context.Context) ([]string, error) {
	ids, err := s.pods.ExpireReservations(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("sweep_reservations", "", "expiring reservations failed", err)
		return nil, err
	}
	if len(ids) > 0 {
		s.log.Info("sweep_reservations", "", fmt.Sprintf("released %d pods: %s", len(ids), strings.Join(ids, ",")))
	}
	return ids, nil
}
