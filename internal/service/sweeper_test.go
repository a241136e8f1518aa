package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type expirer struct {
	at  []time.Time
	ids []string
	err error
}

func (e *expirer) ExpireReservations(_ context.Context, now time.Time) ([]string, error) {
	e.at = append(e.at, now)
	return e.ids, e.err
}

func TestSweepUsesClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	pods := &expirer{ids: []string{"p1", "p2"}}
	s := NewReservationSweeper(pods, clockwork.NewFakeClockAt(now), nil)

	ids, err := s.RunOnce(context.Background())
	if err != nil || len(ids) != 2 {
		t.Fatalf("RunOnce = %v, %v", ids, err)
	}
	if len(pods.at) != 1 || !pods.at[0].Equal(now) {
		t.Fatalf("swept at %v", pods.at)
	}
}

func TestSweepError(t *testing.T) {
	boom := errors.New("deadlock")
	s := NewReservationSweeper(&expirer{err: boom}, clockwork.NewFakeClock(), nil)
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestSweeperSchedule(t *testing.T) {
	s := NewReservationSweeper(&expirer{}, nil, nil)
	if err := s.Start("not a spec"); err == nil {
		t.Fatal("bad spec accepted")
	}
	s = NewReservationSweeper(&expirer{}, nil, nil)
	if err := s.Start("@every 1h"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
