package session

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/pod-kiosk/internal/flow"
	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/model"
)

type staticMenu struct {
	locale string
	err    error
}

func (m *staticMenu) FetchMenu(_ context.Context, locale string) ([]model.Step, error) {
	m.locale = locale
	if m.err != nil {
		return nil, m.err
	}
	return []model.Step{{ID: "bowl", Sections: []model.Section{{
		ID: "broth", Mode: model.ModeSingle,
		Items: []model.MenuItem{{ID: "shoyu", BasePriceCents: 1100}},
	}}}}, nil
}

func newStore(menu *staticMenu) *Store {
	return NewStore("loc-1", menu, func(string) flow.Deps {
		return flow.Deps{Log: logger.Discard()}
	}, logger.Discard())
}

func TestStartGetEnd(t *testing.T) {
	menu := &staticMenu{}
	s := newStore(menu)

	c, err := s.Start(context.Background(), "dev-1", "ja", flow.PartySetup{PartySize: 2, PaymentType: model.PaySeparate})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if menu.locale != "ja" {
		t.Fatalf("menu fetched for %q", menu.locale)
	}
	got, err := s.Get("dev-1")
	if err != nil || got != c {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if _, err := s.Get("dev-2"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Get(dev-2) = %v", err)
	}

	snap, err := s.End("dev-1")
	if err != nil || snap.PartySize != 2 || snap.LocationID != "loc-1" {
		t.Fatalf("End = %+v, %v", snap, err)
	}
	if s.Len() != 0 {
		t.Fatal("session still tracked after End")
	}
	if _, err := s.End("dev-1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second End = %v", err)
	}
}

func TestStartReplacesPreviousParty(t *testing.T) {
	s := newStore(&staticMenu{})
	first, err := s.Start(context.Background(), "dev-1", "en", flow.PartySetup{PartySize: 1})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Start(context.Background(), "dev-1", "en", flow.PartySetup{PartySize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if first == second || s.Len() != 1 {
		t.Fatal("party not replaced")
	}
	if first.Snapshot().ID == second.Snapshot().ID {
		t.Fatal("session ids reused")
	}
	s.CloseAll()
	if s.Len() != 0 {
		t.Fatal("CloseAll left sessions")
	}
}

func TestStartRejectsBadSetup(t *testing.T) {
	s := newStore(&staticMenu{})
	_, err := s.Start(context.Background(), "dev-1", "en", flow.PartySetup{PartySize: 12, PaymentType: model.PaySingle})
	var ve *kioskerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Start = %v, want ValidationError", err)
	}
	if s.Len() != 0 {
		t.Fatal("invalid party stored")
	}

	s = newStore(&staticMenu{err: errors.New("db down")})
	if _, err := s.Start(context.Background(), "dev-1", "en", flow.PartySetup{PartySize: 1}); err == nil {
		t.Fatal("expected menu error")
	}
}
