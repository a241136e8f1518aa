// Package pod decides which pods a kiosk party may take.  Everything here
// except Poller is pure: it reads a seat snapshot and the party's existing
// choices and never writes to the seat registry.
package pod

import "github.com/iliyamo/pod-kiosk/internal/model"

// PartnerIndex answers dual-pod questions over a snapshot.  The registry
// stores the pair link on one seat only; the index resolves it in both
// directions.
type PartnerIndex struct {
	seats   map[string]model.Seat
	order   []string
	partner map[string]string
	hidden  map[string]bool // seats that are the target of a forward link
}

// NewPartnerIndex indexes a snapshot.
func NewPartnerIndex(seats []model.Seat) *PartnerIndex {
	idx := &PartnerIndex{
		seats:   make(map[string]model.Seat, len(seats)),
		order:   make([]string, 0, len(seats)),
		partner: map[string]string{},
		hidden:  map[string]bool{},
	}
	for _, s := range seats {
		idx.seats[s.ID] = s
		idx.order = append(idx.order, s.ID)
	}
	for _, s := range seats {
		if s.DualPartnerID == nil || *s.DualPartnerID == "" {
			continue
		}
		p := *s.DualPartnerID
		if _, ok := idx.seats[p]; !ok {
			continue
		}
		idx.partner[s.ID] = p
		idx.partner[p] = s.ID
		idx.hidden[p] = true
	}
	return idx
}

// Seat looks up a seat by ID.
func (x *PartnerIndex) Seat(id string) (model.Seat, bool) {
	s, ok := x.seats[id]
	return s, ok
}

// Seats returns the snapshot in registry order.
func (x *PartnerIndex) Seats() []model.Seat {
	out := make([]model.Seat, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.seats[id])
	}
	return out
}

// Partner returns the other seat of a dual pair, whichever side stores
// the link.
func (x *PartnerIndex) Partner(id string) (model.Seat, bool) {
	p, ok := x.partner[id]
	if !ok {
		return model.Seat{}, false
	}
	return x.seats[p], true
}

// IsDual reports whether the seat is a dual pod: typed DUAL and linked to
// a partner in either direction.
func (x *PartnerIndex) IsDual(id string) bool {
	s, ok := x.seats[id]
	if !ok || s.Type != model.PodDual {
		return false
	}
	return (s.DualPartnerID != nil && *s.DualPartnerID != "") || x.hidden[id]
}

// IsHiddenPartner reports whether the seat is the non-selectable half of
// a dual pair.
func (x *PartnerIndex) IsHiddenPartner(id string) bool { return x.hidden[id] }
