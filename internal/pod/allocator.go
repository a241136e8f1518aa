package pod

import (
	"fmt"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/model"
)

// Input is everything the allocator needs to judge a selection for the
// guest at GuestIndex.
type Input struct {
	Seats       []model.Seat
	PartySize   int
	PaymentType model.PaymentType
	GuestIndex  int
	// Claims holds every guest's current pod selection, indexed like
	// PartySession.Guests.  The entry at GuestIndex is ignored.
	Claims []model.PodSelection
	// NoDual withholds dual pods even when the party would be eligible;
	// used while re-selecting after a lost reservation.
	NoDual bool
}

// Allocator validates and auto-chooses pods for one guest.
type Allocator struct {
	in      Input
	idx     *PartnerIndex
	claimed map[string]int // seat ID -> claiming guest index
}

// NewAllocator indexes the snapshot and the seats other guests hold.  A
// dual seat claimed by a guest also claims its partner.
func NewAllocator(in Input) *Allocator {
	a := &Allocator{in: in, idx: NewPartnerIndex(in.Seats), claimed: map[string]int{}}
	for i, c := range in.Claims {
		if i == in.GuestIndex || !c.IsAssigned() {
			continue
		}
		a.claimed[c.SeatID] = i
		if a.idx.IsDual(c.SeatID) {
			if p, ok := a.idx.Partner(c.SeatID); ok {
				if _, taken := a.claimed[p.ID]; !taken {
					a.claimed[p.ID] = i
				}
			}
		}
	}
	return a
}

// Index exposes the partner index built from the snapshot.
func (a *Allocator) Index() *PartnerIndex { return a.idx }

// CanSelectDualPod reports whether this party may take dual pods: two or
// more guests sharing one payment.
func (a *Allocator) CanSelectDualPod() bool {
	return CanSelectDualPod(a.in.PartySize, a.in.PaymentType) && !a.in.NoDual
}

// CanSelectDualPod is the party-level eligibility rule for dual pods.
func CanSelectDualPod(partySize int, pt model.PaymentType) bool {
	return partySize >= 2 && pt == model.PaySingle
}

// IsDualPod reports whether seatID is a dual pod in the snapshot.
func (a *Allocator) IsDualPod(seatID string) bool { return a.idx.IsDual(seatID) }

// Claimed returns the seats held by other guests of the party.
func (a *Allocator) Claimed() map[string]int {
	out := make(map[string]int, len(a.claimed))
	for k, v := range a.claimed {
		out[k] = v
	}
	return out
}

// Select checks whether the current guest may take seatID.  It returns a
// *kioskerr.AllocationError describing the rule that refused it.
func (a *Allocator) Select(seatID string) error {
	seat, ok := a.idx.Seat(seatID)
	if !ok {
		return &kioskerr.AllocationError{Kind: kioskerr.NotSelectable, SeatID: seatID, Message: "this pod is not on the floor map"}
	}
	if a.idx.IsHiddenPartner(seatID) {
		return &kioskerr.AllocationError{Kind: kioskerr.NotSelectable, SeatID: seatID, Message: "this seat belongs to a dual pod; choose the pod itself"}
	}
	if a.idx.IsDual(seatID) && !a.CanSelectDualPod() {
		return &kioskerr.AllocationError{
			Kind:    kioskerr.DualIneligible,
			SeatID:  seatID,
			Message: "dual pods are for parties of two or more paying together",
		}
	}
	if !seat.IsAvailable() {
		return &kioskerr.AllocationError{Kind: kioskerr.NotSelectable, SeatID: seatID, Message: fmt.Sprintf("pod %d is %s", seat.Number, seat.Status)}
	}
	if g, taken := a.claimed[seatID]; taken {
		return &kioskerr.AllocationError{Kind: kioskerr.AlreadyClaimed, SeatID: seatID, Message: fmt.Sprintf("pod %d is already chosen by guest %d", seat.Number, g+1)}
	}
	if a.idx.IsDual(seatID) {
		p, ok := a.idx.Partner(seatID)
		if !ok || !p.IsAvailable() {
			return &kioskerr.AllocationError{Kind: kioskerr.PartnerMissing, SeatID: seatID, Message: "the second seat of this dual pod is not available"}
		}
		if _, taken := a.claimed[p.ID]; taken {
			return &kioskerr.AllocationError{Kind: kioskerr.AlreadyClaimed, SeatID: seatID, Message: "the second seat of this dual pod is already chosen"}
		}
	}
	return nil
}

// Selectable lists the pods the current guest could choose right now, in
// snapshot order.  Hidden partners never appear.
func (a *Allocator) Selectable() []model.Seat {
	var out []model.Seat
	for _, s := range a.idx.Seats() {
		if a.Select(s.ID) == nil {
			out = append(out, s)
		}
	}
	return out
}

// AutoAssign picks a pod for the current guest: a dual pod when the party
// is eligible and one is free, otherwise the first free single pod.  It
// returns a NoneAvailable allocation error when nothing qualifies.
func (a *Allocator) AutoAssign() (model.Seat, error) {
	var firstSingle *model.Seat
	for _, s := range a.Selectable() {
		if a.idx.IsDual(s.ID) {
			return s, nil
		}
		if firstSingle == nil {
			s := s
			firstSingle = &s
		}
	}
	if firstSingle != nil {
		return *firstSingle, nil
	}
	return model.Seat{}, &kioskerr.AllocationError{Kind: kioskerr.NoneAvailable, Message: "no pods are available right now"}
}
