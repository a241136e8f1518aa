package pod

import "github.com/iliyamo/pod-kiosk/internal/model"

// Next is where the flow goes after a guest confirms a pod.
type Next struct {
	View       model.View
	GuestIndex int
	// PartnerGuest is the guest who inherits the other half of a dual pod
	// and skips their own pod selection; -1 when nobody does.
	PartnerGuest int
}

// Branch applies the confirm rules for the guest at guestIndex.
//
// SEPARATE parties select one pod per payment, so confirm always leads to
// PAYMENT.  In a SINGLE party a dual pod chosen by anyone but the last
// guest is shared with the next guest, whose selection is skipped; every
// other confirm moves to the next guest or to PAYMENT after the last one.
// GuestIndex never exceeds partySize-1.
func Branch(partySize int, pt model.PaymentType, guestIndex int, seatIsDual bool) Next {
	last := partySize - 1
	if pt == model.PaySeparate {
		return Next{View: model.ViewPayment, GuestIndex: guestIndex, PartnerGuest: -1}
	}
	if seatIsDual && guestIndex < last {
		partner := guestIndex + 1
		if partySize == 2 {
			return Next{View: model.ViewPayment, GuestIndex: guestIndex, PartnerGuest: partner}
		}
		next := guestIndex + 2
		if next > last {
			return Next{View: model.ViewPayment, GuestIndex: last, PartnerGuest: partner}
		}
		return Next{View: model.ViewPodSelection, GuestIndex: next, PartnerGuest: partner}
	}
	if guestIndex >= last {
		return Next{View: model.ViewPayment, GuestIndex: last, PartnerGuest: -1}
	}
	return Next{View: model.ViewPodSelection, GuestIndex: guestIndex + 1, PartnerGuest: -1}
}
