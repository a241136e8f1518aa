package model

// PaymentType selects how a party pays.
type PaymentType string

const (
    // PaySingle charges every guest's order as one combined check.
    PaySingle PaymentType = "SINGLE"
    // PaySeparate charges each guest individually.
    PaySeparate PaymentType = "SEPARATE"
)

// View is the screen the kiosk is currently showing.
type View string

const (
    ViewName         View = "NAME"
    ViewMenu         View = "MENU"
    ViewReview       View = "REVIEW"
    ViewPodSelection View = "POD_SELECTION"
    ViewPass         View = "PASS"
    ViewPayment      View = "PAYMENT"
    ViewComplete     View = "COMPLETE"
)

// MaxPartySize is the largest party a single kiosk session accepts.
const MaxPartySize = 8

// PodIssueKind classifies a pod allocation problem shown to the guest.
type PodIssueKind string

const (
    IssueNoneAvailable  PodIssueKind = "NONE_AVAILABLE"
    IssueDualIneligible PodIssueKind = "DUAL_INELIGIBLE"
    IssueUnavailable    PodIssueKind = "UNAVAILABLE"
    IssueSeatTaken      PodIssueKind = "SEAT_TAKEN"
)

// PodIssue is the pending allocation problem the guest must resolve before
// POD_SELECTION can be confirmed.
type PodIssue struct {
    Kind    PodIssueKind `json:"kind"`
    Message string       `json:"message"`
}

// PartySession is the aggregate the flow controller owns for one kiosk
// session.  Invariant: 0 <= CurrentGuestIndex < PartySize and
// len(Guests) == PartySize.
type PartySession struct {
    ID                string       `json:"id"`
    LocationID        string       `json:"location_id"`
    PartySize         int          `json:"party_size"`
    PaymentType       PaymentType  `json:"payment_type"`
    Guests            []GuestOrder `json:"guests"`
    CurrentGuestIndex int          `json:"current_guest_index"`
    CurrentView       View         `json:"current_view"`
    CurrentStepIndex  int          `json:"current_step_index"`
    PodIssue          *PodIssue    `json:"pod_issue,omitempty"`
    // Reselect lists guest indexes whose committed pod was taken by another
    // party between snapshot and commit; they pick again before payment
    // resumes.
    Reselect []int `json:"reselect,omitempty"`
    // ChargeKeys holds the idempotency key minted for each pending charge,
    // keyed by "party" or the guest's order ID.
    ChargeKeys map[string]string `json:"-"`
    // PartyChargeID is set once the combined SINGLE charge has succeeded.
    PartyChargeID string `json:"party_charge_id,omitempty"`
}

// NewPartySession builds a session at the NAME view for the first guest.
func NewPartySession(id, locationID string, size int, pt PaymentType) *PartySession {
    guests := make([]GuestOrder, size)
    for i := range guests {
        guests[i] = NewGuestOrder(i + 1)
    }
    return &PartySession{
        ID:          id,
        LocationID:  locationID,
        PartySize:   size,
        PaymentType: pt,
        Guests:      guests,
        CurrentView: ViewName,
        ChargeKeys:  map[string]string{},
    }
}

// Current returns the active guest's slot.
func (s *PartySession) Current() *GuestOrder { return &s.Guests[s.CurrentGuestIndex] }

// IsLastGuest reports whether the active guest is the final one.
func (s *PartySession) IsLastGuest() bool { return s.CurrentGuestIndex == s.PartySize-1 }

// Clone returns a deep copy suitable for rendering outside the controller.
func (s *PartySession) Clone() PartySession {
    out := *s
    out.Guests = make([]GuestOrder, len(s.Guests))
    for i, g := range s.Guests {
        out.Guests[i] = g
        out.Guests[i].Cart = copyMap(g.Cart)
        out.Guests[i].SliderLabels = copyMap(g.SliderLabels)
        out.Guests[i].Selections = copyMap(g.Selections)
    }
    if s.PodIssue != nil {
        issue := *s.PodIssue
        out.PodIssue = &issue
    }
    out.Reselect = append([]int(nil), s.Reselect...)
    out.ChargeKeys = copyMap(s.ChargeKeys)
    return out
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
    out := make(map[K]V, len(m))
    for k, v := range m {
        out[k] = v
    }
    return out
}
