package model

// PodChoice is the tag of a PodSelection.
type PodChoice int

const (
    PodUnset PodChoice = iota
    PodAutoRequested
    PodAssigned
)

// PodSelection records what a guest has chosen in POD_SELECTION.  The zero
// value is Unset.  Assigned selections carry the concrete seat ID.
type PodSelection struct {
    Choice PodChoice `json:"choice"`
    SeatID string    `json:"seat_id,omitempty"`
}

// AutoRequest returns a selection asking the allocator to pick a pod.
func AutoRequest() PodSelection { return PodSelection{Choice: PodAutoRequested} }

// Assigned returns a selection bound to seatID.
func Assigned(seatID string) PodSelection {
    return PodSelection{Choice: PodAssigned, SeatID: seatID}
}

// IsAssigned reports whether the selection names a concrete seat.
func (p PodSelection) IsAssigned() bool { return p.Choice == PodAssigned && p.SeatID != "" }

// Totals holds a guest's order amounts in cents.
type Totals struct {
    SubtotalCents int64 `json:"subtotal_cents"`
    TaxCents      int64 `json:"tax_cents"`
    TotalCents    int64 `json:"total_cents"`
}

// GuestOrder is one guest's slot within a party.  Cart, SliderLabels and
// Selections are freely mutated while the guest builds their order; once
// OrderID is set only the payment and pod fields change.
type GuestOrder struct {
    GuestNumber        int               `json:"guest_number"`
    GuestName          string            `json:"guest_name"`
    Cart               map[string]int    `json:"cart"`
    SliderLabels       map[string]string `json:"slider_labels"`
    Selections         map[string]string `json:"selections"`
    OrderID            string            `json:"order_id,omitempty"`
    OrderNumber        string            `json:"order_number,omitempty"`
    KitchenOrderNumber string            `json:"kitchen_order_number,omitempty"`
    Totals             Totals            `json:"totals"`
    Paid               bool              `json:"paid"`
    Pod                PodSelection      `json:"pod"`
    PodAutoAssigned    bool              `json:"pod_auto_assigned"`
    // SeatCommitted is set once the pod reservation and order update for
    // this guest have both been written.
    SeatCommitted bool `json:"seat_committed"`
}

// NewGuestOrder returns an empty slot for the given 1-based guest number.
func NewGuestOrder(number int) GuestOrder {
    return GuestOrder{
        GuestNumber:  number,
        Cart:         map[string]int{},
        SliderLabels: map[string]string{},
        Selections:   map[string]string{},
    }
}

// Submitted reports whether the backend has accepted this guest's order.
func (g *GuestOrder) Submitted() bool { return g.OrderID != "" }
