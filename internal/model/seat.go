package model

import "time"

// SeatStatus is the availability state of a pod as reported by the seat
// registry.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "AVAILABLE"
    SeatOccupied  SeatStatus = "OCCUPIED"
    SeatReserved  SeatStatus = "RESERVED"
    SeatCleaning  SeatStatus = "CLEANING"
)

// PodType distinguishes one-person pods from two-person dual pods.
type PodType string

const (
    PodSingle PodType = "SINGLE"
    PodDual   PodType = "DUAL"
)

// Seat describes a physical dining pod at a location.  Dual pods come
// in pairs: only one seat of a pair stores the forward link in
// DualPartnerID, the other must be found by reverse lookup (see
// pod.PartnerIndex).
//
// Fields:
//  ID            – registry identifier.
//  Number        – number painted on the pod, shown to guests.
//  Status        – AVAILABLE, OCCUPIED, RESERVED or CLEANING.
//  Type          – SINGLE or DUAL.
//  DualPartnerID – forward link to the paired seat (nil when absent).
//  Row, Col      – grid position on the floor map.
//  Side          – which side of the aisle the pod faces.
type Seat struct {
    ID            string     `json:"id"`
    Number        int        `json:"number"`
    Status        SeatStatus `json:"status"`
    Type          PodType    `json:"pod_type"`
    DualPartnerID *string    `json:"dual_partner_id,omitempty"`
    Row           int        `json:"row"`
    Col           int        `json:"col"`
    Side          string     `json:"side"`
}

// IsAvailable reports whether the seat can currently be reserved.
func (s Seat) IsAvailable() bool { return s.Status == SeatAvailable }

// SelectionMethod records how a guest ended up with a pod.
type SelectionMethod string

const (
    SelectionCustomer SelectionMethod = "CUSTOMER_CHOSEN"
    SelectionAuto     SelectionMethod = "AUTO_ASSIGNED"
)

// PodReservation is the conditional write sent to the seat registry when
// a paid guest's pod is committed.  It reserves the pod until ExpiresAt;
// confirming arrival is a separate flow and never set here.
type PodReservation struct {
    SeatID     string
    OrderID    string
    Method     SelectionMethod
    AssignedAt time.Time
    ExpiresAt  time.Time
}
