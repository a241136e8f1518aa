// Package queue defines message payloads exchanged over the message broker.
package queue

// HandoffQueue is the durable queue kitchen fulfillment consumes.
const HandoffQueue = "kitchen.orders"

// KitchenHandoffEvent is published once a guest's order is paid and their
// pod is reserved.  It carries enough for kitchen fulfillment to start the
// ticket and route it to the right pod without querying the order service.
type KitchenHandoffEvent struct {
    OrderID            string `json:"order_id"`
    OrderNumber        string `json:"order_number"`
    KitchenOrderNumber string `json:"kitchen_order_number"`
    LocationID         string `json:"location_id"`
    SessionID          string `json:"session_id"`
    GuestNumber        int    `json:"guest_number"`
    GuestName          string `json:"guest_name"`
    SeatID             string `json:"seat_id"`
    PodSelectionMethod string `json:"pod_selection_method"`
    TotalCents         int64  `json:"total_cents"`
    PaidAt             string `json:"paid_at"`
}
