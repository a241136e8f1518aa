package repository

import (
    "context"
    "database/sql"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/jonboulle/clockwork"

    "github.com/iliyamo/pod-kiosk/internal/model"
    "github.com/iliyamo/pod-kiosk/internal/order"
    "github.com/iliyamo/pod-kiosk/internal/payment"
    "github.com/iliyamo/pod-kiosk/internal/pricing"
)

// OrderRepo persists guest orders and their line items.  It serves as the
// backend order service for the submitter and as the order updater for
// the payment coordinator.
//
// Prices are never taken from the kiosk: each line is priced from the
// menu_items row with the same tier rules the kiosk uses for its running
// total, and the sum is returned as the authoritative pre-tax total.
type OrderRepo struct {
    db    *sql.DB
    clock clockwork.Clock
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
// The clock decides which business day an order number belongs to.
func NewOrderRepo(db *sql.DB, clock clockwork.Clock) *OrderRepo {
    if clock == nil {
        clock = clockwork.NewRealClock()
    }
    return &OrderRepo{db: db, clock: clock}
}

// orderItemRecord mirrors the order_items table.
type orderItemRecord struct {
    ItemID        string
    Quantity      int
    SelectedValue string
    PriceCents    int64
}

// CreateOrder inserts an order and its items in one transaction.  The
// order number is drawn from a per-location daily counter so numbers read
// ORD_20260102_001, ORD_20260102_002, ... and the kitchen number is the
// same sequence in its short form.  A line naming an unknown item fails
// the whole order with ErrNotFound.
func (r *OrderRepo) CreateOrder(ctx context.Context, req order.CreateOrderRequest) (order.CreateOrderResult, error) {
    if len(req.LineItems) == 0 {
        return order.CreateOrderResult{}, fmt.Errorf("create order: no line items")
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return order.CreateOrderResult{}, err
    }
    defer func() { _ = tx.Rollback() }()

    items, err := r.itemsForPricingTx(ctx, tx, req.LineItems)
    if err != nil {
        return order.CreateOrderResult{}, err
    }
    records := make([]orderItemRecord, 0, len(req.LineItems))
    var total int64
    for _, li := range req.LineItems {
        it, ok := items[li.ItemID]
        if !ok {
            return order.CreateOrderResult{}, fmt.Errorf("menu item %s: %w", li.ItemID, ErrNotFound)
        }
        price := pricing.Line(it, li.Quantity)
        total += price
        records = append(records, orderItemRecord{
            ItemID:        li.ItemID,
            Quantity:      li.Quantity,
            SelectedValue: li.SelectedValue,
            PriceCents:    price,
        })
    }

    now := r.clock.Now().UTC()
    day := now.Format("20060102")
    seq, err := r.nextSequenceTx(ctx, tx, req.LocationID, day)
    if err != nil {
        return order.CreateOrderResult{}, err
    }
    res := order.CreateOrderResult{
        OrderID:            uuid.NewString(),
        OrderNumber:        fmt.Sprintf("ORD_%s_%03d", day, seq),
        KitchenOrderNumber: fmt.Sprintf("%03d", seq%1000),
        PreTaxTotalCents:   total,
    }

    const ins = `INSERT INTO orders (id, location_id, order_number, kitchen_order_number, guest_name,
                     pre_tax_total_cents, payment_status, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, 'PENDING', ?, ?)`
    if _, err := tx.ExecContext(ctx, ins,
        res.OrderID, req.LocationID, res.OrderNumber, res.KitchenOrderNumber, req.GuestName,
        total, now, now,
    ); err != nil {
        return order.CreateOrderResult{}, err
    }
    if err := r.insertItemsTx(ctx, tx, res.OrderID, records); err != nil {
        return order.CreateOrderResult{}, err
    }
    if err := tx.Commit(); err != nil {
        return order.CreateOrderResult{}, err
    }
    return res, nil
}

// itemsForPricingTx loads the pricing columns of every referenced item,
// keyed by item ID.  The selection mode comes from the item's section.
func (r *OrderRepo) itemsForPricingTx(ctx context.Context, tx *sql.Tx, lines []order.LineItem) (map[string]model.MenuItem, error) {
    seen := map[string]bool{}
    args := make([]interface{}, 0, len(lines))
    for _, li := range lines {
        if seen[li.ItemID] {
            continue
        }
        seen[li.ItemID] = true
        args = append(args, li.ItemID)
    }
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
    q := `SELECT i.id, i.base_price_cents, i.additional_price_cents, i.included_quantity, s.selection_mode
          FROM menu_items i
          JOIN menu_sections s ON s.id = i.section_id
          WHERE i.id IN (` + placeholders + `)`
    rows, err := tx.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make(map[string]model.MenuItem, len(args))
    for rows.Next() {
        var it model.MenuItem
        if err := rows.Scan(&it.ID, &it.BasePriceCents, &it.AdditionalPriceCents, &it.IncludedQuantity, &it.Mode); err != nil {
            return nil, err
        }
        out[it.ID] = it
    }
    return out, rows.Err()
}

// nextSequenceTx bumps the location's counter for day and returns the new
// value.  The upsert takes the row lock, so concurrent orders queue on it
// until the surrounding transaction ends.
func (r *OrderRepo) nextSequenceTx(ctx context.Context, tx *sql.Tx, locationID, day string) (int, error) {
    const up = `INSERT INTO order_counters (location_id, day, seq) VALUES (?, ?, 1)
                ON DUPLICATE KEY UPDATE seq = seq + 1`
    if _, err := tx.ExecContext(ctx, up, locationID, day); err != nil {
        return 0, err
    }
    var seq int
    err := tx.QueryRowContext(ctx,
        `SELECT seq FROM order_counters WHERE location_id = ? AND day = ?`,
        locationID, day,
    ).Scan(&seq)
    return seq, err
}

// insertItemsTx writes every order_items row in a single statement.
func (r *OrderRepo) insertItemsTx(ctx context.Context, tx *sql.Tx, orderID string, items []orderItemRecord) error {
    if len(items) == 0 {
        return nil
    }
    query := `INSERT INTO order_items (order_id, item_id, quantity, selected_value, price_cents) VALUES `
    args := make([]interface{}, 0, len(items)*5)
    for i, it := range items {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?)"
        var selected interface{}
        if it.SelectedValue != "" {
            selected = it.SelectedValue
        }
        args = append(args, orderID, it.ItemID, it.Quantity, selected, it.PriceCents)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// UpdateOrder records the payment outcome and pod details on an order.
// Writing the same update twice is harmless; a missing order yields
// ErrNotFound.
func (r *OrderRepo) UpdateOrder(ctx context.Context, orderID string, u payment.OrderUpdate) error {
    const q = `UPDATE orders
               SET payment_status = ?, seat_id = ?, pod_selection_method = ?,
                   pod_assigned_at = ?, pod_reservation_expiry = ?, updated_at = ?
               WHERE id = ?`
    var seat, method interface{}
    if u.SeatID != "" {
        seat = u.SeatID
    }
    if u.PodSelectionMethod != "" {
        method = string(u.PodSelectionMethod)
    }
    result, err := r.db.ExecContext(ctx, q,
        u.PaymentStatus, seat, method,
        nullableTime(u.PodAssignedAt), nullableTime(u.PodReservationExpiry),
        r.clock.Now().UTC(), orderID,
    )
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}

func nullableTime(t *time.Time) interface{} {
    if t == nil {
        return nil
    }
    return t.UTC()
}
