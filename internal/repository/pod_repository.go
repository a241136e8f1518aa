package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/pod-kiosk/internal/model"
    "github.com/iliyamo/pod-kiosk/internal/pod"
)

// PodRepo is the seat registry backed by the pods table.  A pod row
// carries its floor position, status and, for the primary seat of a dual
// pair, the ID of its partner.  Reservation columns (order_id,
// selection_method, assigned_at, reservation_expires_at) are set by
// ReserveSeat and cleared by ReleaseSeat or ExpireReservations;
// confirmed_at belongs to the arrival check-in flow and is only read here.
type PodRepo struct {
    db *sql.DB
}

// NewPodRepo returns a new PodRepo bound to the provided database.
func NewPodRepo(db *sql.DB) *PodRepo { return &PodRepo{db: db} }

// FetchSeats returns every pod at the location ordered by pod number.
func (r *PodRepo) FetchSeats(ctx context.Context, locationID string) ([]model.Seat, error) {
    const q = `SELECT id, number, status, pod_type, dual_partner_id, row_no, col_no, side
               FROM pods
               WHERE location_id = ?
               ORDER BY number`
    rows, err := r.db.QueryContext(ctx, q, locationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seats []model.Seat
    for rows.Next() {
        var s model.Seat
        var partner sql.NullString
        if err := rows.Scan(&s.ID, &s.Number, &s.Status, &s.Type, &partner, &s.Row, &s.Col, &s.Side); err != nil {
            return nil, err
        }
        if partner.Valid && partner.String != "" {
            p := partner.String
            s.DualPartnerID = &p
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// ReserveSeat moves a pod from AVAILABLE to RESERVED for an order.  The
// write is conditional: it only matches a pod that is still AVAILABLE, or
// one already reserved for the same order so a retried payment can replay
// it.  When nothing matches the pod was taken and pod.ErrSeatUnavailable
// is returned.  Rows are counted as matched (clientFoundRows) so an
// identical replay is not mistaken for a conflict.
func (r *PodRepo) ReserveSeat(ctx context.Context, res model.PodReservation) error {
    const q = `UPDATE pods
               SET status = 'RESERVED', order_id = ?, selection_method = ?,
                   assigned_at = ?, reservation_expires_at = ?
               WHERE id = ? AND (status = 'AVAILABLE' OR (status = 'RESERVED' AND order_id = ?))`
    result, err := r.db.ExecContext(ctx, q,
        res.OrderID, string(res.Method), res.AssignedAt.UTC(), res.ExpiresAt.UTC(),
        res.SeatID, res.OrderID)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return pod.ErrSeatUnavailable
    }
    return nil
}

// ReleaseSeat returns a pod reserved for orderID to AVAILABLE.  Pods held
// by another order, or already checked into, are left as they are; that
// is not an error since the pod is no longer this order's to give back.
func (r *PodRepo) ReleaseSeat(ctx context.Context, seatID, orderID string) error {
    const q = `UPDATE pods
               SET status = 'AVAILABLE', order_id = NULL, selection_method = NULL,
                   assigned_at = NULL, reservation_expires_at = NULL
               WHERE id = ? AND status = 'RESERVED' AND order_id = ? AND confirmed_at IS NULL`
    _, err := r.db.ExecContext(ctx, q, seatID, orderID)
    return err
}

// ExpireReservations releases every pod whose reservation lapsed before
// now without the guest checking in, and returns the released pod IDs.
// The select and the release run in one transaction with the rows locked
// so a check-in racing the sweep either wins or sees the pod released.
//
// When nothing has expired it returns an empty slice and nil error.
func (r *PodRepo) ExpireReservations(ctx context.Context, now time.Time) ([]string, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    defer func() { _ = tx.Rollback() }()

    rows, err := tx.QueryContext(ctx,
        `SELECT id FROM pods
         WHERE status = 'RESERVED' AND confirmed_at IS NULL AND reservation_expires_at <= ?
         FOR UPDATE`,
        now.UTC(),
    )
    if err != nil {
        return nil, err
    }
    var ids []string
    for rows.Next() {
        var id string
        if scanErr := rows.Scan(&id); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        ids = append(ids, id)
    }
    if err = rows.Close(); err != nil {
        return nil, err
    }
    if len(ids) == 0 {
        return []string{}, nil
    }

    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
    args := make([]interface{}, 0, len(ids))
    for _, id := range ids {
        args = append(args, id)
    }
    _, err = tx.ExecContext(ctx,
        `UPDATE pods
         SET status = 'AVAILABLE', order_id = NULL, selection_method = NULL,
             assigned_at = NULL, reservation_expires_at = NULL
         WHERE id IN (`+placeholders+`)`,
        args...,
    )
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    return ids, nil
}
