package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/pod-kiosk/internal/utils"
)

// Device mirrors the 'kiosk_devices' table.
type Device struct {
	ID         string
	LocationID string
	SecretHash string
	IsActive   bool
	LastSeenAt sql.NullTime
	CreatedAt  time.Time
}

type DeviceRepo struct{ DB *sql.DB }

func NewDeviceRepo(db *sql.DB) *DeviceRepo { return &DeviceRepo{DB: db} }

var ErrDeviceExists = fmt.Errorf("device already registered: %w", ErrConflict)

// Register stores a new kiosk with its secret hashed.
func (r *DeviceRepo) Register(ctx context.Context, id, locationID, secret string, cost int) error {
	hash, err := utils.HashSecret(secret, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO kiosk_devices (id, location_id, secret_hash, is_active) VALUES (?,?,?,1)",
		strings.TrimSpace(id), locationID, hash)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return ErrDeviceExists
		}
		return err
	}
	return nil
}

// GetByID fetches a device.  Unknown IDs yield ErrNotFound and retired
// devices ErrDeviceInactive.
func (r *DeviceRepo) GetByID(ctx context.Context, id string) (Device, error) {
	var d Device
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,location_id,secret_hash,is_active,last_seen_at,created_at FROM kiosk_devices WHERE id=? LIMIT 1",
		strings.TrimSpace(id)).Scan(&d.ID, &d.LocationID, &d.SecretHash, &d.IsActive, &d.LastSeenAt, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, ErrNotFound
	}
	if err != nil {
		return Device{}, err
	}
	if !d.IsActive {
		return d, ErrDeviceInactive
	}
	return d, nil
}

// Authenticate checks secret against the stored hash.  A wrong secret is
// reported as ErrNotFound so callers cannot tell it from an unknown ID.
func (r *DeviceRepo) Authenticate(ctx context.Context, id, secret string) (Device, error) {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return Device{}, err
	}
	if !utils.CheckSecret(d.SecretHash, secret) {
		return Device{}, ErrNotFound
	}
	return d, nil
}

// TouchLastSeen records that the device just authenticated.
func (r *DeviceRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE kiosk_devices SET last_seen_at=? WHERE id=?",
		at.UTC(), id)
	return err
}
