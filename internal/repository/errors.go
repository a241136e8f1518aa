// Package repository implements the kiosk's backend services on MySQL:
// the pod registry, order persistence, the menu catalog and kiosk device
// records.  The sentinel values below let handlers and the flow layer tell
// failure scenarios apart with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when a referenced row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be applied because the row
// collides with an existing row, such as registering a device ID twice.
// Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrDeviceInactive is returned for a kiosk device that has been retired.
var ErrDeviceInactive = errors.New("device inactive")
