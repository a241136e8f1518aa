// Package kioskerr defines the error kinds surfaced to the kiosk screen.
// Each kind tells the UI what the guest can do next: fix their input,
// retry the same action, pick another pod, or re-select from a refreshed
// pod list.
package kioskerr

import (
	"errors"
	"fmt"
)

// ValidationError blocks a transition locally; no network call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// SubmissionError reports a failed order or charge call.  Session state is
// unchanged and the same action may be retried.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// AllocationKind names why a pod could not be allocated.
type AllocationKind string

const (
	NoneAvailable  AllocationKind = "NONE_AVAILABLE"
	DualIneligible AllocationKind = "DUAL_INELIGIBLE"
	NotSelectable  AllocationKind = "NOT_SELECTABLE"
	AlreadyClaimed AllocationKind = "ALREADY_CLAIMED"
	PartnerMissing AllocationKind = "PARTNER_UNAVAILABLE"
)

// AllocationError reports that a pod selection was refused or that no pod
// could be assigned.  The attempted selection is never applied.
type AllocationError struct {
	Kind    AllocationKind
	SeatID  string
	Message string
}

func (e *AllocationError) Error() string {
	if e.SeatID != "" {
		return fmt.Sprintf("pod %s: %s", e.SeatID, e.Message)
	}
	return e.Message
}

// ConcurrencyError reports that a pod was claimed elsewhere between the
// snapshot the guest chose from and the reservation write.
type ConcurrencyError struct {
	SeatID     string
	GuestIndex int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("pod %s was taken by another guest", e.SeatID)
}

// StateError reports an action that is not valid in the current view.
type StateError struct {
	Action string
	View   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is not allowed in view %s", e.Action, e.View)
}

// IsRetryable reports whether err leaves the session unchanged and the
// same action can simply be repeated.
func IsRetryable(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
