package commands

import (
	"errors"
	"fmt"

	"parkwise/internal/pkg/errs"
	"parkwise/internal/usecase/confirmation"
	"parkwise/internal/usecase/registry"
)

var (
	ErrAuthRequired      = errs.New("authentication required")
	ErrLimitReached      = errs.New("active reservation limit reached")
	ErrNotOwner          = errs.New("slot is not reserved by caller")
	ErrSlotNotFound      = errs.New("slot not found")
	ErrDeliveryFailed    = errs.New("confirmation delivery failed")
	ErrPersistenceFailed = errs.New("slot write failed")
	ErrInvalidSlotID     = errs.New("invalid slot id")
	ErrInvalidReading    = errs.New("invalid occupancy reading")

	ErrSubscriptionFailed = registry.ErrSubscriptionFailed
)

// DeliveryError reports why a confirmation was not delivered. It matches
// ErrDeliveryFailed under errors.Is.
type DeliveryError struct {
	Reason confirmation.Reason
	Status int
	cause  error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("confirmation not delivered: %s", e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrDeliveryFailed}
	}
	return []error{ErrDeliveryFailed, e.cause}
}

func newDeliveryError(r confirmation.DeliveryResult) error {
	return &DeliveryError{Reason: r.Reason, Status: r.Status, cause: r.Err}
}

// DeliveryReason extracts the failure reason from err, if any.
func DeliveryReason(err error) (confirmation.Reason, bool) {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return confirmation.ReasonNone, false
}
