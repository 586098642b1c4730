package slot

import (
	"errors"
	"strings"
)

var (
	ErrInvalidID    = errors.New("invalid slot id")
	ErrInconsistent = errors.New("reservedAt must be set iff reserved is true")
	ErrEmptyHolder  = errors.New("reservation requires a holder email")
	ErrEmptyChange  = errors.New("slot change sets no fields")
	ErrHolderOnFree = errors.New("unreserved slot cannot carry a holder email")
)

// ID is the document key of a slot. It is distinct from the human-facing number.
type ID string

func NewID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidID
	}
	return ID(s), nil
}

func (id ID) String() string {
	return string(id)
}

// NumberFromID derives a display number for documents stored without one:
// "slot-3" becomes "3", ids without a dash are used as-is.
func NumberFromID(id ID) string {
	parts := strings.SplitN(string(id), "-", 3)
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return string(id)
}

// Status is the display state of a slot. Occupancy wins over reservation.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusReserved    Status = "reserved"
	StatusOccupied    Status = "occupied"
	StatusMaintenance Status = "maintenance"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusOccupied, StatusMaintenance:
		return true
	default:
		return false
	}
}
