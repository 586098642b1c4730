package slot

import (
	"time"

	"parkwise/internal/pkg/patch"
)

// Slot mirrors one parking space document.
type Slot struct {
	id          ID
	number      string
	occupied    bool
	reserved    bool
	holderEmail string
	reservedAt  *time.Time
}

// Reconstruct rebuilds a slot from stored fields. Stored documents are trusted as they
// are, including the occupied-and-reserved combination.
func Reconstruct(
	id ID,
	number string,
	occupied, reserved bool,
	holderEmail string,
	reservedAt *time.Time,
) *Slot {
	if number == "" {
		number = NumberFromID(id)
	}
	return &Slot{
		id:          id,
		number:      number,
		occupied:    occupied,
		reserved:    reserved,
		holderEmail: holderEmail,
		reservedAt:  copyTime(reservedAt),
	}
}

func NewAvailable(id ID, number string) *Slot {
	return Reconstruct(id, number, false, false, "", nil)
}

func (s *Slot) ID() ID                 { return s.id }
func (s *Slot) Number() string         { return s.number }
func (s *Slot) Occupied() bool         { return s.occupied }
func (s *Slot) Reserved() bool         { return s.reserved }
func (s *Slot) HolderEmail() string    { return s.holderEmail }
func (s *Slot) ReservedAt() *time.Time { return copyTime(s.reservedAt) }

func (s *Slot) Status() Status {
	switch {
	case s.occupied:
		return StatusOccupied
	case s.reserved:
		return StatusReserved
	default:
		return StatusAvailable
	}
}

func (s *Slot) IsReservedBy(email string) bool {
	return s.reserved && email != "" && s.holderEmail == email
}

// IsConsistent reports whether the slot satisfies reservedAt != nil <=> reserved.
func (s *Slot) IsConsistent() bool {
	return (s.reservedAt != nil) == s.reserved
}

// Apply returns a copy of s with the change applied. The receiver is not modified.
func (s *Slot) Apply(c Change) *Slot {
	next := *s
	next.reservedAt = copyTime(s.reservedAt)
	patch.Assign(&next.reserved, c.Reserved)
	patch.Assign(&next.occupied, c.Occupied)
	patch.Assign(&next.holderEmail, c.HolderEmail)
	if c.ReservedAt.Set {
		next.reservedAt = copyTime(c.ReservedAt.Time)
	}
	return &next
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
