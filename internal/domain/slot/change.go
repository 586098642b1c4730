package slot

import (
	"strings"
	"time"
)

// NullableTime distinguishes "leave as is" (Set=false) from "set to null" (Set=true, Time=nil).
type NullableTime struct {
	Set  bool
	Time *time.Time
}

// Change is a field patch written to a single slot document without a precondition.
type Change struct {
	Reserved    *bool
	Occupied    *bool
	HolderEmail *string
	ReservedAt  NullableTime
}

// ReserveChange holds a slot for holder. It also clears occupancy.
func ReserveChange(holder string, at time.Time) (Change, error) {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return Change{}, ErrEmptyHolder
	}
	reserved, occupied := true, false
	ts := at.UTC()
	return Change{
		Reserved:    &reserved,
		Occupied:    &occupied,
		HolderEmail: &holder,
		ReservedAt:  NullableTime{Set: true, Time: &ts},
	}, nil
}

// ReleaseChange drops a reservation. Occupancy is left untouched.
func ReleaseChange() Change {
	reserved := false
	empty := ""
	return Change{
		Reserved:    &reserved,
		HolderEmail: &empty,
		ReservedAt:  NullableTime{Set: true, Time: nil},
	}
}

func OccupancyChange(occupied bool) Change {
	return Change{Occupied: &occupied}
}

func (c Change) IsEmpty() bool {
	return c.Reserved == nil && c.Occupied == nil && c.HolderEmail == nil && !c.ReservedAt.Set
}

// TouchesReservation reports whether the change writes any reservation field.
func (c Change) TouchesReservation() bool {
	return c.Reserved != nil || c.HolderEmail != nil || c.ReservedAt.Set
}

// Validate rejects patches that could break reservedAt != nil <=> reserved on their own.
// Reservation fields must be written together.
func (c Change) Validate() error {
	if c.IsEmpty() {
		return ErrEmptyChange
	}
	if !c.TouchesReservation() {
		return nil
	}
	if c.Reserved == nil || c.HolderEmail == nil || !c.ReservedAt.Set {
		return ErrInconsistent
	}
	if *c.Reserved != (c.ReservedAt.Time != nil) {
		return ErrInconsistent
	}
	if *c.Reserved && *c.HolderEmail == "" {
		return ErrEmptyHolder
	}
	if !*c.Reserved && *c.HolderEmail != "" {
		return ErrHolderOnFree
	}
	return nil
}
