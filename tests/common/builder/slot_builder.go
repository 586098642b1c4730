//go:build unit || e2e

package builder

import (
	"time"

	"parkwise/internal/domain/slot"
)

type SlotBuilder struct {
	ID         string
	Number     string
	Occupied   bool
	Reserved   bool
	Holder     string
	ReservedAt *time.Time
}

func NewSlotBuilder(id string) *SlotBuilder {
	return &SlotBuilder{ID: id}
}

func (b *SlotBuilder) ReservedBy(email string, at time.Time) *SlotBuilder {
	b.Reserved, b.Holder, b.ReservedAt = true, email, &at
	return b
}

func (b *SlotBuilder) AsOccupied() *SlotBuilder {
	b.Occupied = true
	return b
}

func (b *SlotBuilder) Build() *slot.Slot {
	return slot.Reconstruct(slot.ID(b.ID), b.Number, b.Occupied, b.Reserved, b.Holder, b.ReservedAt)
}
