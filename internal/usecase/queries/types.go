package queries

import (
	"time"

	"parkwise/internal/domain/slot"

	"github.com/google/uuid"
)

// SlotView is the read model of a slot as shown to clients
type SlotView struct {
	ID          string     `json:"id"`
	Number      string     `json:"slot_number"`
	Status      string     `json:"status"`
	Occupied    bool       `json:"occupied"`
	Reserved    bool       `json:"reserved"`
	HolderEmail string     `json:"holder_email,omitempty"`
	ReservedAt  *time.Time `json:"reserved_at,omitempty"`
}

// AccountView represents the signed-in user
type AccountView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

func ToSlotView(s *slot.Slot) SlotView {
	return SlotView{
		ID:          s.ID().String(),
		Number:      s.Number(),
		Status:      s.Status().String(),
		Occupied:    s.Occupied(),
		Reserved:    s.Reserved(),
		HolderEmail: s.HolderEmail(),
		ReservedAt:  s.ReservedAt(),
	}
}

func ToSlotViews(slots []*slot.Slot) []SlotView {
	out := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, ToSlotView(s))
	}
	return out
}
