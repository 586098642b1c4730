package queries

import (
	"context"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
)

type PlaceholderView struct {
	Label  string `json:"label"`
	Status string `json:"status"`
}

// LotView is everything the lot screen renders.
type LotView struct {
	Slots        []SlotView        `json:"slots"`
	Maintenance  []PlaceholderView `json:"maintenance"`
	Health       string            `json:"health"`
	Reservations []SlotView        `json:"reservations"`
}

// LotQueries reads the lot as seen by one identity's session.
type LotQueries interface {
	Lot(ctx context.Context, identity user.Identity) (*LotView, error)
	Reservations(ctx context.Context, identity user.Identity) ([]SlotView, error)
	// Live streams a LotView on every change until ctx is done, then closes the channel.
	Live(ctx context.Context, identity user.Identity) (<-chan LotView, error)
}

func ToPlaceholderViews(placeholders []slot.Placeholder) []PlaceholderView {
	out := make([]PlaceholderView, 0, len(placeholders))
	for _, p := range placeholders {
		out = append(out, PlaceholderView{Label: p.Label, Status: p.Status.String()})
	}
	return out
}

func NewLotView(slots, reservations []*slot.Slot, maintenance []slot.Placeholder, health string) LotView {
	return LotView{
		Slots:        ToSlotViews(slots),
		Maintenance:  ToPlaceholderViews(maintenance),
		Health:       health,
		Reservations: ToSlotViews(reservations),
	}
}
