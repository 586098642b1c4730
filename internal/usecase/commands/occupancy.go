package commands

import (
	"context"
	"encoding/json"
	"log/slog"

	"parkwise/internal/domain/slot"
	"parkwise/internal/infra"
	"parkwise/internal/pkg/errs"
	"parkwise/internal/usecase/shared"
)

// OccupancyReading is what a bay sensor publishes.
type OccupancyReading struct {
	SlotID   string `json:"slot_id"`
	Occupied *bool  `json:"occupied"`
}

type OccupancyCommands interface {
	Handle(ctx context.Context, payload []byte) error
}

type occupancyCommandsImpl struct {
	store shared.SlotStore
}

func NewOccupancyCommands(store shared.SlotStore) OccupancyCommands {
	return &occupancyCommandsImpl{store: store}
}

// Handle applies one reading. Reservation fields are never touched; the registry
// picks the change up through the feed.
func (o *occupancyCommandsImpl) Handle(ctx context.Context, payload []byte) error {
	var reading OccupancyReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return errs.Mark(err, ErrInvalidReading)
	}
	if reading.Occupied == nil {
		return errs.Wrap(ErrInvalidReading, "missing occupied flag")
	}

	id, err := slot.NewID(reading.SlotID)
	if err != nil {
		return errs.Mark(err, ErrInvalidReading)
	}

	if err := o.store.Apply(ctx, id, slot.OccupancyChange(*reading.Occupied)); err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return errs.Mark(err, ErrSlotNotFound)
		}
		return errs.Mark(err, ErrPersistenceFailed)
	}

	slog.Debug("occupancy updated", "slot_id", id.String(), "occupied", *reading.Occupied)
	return nil
}
