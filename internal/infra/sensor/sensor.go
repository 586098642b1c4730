// Package sensor feeds bay occupancy readings from external transports into the
// occupancy commands.
package sensor

import (
	"context"
	"errors"
	"log/slog"

	"parkwise/internal/usecase/commands"
)

// Source is a running reading consumer.
type Source interface {
	Start(ctx context.Context) error
	Stop()
}

// Nop is used when no sensor transport is configured.
type Nop struct{}

func (Nop) Start(context.Context) error { return nil }
func (Nop) Stop()                       {}

// deliver applies one reading and reports whether the message is done with. Malformed
// readings and unknown slots are dropped; anything else is worth a redelivery.
func deliver(ctx context.Context, occupancy commands.OccupancyCommands, payload []byte, logger *slog.Logger) bool {
	err := occupancy.Handle(ctx, payload)
	switch {
	case err == nil:
		return true
	case errors.Is(err, commands.ErrInvalidReading), errors.Is(err, commands.ErrSlotNotFound):
		logger.Warn("dropping sensor reading", "error", err.Error(), "payload", string(payload))
		return true
	default:
		logger.Error("failed to apply sensor reading", "error", err.Error())
		return false
	}
}
