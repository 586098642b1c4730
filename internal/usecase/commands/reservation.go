package commands

import (
	"context"
	"log/slog"
	"sync"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/infra"
	"parkwise/internal/pkg/errs"
	"parkwise/internal/usecase/confirmation"
	"parkwise/internal/usecase/shared"
)

// Phase of one (identity, slot) reservation attempt.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseCommitted Phase = "committed"
	PhaseAborted   Phase = "aborted"
)

type ReserveResult struct {
	Slot               *slot.Slot
	ConfirmationNumber string
	CodeURL            string
}

// ReservationCommands is the reserve/cancel surface addressed by identity. The
// session manager implements it by routing to the caller's coordinator.
type ReservationCommands interface {
	Reserve(ctx context.Context, identity user.Identity, id slot.ID) (*ReserveResult, error)
	Cancel(ctx context.Context, identity user.Identity, id slot.ID) error
}

type IdentitySource interface {
	Identity() (user.Identity, bool)
}

type ReservationView interface {
	IsEmpty() bool
	Owns(id slot.ID) bool
	Refresh(ctx context.Context, identity user.Identity) ([]*slot.Slot, error)
}

type ConfirmationDispatcher interface {
	Dispatch(ctx context.Context, identity user.Identity, s *slot.Slot) confirmation.DeliveryResult
}

// ReservationCoordinator sequences reserve and cancel for one session. Each attempt
// runs once; nothing is retried.
type ReservationCoordinator struct {
	identities IdentitySource
	view       ReservationView
	store      shared.SlotStore
	dispatcher ConfirmationDispatcher
	queue      *IntentQueue
	logger     *slog.Logger

	mu     sync.Mutex
	phases map[slot.ID]Phase
}

func NewReservationCoordinator(
	identities IdentitySource,
	view ReservationView,
	store shared.SlotStore,
	dispatcher ConfirmationDispatcher,
	queue *IntentQueue,
	logger *slog.Logger,
) *ReservationCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationCoordinator{
		identities: identities,
		view:       view,
		store:      store,
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		phases:     make(map[slot.ID]Phase),
	}
}

func (c *ReservationCoordinator) Phase(id slot.ID) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.phases[id]; ok {
		return p
	}
	return PhaseIdle
}

func (c *ReservationCoordinator) setPhase(id slot.ID, p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == PhaseIdle {
		delete(c.phases, id)
		return
	}
	c.phases[id] = p
}

func (c *ReservationCoordinator) Reserve(ctx context.Context, id slot.ID) (*ReserveResult, error) {
	var result *ReserveResult
	err := c.serialize(ctx, func(ctx context.Context, fresh bool) error {
		var err error
		result, err = c.reserve(ctx, id, fresh)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *ReservationCoordinator) Cancel(ctx context.Context, id slot.ID) error {
	return c.serialize(ctx, func(ctx context.Context, fresh bool) error {
		return c.cancel(ctx, id, fresh)
	})
}

// serialize runs fn on the intent queue when one is configured. Queued intents re-read
// the caller's reservations before checking them.
func (c *ReservationCoordinator) serialize(ctx context.Context, fn func(ctx context.Context, fresh bool) error) error {
	if c.queue == nil {
		return fn(ctx, false)
	}
	return c.queue.Do(ctx, func(ctx context.Context) error {
		return fn(ctx, true)
	})
}

func (c *ReservationCoordinator) reserve(ctx context.Context, id slot.ID, fresh bool) (*ReserveResult, error) {
	identity, ok := c.identities.Identity()
	if !ok {
		return nil, ErrAuthRequired
	}

	if fresh {
		if _, err := c.view.Refresh(ctx, identity); err != nil {
			return nil, errs.Mark(err, ErrPersistenceFailed)
		}
	}
	// the cached view decides, not a fresh read; concurrent reserves can both pass
	if !c.view.IsEmpty() {
		return nil, ErrLimitReached
	}

	target, err := c.store.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, ErrSlotNotFound)
		}
		return nil, errs.Mark(err, ErrPersistenceFailed)
	}

	c.setPhase(id, PhasePending)

	delivery := c.dispatcher.Dispatch(ctx, identity, target)
	if !delivery.Delivered {
		c.setPhase(id, PhaseAborted)
		return nil, newDeliveryError(delivery)
	}

	change, err := slot.ReserveChange(identity.Email(), delivery.IssuedAt)
	if err != nil {
		c.setPhase(id, PhaseAborted)
		return nil, errs.Mark(err, ErrPersistenceFailed)
	}
	if err := c.store.Apply(ctx, id, change); err != nil {
		c.setPhase(id, PhaseAborted)
		c.logger.Error("reservation write failed after confirmation was sent",
			"slot_id", id.String(), "holder", identity.Email(), "confirmation_number", delivery.ConfirmationNumber, "error", err.Error())
		return nil, errs.Mark(err, ErrPersistenceFailed)
	}
	c.setPhase(id, PhaseCommitted)

	c.refreshAfterCommit(ctx, identity, id)

	return &ReserveResult{
		Slot:               target.Apply(change),
		ConfirmationNumber: delivery.ConfirmationNumber,
		CodeURL:            delivery.CodeURL,
	}, nil
}

func (c *ReservationCoordinator) cancel(ctx context.Context, id slot.ID, fresh bool) error {
	identity, ok := c.identities.Identity()
	if !ok {
		return ErrAuthRequired
	}

	if fresh {
		if _, err := c.view.Refresh(ctx, identity); err != nil {
			return errs.Mark(err, ErrPersistenceFailed)
		}
	}
	if !c.view.Owns(id) {
		return ErrNotOwner
	}

	if err := c.store.Apply(ctx, id, slot.ReleaseChange()); err != nil {
		return errs.Mark(err, ErrPersistenceFailed)
	}
	c.setPhase(id, PhaseIdle)

	c.refreshAfterCommit(ctx, identity, id)
	return nil
}

// refreshAfterCommit re-reads the caller's reservations. The write already stands, so
// a failed read is only logged.
func (c *ReservationCoordinator) refreshAfterCommit(ctx context.Context, identity user.Identity, id slot.ID) {
	if _, err := c.view.Refresh(ctx, identity); err != nil {
		c.logger.Warn("failed to refresh reservations after commit",
			"slot_id", id.String(), "holder", identity.Email(), "error", err.Error())
	}
}
