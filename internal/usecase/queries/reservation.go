package queries

import (
	"context"
	"sync"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/pkg/errs"
)

var ErrReservationLookup = errs.New("reservation lookup failed")

type HolderReadStore interface {
	FindByHolder(ctx context.Context, email string) ([]*slot.Slot, error)
}

// PersonalReservationView caches the slots held by one identity. It is read straight
// from the store and may briefly disagree with the registry mirror.
type PersonalReservationView struct {
	store HolderReadStore

	mu    sync.RWMutex
	slots []*slot.Slot
	// bumped by Clear so a refresh that started before it cannot repopulate the view
	generation uint64
}

func NewPersonalReservationView(store HolderReadStore) *PersonalReservationView {
	return &PersonalReservationView{store: store}
}

// Refresh replaces the cached set with the slots reserved by identity. An anonymous
// identity clears the view.
func (v *PersonalReservationView) Refresh(ctx context.Context, identity user.Identity) ([]*slot.Slot, error) {
	if identity.IsAnonymous() {
		v.Clear()
		return nil, nil
	}

	v.mu.RLock()
	gen := v.generation
	v.mu.RUnlock()

	found, err := v.store.FindByHolder(ctx, identity.Email())
	if err != nil {
		return nil, errs.Mark(err, ErrReservationLookup)
	}

	held := make([]*slot.Slot, 0, len(found))
	for _, s := range found {
		if s.IsReservedBy(identity.Email()) {
			held = append(held, s)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation == gen {
		v.slots = held
	}
	return copySlots(held), nil
}

func (v *PersonalReservationView) Current() []*slot.Slot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return copySlots(v.slots)
}

func (v *PersonalReservationView) IsEmpty() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.slots) == 0
}

func (v *PersonalReservationView) Owns(id slot.ID) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, s := range v.slots {
		if s.ID() == id {
			return true
		}
	}
	return false
}

func (v *PersonalReservationView) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.slots = nil
	v.generation++
}

func copySlots(in []*slot.Slot) []*slot.Slot {
	if len(in) == 0 {
		return nil
	}
	out := make([]*slot.Slot, len(in))
	copy(out, in)
	return out
}
