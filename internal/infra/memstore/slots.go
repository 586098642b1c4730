package memstore

import (
	"context"
	"sort"
	"sync"

	"parkwise/internal/domain/slot"
	"parkwise/internal/infra"
	"parkwise/internal/infra/slotfeed"
	"parkwise/internal/pkg/config"
)

// SlotStore keeps slot documents in memory. Every write is pushed to its watchers, so
// it serves as both the store and the feed of the memory driver.
type SlotStore struct {
	mu    sync.RWMutex
	slots map[slot.ID]*slot.Slot
	feed  *slotfeed.Broadcaster
}

func NewSlotStore(cfg config.Config) *SlotStore {
	s := NewEmptySlotStore()
	for _, raw := range cfg.Store.MemorySlots {
		id, err := slot.NewID(raw)
		if err != nil {
			continue
		}
		s.slots[id] = slot.NewAvailable(id, "")
	}
	return s
}

func NewEmptySlotStore() *SlotStore {
	return &SlotStore{
		slots: make(map[slot.ID]*slot.Slot),
		feed:  slotfeed.NewBroadcaster(),
	}
}

// Put stores s as-is, replacing any document with the same id.
func (s *SlotStore) Put(sl *slot.Slot) {
	s.mu.Lock()
	s.slots[sl.ID()] = sl
	snapshot := s.orderedLocked()
	s.mu.Unlock()

	s.feed.Publish(snapshot)
}

func (s *SlotStore) ListOrdered(_ context.Context) ([]*slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedLocked(), nil
}

func (s *SlotStore) FindByID(_ context.Context, id slot.ID) (*slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[id]
	if !ok {
		return nil, infra.WrapRepoErr("slot not found", nil, infra.KindNotFound)
	}
	return sl, nil
}

func (s *SlotStore) FindByHolder(_ context.Context, email string) ([]*slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*slot.Slot
	for _, sl := range s.orderedLocked() {
		if sl.HolderEmail() == email {
			out = append(out, sl)
		}
	}
	return out, nil
}

func (s *SlotStore) Apply(_ context.Context, id slot.ID, change slot.Change) error {
	if err := change.Validate(); err != nil {
		return infra.WrapRepoErr("invalid slot change", err)
	}

	s.mu.Lock()
	current, ok := s.slots[id]
	if !ok {
		s.mu.Unlock()
		return infra.WrapRepoErr("slot not found", nil, infra.KindNotFound)
	}
	s.slots[id] = current.Apply(change)
	snapshot := s.orderedLocked()
	s.mu.Unlock()

	s.feed.Publish(snapshot)
	return nil
}

// Watch implements the slot feed on top of the store.
func (s *SlotStore) Watch(ctx context.Context, emit func([]*slot.Slot)) error {
	return s.feed.Watch(ctx, s.ListOrdered, emit)
}

// Break ends every open watch with err, as a dropped connection would.
func (s *SlotStore) Break(err error) {
	s.feed.Fail(err)
}

func (s *SlotStore) orderedLocked() []*slot.Slot {
	out := make([]*slot.Slot, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Watchers reports how many watches are open.
func (s *SlotStore) Watchers() int {
	return s.feed.Watchers()
}
