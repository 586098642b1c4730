package slotfeed

import (
	"context"
	"sync"

	"parkwise/internal/domain/slot"
)

// Broadcaster fans full slot snapshots out to watchers. A slow watcher only ever sees
// the latest snapshot; intermediate ones are dropped.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*mailbox
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]*mailbox)}
}

type mailbox struct {
	mu     sync.Mutex
	latest []*slot.Slot
	ready  bool
	err    error
	signal chan struct{}
}

func (m *mailbox) put(slots []*slot.Slot, err error) {
	m.mu.Lock()
	if err != nil {
		m.err = err
	} else {
		m.latest, m.ready = slots, true
	}
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() ([]*slot.Slot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots, ok, err := m.latest, m.ready, m.err
	m.latest, m.ready = nil, false
	return slots, ok, err
}

// Publish hands slots to every current watcher.
func (b *Broadcaster) Publish(slots []*slot.Slot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.subs {
		m.put(slots, nil)
	}
}

// Fail ends every current watch with err.
func (b *Broadcaster) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, m := range b.subs {
		m.put(nil, err)
		delete(b.subs, id)
	}
}

func (b *Broadcaster) Watchers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) register() (int, *mailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	m := &mailbox{signal: make(chan struct{}, 1)}
	b.subs[b.nextID] = m
	return b.nextID, m
}

func (b *Broadcaster) unregister(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Watch emits the result of initial, then every published snapshot, from the calling
// goroutine. It returns nil when ctx is done and the Fail error otherwise.
func (b *Broadcaster) Watch(ctx context.Context, initial func(context.Context) ([]*slot.Slot, error), emit func([]*slot.Slot)) error {
	id, box := b.register()
	defer b.unregister(id)

	// registered first so nothing published during the initial read is lost
	slots, err := initial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	emit(slots)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-box.signal:
			latest, ok, err := box.take()
			if ok {
				emit(latest)
			}
			if err != nil {
				return err
			}
		}
	}
}
