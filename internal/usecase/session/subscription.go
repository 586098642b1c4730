package session

import (
	"context"
	"log/slog"
	"sync"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/usecase/registry"
)

type ReservationRefresher interface {
	Refresh(ctx context.Context, identity user.Identity) ([]*slot.Slot, error)
	Current() []*slot.Slot
}

// Update is one state of the lot as a session sees it.
type Update struct {
	Slots        []*slot.Slot
	Reservations []*slot.Slot
	Health       registry.Health
	Err          error
}

// SubscriptionManager owns the registry subscription of one session. It keeps the
// latest snapshot (the mirror), refreshes the reservation view on each snapshot while
// an identity is bound, and fans updates out to watchers.
type SubscriptionManager struct {
	registry *registry.SlotRegistry
	view     ReservationRefresher
	logger   *slog.Logger

	mu       sync.Mutex
	sub      *registry.Subscription
	gen      uint64
	identity user.Identity
	bound    bool
	mirror   []*slot.Slot
	health   registry.Health
	err      error
	closed   bool

	ready     chan struct{}
	readyOnce sync.Once

	nextWatcher int
	watchers    map[int]chan Update
}

func NewSubscriptionManager(reg *registry.SlotRegistry, view ReservationRefresher, logger *slog.Logger) *SubscriptionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionManager{
		registry: reg,
		view:     view,
		logger:   logger,
		health:   registry.HealthLoading,
		ready:    make(chan struct{}),
		watchers: make(map[int]chan Update),
	}
}

// Attach makes every identity change of c replace the registry subscription.
func (m *SubscriptionManager) Attach(c *Context) func() {
	return c.OnChange(m.Resubscribe)
}

// Resubscribe tears down the current registry subscription and opens a new one for
// identity. Callbacks of the old subscription are ignored from here on.
func (m *SubscriptionManager) Resubscribe(identity user.Identity, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.sub != nil {
		m.sub.Unsubscribe()
	}

	m.gen++
	gen := m.gen
	m.identity, m.bound = identity, ok
	m.health, m.err = registry.HealthLoading, nil

	m.sub = m.registry.Subscribe(
		func(slots []*slot.Slot) { m.onSnapshot(gen, slots) },
		func(err error) { m.onError(gen, err) },
		registry.WithHealthListener(func(h registry.Health) { m.onHealth(gen, h) }),
	)
}

func (m *SubscriptionManager) onSnapshot(gen uint64, slots []*slot.Slot) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.mirror = slots
	identity, bound := m.identity, m.bound
	m.mu.Unlock()

	if bound {
		if _, err := m.view.Refresh(context.Background(), identity); err != nil {
			m.logger.Warn("failed to refresh reservations from snapshot",
				"holder", identity.Email(), "error", err.Error())
		}
	}

	m.markReady()
	m.broadcast()
}

func (m *SubscriptionManager) onError(gen uint64, err error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.err = err
	m.health = registry.HealthFailed
	m.mu.Unlock()

	m.markReady()
	m.broadcast()
}

func (m *SubscriptionManager) onHealth(gen uint64, h registry.Health) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.health = h
	m.mu.Unlock()

	// live is followed by a snapshot, failed by onError; both broadcast themselves
	if h == registry.HealthReconnecting {
		m.broadcast()
	}
}

func (m *SubscriptionManager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// Ready is closed once the first snapshot or the subscription failure has arrived.
func (m *SubscriptionManager) Ready() <-chan struct{} {
	return m.ready
}

func (m *SubscriptionManager) Current() Update {
	m.mu.Lock()
	u := Update{Slots: m.mirror, Health: m.health, Err: m.err}
	m.mu.Unlock()

	u.Reservations = m.view.Current()
	return u
}

func (m *SubscriptionManager) Health() registry.Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// Watch returns a channel carrying the current state and then every update until ctx
// is done or the manager is closed. A slow reader only sees the latest update.
func (m *SubscriptionManager) Watch(ctx context.Context) <-chan Update {
	ch := make(chan Update, 1)
	initial := m.Current()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	m.nextWatcher++
	id := m.nextWatcher
	m.watchers[id] = ch
	offer(ch, initial)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if w, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(w)
		}
	}()
	return ch
}

func (m *SubscriptionManager) broadcast() {
	u := m.Current()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.watchers {
		offer(ch, u)
	}
}

// offer replaces whatever is still buffered in ch with u. Callers hold m.mu, so there
// is a single sender.
func offer(ch chan Update, u Update) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}

// Close ends the registry subscription and every watcher. It is idempotent.
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sub := m.sub
	m.sub = nil
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
