package session

import (
	"context"
	"log/slog"
	"sync"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/errs"
	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/queries"
	"parkwise/internal/usecase/registry"
	"parkwise/internal/usecase/shared"
)

var ErrManagerStopped = errs.New("session manager stopped")

// Manager owns one Session per signed-in identity. Sessions start on the provider's
// sign-in event or on the first authenticated request, and end on sign-out.
type Manager struct {
	provider    shared.IdentityProvider
	deps        Deps
	maintenance []slot.Placeholder
	logger      *slog.Logger

	mu         sync.Mutex
	sessions   map[string]*Session
	stopEvents func()
	stopped    bool
}

var (
	_ commands.ReservationCommands = (*Manager)(nil)
	_ queries.LotQueries           = (*Manager)(nil)
)

func NewManager(
	provider shared.IdentityProvider,
	reg *registry.SlotRegistry,
	store shared.SlotStore,
	dispatcher commands.ConfirmationDispatcher,
	queue *commands.IntentQueue,
	cfg config.Config,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		provider: provider,
		deps: Deps{
			Registry:   reg,
			Store:      store,
			Dispatcher: dispatcher,
			Queue:      queue,
			Logger:     logger,
		},
		maintenance: slot.MaintenancePlaceholders(cfg.Lot.MaintenanceSlots),
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

func (m *Manager) Start() {
	if m.deps.Queue != nil {
		m.deps.Queue.Start()
	}
	unsubscribe := m.provider.OnIdentityChange(m.handleIdentityEvent)

	m.mu.Lock()
	m.stopEvents = unsubscribe
	m.mu.Unlock()
}

func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	stopEvents := m.stopEvents
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if stopEvents != nil {
		stopEvents()
	}
	for _, s := range sessions {
		s.Close()
	}
	if m.deps.Queue != nil {
		m.deps.Queue.Stop()
	}
	m.logger.Info("session manager stopped", "sessions", len(sessions))
}

func (m *Manager) handleIdentityEvent(ev shared.IdentityEvent) {
	switch ev.Kind {
	case shared.IdentitySignedIn:
		if s, created, err := m.sessionFor(ev.Identity); err == nil && !created {
			// a repeated sign-in re-binds the identity, which resubscribes
			s.Context().Bind(ev.Identity)
		}
	case shared.IdentitySignedOut:
		m.End(ev.Identity)
	}
}

// SessionFor returns the session of identity, creating it on first use.
func (m *Manager) SessionFor(identity user.Identity) (*Session, error) {
	s, _, err := m.sessionFor(identity)
	return s, err
}

func (m *Manager) sessionFor(identity user.Identity) (*Session, bool, error) {
	if identity.IsAnonymous() {
		return nil, false, commands.ErrAuthRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, false, ErrManagerStopped
	}
	if s, ok := m.sessions[identity.Email()]; ok {
		return s, false, nil
	}

	s := New(identity, m.deps)
	m.sessions[identity.Email()] = s
	m.logger.Debug("session started", "holder", identity.Email())
	return s, true, nil
}

// End closes the session of identity, if any.
func (m *Manager) End(identity user.Identity) {
	m.mu.Lock()
	s, ok := m.sessions[identity.Email()]
	delete(m.sessions, identity.Email())
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Debug("session ended", "holder", identity.Email())
	}
}

func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) Reserve(ctx context.Context, identity user.Identity, id slot.ID) (*commands.ReserveResult, error) {
	s, err := m.commandSession(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.Coordinator().Reserve(ctx, id)
}

func (m *Manager) Cancel(ctx context.Context, identity user.Identity, id slot.ID) error {
	s, err := m.commandSession(ctx, identity)
	if err != nil {
		return err
	}
	return s.Coordinator().Cancel(ctx, id)
}

// commandSession returns the session of identity with its reservation view loaded, so
// the limit and ownership checks of a fresh session see what the store already holds.
func (m *Manager) commandSession(ctx context.Context, identity user.Identity) (*Session, error) {
	s, err := m.SessionFor(identity)
	if err != nil {
		return nil, err
	}
	if err := s.Prime(ctx, identity); err != nil {
		m.logger.Error("failed to load reservations", "holder", identity.Email(), "error", err.Error())
		return nil, errs.Mark(err, commands.ErrPersistenceFailed)
	}
	return s, nil
}

func (m *Manager) Lot(ctx context.Context, identity user.Identity) (*queries.LotView, error) {
	u, err := m.await(ctx, identity)
	if err != nil {
		return nil, err
	}
	if u.Health == registry.HealthFailed {
		return nil, errs.Mark(u.Err, commands.ErrSubscriptionFailed)
	}
	view := m.lotView(u)
	return &view, nil
}

func (m *Manager) Reservations(ctx context.Context, identity user.Identity) ([]queries.SlotView, error) {
	u, err := m.await(ctx, identity)
	if err != nil {
		return nil, err
	}
	return queries.ToSlotViews(u.Reservations), nil
}

func (m *Manager) Live(ctx context.Context, identity user.Identity) (<-chan queries.LotView, error) {
	s, err := m.SessionFor(identity)
	if err != nil {
		return nil, err
	}

	updates := s.Subscriptions().Watch(ctx)
	out := make(chan queries.LotView, 1)
	go func() {
		defer close(out)
		for u := range updates {
			select {
			case out <- m.lotView(u):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// await waits for the session's first snapshot.
func (m *Manager) await(ctx context.Context, identity user.Identity) (Update, error) {
	s, err := m.SessionFor(identity)
	if err != nil {
		return Update{}, err
	}
	select {
	case <-s.Subscriptions().Ready():
		return s.Subscriptions().Current(), nil
	case <-ctx.Done():
		return Update{}, ctx.Err()
	}
}

func (m *Manager) lotView(u Update) queries.LotView {
	return queries.NewLotView(u.Slots, u.Reservations, m.maintenance, string(u.Health))
}
