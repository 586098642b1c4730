package session

import (
	"context"
	"log/slog"
	"sync"

	"parkwise/internal/domain/user"
	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/queries"
	"parkwise/internal/usecase/registry"
	"parkwise/internal/usecase/shared"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Registry   *registry.SlotRegistry
	Store      shared.SlotStore
	Dispatcher commands.ConfirmationDispatcher
	Queue      *commands.IntentQueue
	Logger     *slog.Logger
}

// Session is the server-side state of one signed-in identity.
type Session struct {
	context       *Context
	view          *queries.PersonalReservationView
	subscriptions *SubscriptionManager
	coordinator   *commands.ReservationCoordinator
	detach        func()

	primeMu sync.Mutex
	primed  bool
}

// New builds a session and binds identity, which opens its registry subscription.
func New(identity user.Identity, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("holder", identity.Email())

	view := queries.NewPersonalReservationView(deps.Store)
	ctx := NewContext(view)
	subs := NewSubscriptionManager(deps.Registry, view, logger)
	detach := subs.Attach(ctx)
	coordinator := commands.NewReservationCoordinator(ctx, view, deps.Store, deps.Dispatcher, deps.Queue, logger)

	ctx.Bind(identity)

	return &Session{
		context:       ctx,
		view:          view,
		subscriptions: subs,
		coordinator:   coordinator,
		detach:        detach,
	}
}

func (s *Session) Context() *Context                             { return s.context }
func (s *Session) View() *queries.PersonalReservationView        { return s.view }
func (s *Session) Subscriptions() *SubscriptionManager           { return s.subscriptions }
func (s *Session) Coordinator() *commands.ReservationCoordinator { return s.coordinator }

// Prime loads the reservation view from the store the first time a command runs on the
// session. Until then the view may still be empty while the first snapshot is in flight.
func (s *Session) Prime(ctx context.Context, identity user.Identity) error {
	s.primeMu.Lock()
	defer s.primeMu.Unlock()
	if s.primed {
		return nil
	}
	if _, err := s.view.Refresh(ctx, identity); err != nil {
		return err
	}
	s.primed = true
	return nil
}

// Close stops the subscription and moves the context to "no identity".
func (s *Session) Close() {
	s.subscriptions.Close()
	s.detach()
	s.context.Unbind()
}
