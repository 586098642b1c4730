package components

import (
	"context"
	"log/slog"
	"net/http"

	"parkwise/internal/infra/codegen"
	"parkwise/internal/infra/identity"
	"parkwise/internal/infra/notifier"
	"parkwise/internal/pkg/clock"
	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/password"
	"parkwise/internal/usecase"
	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/confirmation"
	"parkwise/internal/usecase/queries"
	"parkwise/internal/usecase/registry"
	"parkwise/internal/usecase/session"
	"parkwise/internal/usecase/shared"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseQueriesModule,
	usecaseValidatorsModule,
	usecaseCommandsModule,
	usecaseSessionModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	password.NewHasher,
	func(cfg config.Config) *http.Client {
		return &http.Client{Timeout: cfg.Notifier.Timeout}
	},
	fx.Annotate(
		func(client *http.Client, cfg config.Config, logger *slog.Logger) *notifier.EmailJS {
			return notifier.NewEmailJS(client, cfg.Notifier, logger)
		},
		fx.As(new(shared.Notifier)),
	),
	fx.Annotate(
		func(cfg config.Config) *codegen.QRServer {
			return codegen.NewQRServer(cfg.CodeGen)
		},
		fx.As(new(shared.CodeGenerator)),
	),
	fx.Annotate(
		identity.NewProvider,
		fx.As(new(shared.IdentityProvider)),
	),
	registry.NewSlotRegistry,
	fx.Annotate(
		confirmation.NewDispatcher,
		fx.As(new(commands.ConfirmationDispatcher)),
	),
	commands.NewIntentQueueFromConfig,
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		commands.NewAuthCommands,
		commands.NewOccupancyCommands,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewUserQueries,
	),
)

var usecaseValidatorsModule = fx.Module("usecase/validators",
	fx.Provide(
		usecase.NewTokenValidator,
	),
)

// The session manager serves both the reservation commands and the lot queries.
var usecaseSessionModule = fx.Module("usecase/session",
	fx.Provide(
		NewSessionManager,
		func(m *session.Manager) commands.ReservationCommands { return m },
		func(m *session.Manager) queries.LotQueries { return m },
	),
)

func NewSessionManager(
	lc fx.Lifecycle,
	provider shared.IdentityProvider,
	reg *registry.SlotRegistry,
	store shared.SlotStore,
	dispatcher commands.ConfirmationDispatcher,
	queue *commands.IntentQueue,
	cfg config.Config,
	logger *slog.Logger,
) *session.Manager {
	m := session.NewManager(provider, reg, store, dispatcher, queue, cfg, logger)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			m.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			m.Stop()
			return nil
		},
	})
	return m
}
