package components

import (
	"context"
	"log/slog"

	"parkwise/internal/infra/memstore"
	"parkwise/internal/infra/repository"
	"parkwise/internal/infra/slotfeed"
	"parkwise/internal/pkg/config"
	"parkwise/internal/usecase/queries"
	"parkwise/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		NewStores,
	),
)

// Stores are the backing-store ports, all served by the driver STORE_DRIVER selects.
type Stores struct {
	fx.Out

	Slots    shared.SlotStore
	Feed     shared.SlotFeed
	Users    shared.UserStore
	Accounts queries.AccountReadStore
}

func NewStores(lc fx.Lifecycle, cfg config.Config, pool *pgxpool.Pool, logger *slog.Logger) Stores {
	if cfg.Store.Driver == config.StoreDriverMemory || pool == nil {
		logger.Info("using in-memory store", "slots", len(cfg.Store.MemorySlots))
		slots := memstore.NewSlotStore(cfg)
		users := memstore.NewUserStore()
		return Stores{Slots: slots, Feed: slots, Users: users, Accounts: users}
	}

	slots := repository.NewSlotRepository(pool)
	users := repository.NewUserRepository(pool)
	listener := slotfeed.NewListener(pool, slots, cfg, logger)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			listener.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			listener.Stop()
			return nil
		},
	})

	return Stores{Slots: slots, Feed: listener, Users: users, Accounts: users}
}
