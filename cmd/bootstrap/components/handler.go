package components

import (
	"parkwise/internal/handler"
	"parkwise/internal/handler/api"
	"parkwise/internal/handler/middleware"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewAuthHandler,
		api.NewSlotHandler,
		api.NewLiveHandler,
		middleware.NewAuthMiddleware,
		func(auth *api.AuthHandler, slots *api.SlotHandler, live *api.LiveHandler) handler.Handlers {
			return handler.Handlers{Auth: auth, Slot: slots, Live: live}
		},
	),
	fx.Invoke(handler.NewRouter),
)
