package registry

import (
	"context"

	"github.com/pairly/messaging-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure the Hub using functional options.
		func(cfg *config.Config) *Hub {
			return NewHub(
				WithMailboxSize(cfg.Hub.MailboxSize),
				WithSendTimeout(cfg.Hub.SendTimeout),
				WithEvictionInterval(cfg.Hub.EvictionInterval),
				WithIdleTimeout(cfg.Hub.IdleTimeout),
			)
		},
		fx.Annotate(
			func(h *Hub) Hubber { return h },
			fx.As(new(Hubber)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // Stop all cell actors.
				return nil
			},
		})
	}),
)
