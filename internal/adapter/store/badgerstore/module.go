package badgerstore

import (
	"context"

	"github.com/pairly/messaging-service/config"
	"github.com/pairly/messaging-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("badgerstore",
	fx.Provide(
		func(cfg *config.Config) (*Store, error) {
			return Open(cfg.Store.Path)
		},
		fx.Annotate(
			func(s *Store) service.ConversationStore { return s },
			fx.As(new(service.ConversationStore)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Store) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return s.Close()
			},
		})
	}),
)
