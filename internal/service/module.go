package service

import (
	"log/slog"

	"github.com/pairly/messaging-service/config"
	"github.com/pairly/messaging-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		func(cfg *config.Config) *TokenAuther {
			return NewTokenAuther([]byte(cfg.Auth.Secret))
		},
		fx.Annotate(
			func(a *TokenAuther) Auther { return a },
			fx.As(new(Auther)),
		),

		func(store ConversationStore, cfg *config.Config) *ConversationGuard {
			return NewConversationGuard(store, cfg.Guard.CacheSize, cfg.Guard.CacheTTL)
		},
		fx.Annotate(
			func(g *ConversationGuard) Guard { return g },
			fx.As(new(Guard)),
		),

		fx.Annotate(
			NewSignalBroadcaster,
			fx.As(new(Broadcaster)),
		),

		fx.Annotate(
			NewDeliveryPipeline,
			fx.As(new(Messenger)),
		),

		func(a Auther, hub registry.Hubber, b Broadcaster, logger *slog.Logger, cfg *config.Config) *SessionManager {
			return NewSessionManager(a, hub, b, logger, cfg.Hub.ConnectionBuffer, cfg.Auth.HandshakeTimeout)
		},
		fx.Annotate(
			func(m *SessionManager) Sessions { return m },
			fx.As(new(Sessions)),
		),
	),

	// [DECORATION_LAYER] Intercept the pipeline to add cross-cutting concerns.
	fx.Decorate(func(orig Messenger, logger *slog.Logger) Messenger {
		return &MessengerMiddleware{
			Next:   orig,
			Logger: logger,
		}
	}),
)
