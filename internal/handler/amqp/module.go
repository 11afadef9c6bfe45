package amqp

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/pairly/messaging-service/internal/adapter/pubsub"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewNotificationRelay,
		NewWatermillRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, relay *NotificationRelay, router *message.Router, bus *pubsub.Bus) error {
		if err := relay.RegisterHandlers(router, bus); err != nil {
			return err
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					// Run blocks for the lifetime of the app; errors at
					// this level mean the bus connection died.
					if err := router.Run(context.Background()); err != nil {
						relay.logger.Error("bus router stopped", "err", err)
					}
				}()

				select {
				case <-router.Running():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			OnStop: func(context.Context) error {
				return router.Close()
			},
		})
		return nil
	}),
)
