package pubsub

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/pairly/messaging-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewBus,
		NewNodeID,

		func(bus *Bus, nodeID NodeID, logger *slog.Logger) EventDispatcher {
			return NewEventDispatcher(bus.Publisher, string(nodeID), logger)
		},
		fx.Annotate(
			func(d EventDispatcher) service.Notifier { return d },
			fx.As(new(service.Notifier)),
		),
	),
)

// NodeID identifies this instance on the bus; consumers use it to skip
// events they published themselves.
type NodeID string

func NewNodeID() NodeID {
	return NodeID(watermill.NewShortUUID())
}
