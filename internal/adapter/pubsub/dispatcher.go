package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sony/gobreaker"

	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/event"
)

const (
	// MetadataOriginNode marks which node published an event so consumers
	// can skip their own traffic.
	MetadataOriginNode = "origin_node"

	// MetadataRoutingKey mirrors the AMQP routing key into message
	// metadata; the in-process bus has no broker headers, so consumers
	// read the key from here on every transport.
	MetadataRoutingKey = "routing_key"
)

// EventDispatcher is the high-level contract for outgoing bus events.
// Handlers stay agnostic of the transport implementation behind it.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
	Publisher() message.Publisher

	// Notify satisfies the pipeline's Notifier port: the asynchronous
	// notification path IS the bus export of the notification event.
	Notify(ctx context.Context, ev *event.NotificationEvent) error
}

type eventDispatcher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker
	nodeID    string
	logger    *slog.Logger
}

// NewEventDispatcher wraps the publisher with a circuit breaker: when the
// broker is down, sends fail fast instead of stacking up blocked
// goroutines behind a dead connection.
func NewEventDispatcher(pub message.Publisher, nodeID string, logger *slog.Logger) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "notify-bus",
		}),
		nodeID: nodeID,
		logger: logger,
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	exportable, ok := ev.(event.Exportable)
	if !ok {
		return nil // Local-only event, nothing to export.
	}
	topic := exportable.GetRoutingKey()
	if topic == "" {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataOriginNode, d.nodeID)
	msg.Metadata.Set(MetadataRoutingKey, topic)

	if _, err := d.breaker.Execute(func() (any, error) {
		return nil, d.publisher.Publish(topic, msg)
	}); err != nil {
		return fmt.Errorf("event dispatcher: publish to %s: %w: %w", topic, errs.ErrUnavailable, err)
	}

	d.logger.Debug("event exported", "topic", topic, "event_id", ev.GetID())
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

func (d *eventDispatcher) Notify(ctx context.Context, ev *event.NotificationEvent) error {
	return d.Publish(ctx, ev)
}
