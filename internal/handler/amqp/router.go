package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"

	"github.com/pairly/messaging-service/internal/adapter/pubsub"
	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/registry"
)

const (
	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicMessageNotify = "notify.v1.#"

	// ------------------- QUEUES (CONSUMERS) --------------------
	NotifyRelayQueue  = "messaging.notify-relay.v1"
	NotifyPoisonTopic = "messaging.notify-relay.v1.poison"
)

// NotificationRelay consumes peer-node notification events and delivers
// them to recipients with live sessions on this node. Without it, a user
// connected to node B never hears about a message sent through node A.
type NotificationRelay struct {
	hub        registry.Hubber
	dispatcher pubsub.EventDispatcher
	logger     *slog.Logger
	nodeID     pubsub.NodeID
}

func NewNotificationRelay(hub registry.Hubber, dispatcher pubsub.EventDispatcher, logger *slog.Logger, nodeID pubsub.NodeID) *NotificationRelay {
	return &NotificationRelay{hub: hub, dispatcher: dispatcher, logger: logger, nodeID: nodeID}
}

// [ON_MESSAGE_NOTIFY]
// The payload is the exported NotificationEvent verbatim; re-hydrate it so
// the local session gets the exact same wire shape as a local delivery.
func (h *NotificationRelay) OnMessageNotifyV1(ctx context.Context, userID uuid.UUID, raw *event.NotificationEvent) (event.Eventer, error) {
	if raw.Payload == nil || raw.Payload.Message == nil {
		h.logger.Warn("EMPTY_NOTIFICATION_DROPPED", "event_id", raw.ID)
		return nil, nil
	}
	return raw, nil
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{
		CloseTimeout: 15 * time.Second,
	}, logger)
}

// [REGISTRATION_PIPELINE]
func (h *NotificationRelay) RegisterHandlers(router *message.Router, bus *pubsub.Bus) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), NotifyPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_MSG_NOTIFY", TopicMessageNotify, Bind(h, h.OnMessageNotifyV1)},
	}

	for _, c := range configs {
		router.AddNoPublisherHandler(c.name, c.topic, bus.Subscriber, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("BUS_PIPELINE_READY", "queue", NotifyRelayQueue)
	return nil
}
