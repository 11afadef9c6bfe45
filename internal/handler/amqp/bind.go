package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/pairly/messaging-service/internal/adapter/pubsub"
	"github.com/pairly/messaging-service/internal/domain/event"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, userID uuid.UUID, payload *T) (event.Eventer, error)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects the bus to domain logic, handling Panic Recovery,
// Origin Filtering, Locality and local fan-out.
func Bind[T any](h *NotificationRelay, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		// [ORIGIN_FILTER]
		// Our own publications come back through the topic exchange; the
		// local fan-out already happened before the export.
		if msg.Metadata.Get(pubsub.MetadataOriginNode) == string(h.nodeID) {
			return nil // ACK: own traffic.
		}

		// [IDENTIFICATION]
		// Extract recipient UUID from the routing key for routing decisions.
		userID, ok := resolveUserID(msg)
		if !ok {
			h.logger.Warn("ROUTING_FAILED: recipient_missing", "msg_id", msg.UUID)
			return nil // ACK: Invalid routing is a terminal state.
		}

		// [LOCALITY_FILTER]
		// Distributed scaling: process only if the target user has a live
		// session on THIS node.
		if !h.hub.IsOnline(userID) {
			return nil // ACK: Handled by another instance.
		}

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		ev, err := fn(msg.Context(), userID, payload)
		if err != nil {
			return err // NACK: Business failure triggers Retry policy.
		}
		if ev == nil {
			return nil
		}

		// [LOCAL_DISPATCH]
		// Directed delivery to the recipient's personal room on this node.
		// No re-export: the event is already on the bus.
		h.hub.BroadcastUser(userID, ev)
		return nil
	}
}

func resolveUserID(msg *message.Message) (uuid.UUID, bool) {
	rk := msg.Metadata.Get("x-routing-key")
	if rk == "" {
		rk = msg.Metadata.Get(pubsub.MetadataRoutingKey)
	}

	for _, part := range strings.Split(rk, ".") {
		if uid, err := uuid.Parse(part); err == nil {
			return uid, true
		}
	}
	return uuid.Nil, false
}
