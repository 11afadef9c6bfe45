package service

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
	"github.com/pairly/messaging-service/internal/domain/registry"
)

// Broadcaster relays non-persistent signals to live participants.
//
// [TRUST_BOUNDARY] The caller authorizes before relaying; these functions
// do not re-check. Delivery is best-effort with no acknowledgement and no
// retry: a missed signal is re-derived from a later full state fetch.
type Broadcaster interface {
	// Typing reaches every session in the conversation room except the
	// sender's own connection.
	Typing(convID, userID, excludeConnID uuid.UUID, isTyping bool)
	// ReadReceipt reaches the whole room, sender included (informational).
	ReadReceipt(convID uuid.UUID, payload *model.ReadReceiptPayload)
	// PresenceChange is the system-wide online/offline fan-out.
	PresenceChange(userID uuid.UUID, online bool, excludeConnID uuid.UUID)
}

var _ Broadcaster = (*SignalBroadcaster)(nil)

type SignalBroadcaster struct {
	hub    registry.Hubber
	logger *slog.Logger
}

func NewSignalBroadcaster(hub registry.Hubber, logger *slog.Logger) *SignalBroadcaster {
	return &SignalBroadcaster{hub: hub, logger: logger}
}

func (b *SignalBroadcaster) Typing(convID, userID, excludeConnID uuid.UUID, isTyping bool) {
	n := b.hub.BroadcastRoom(convID, event.NewTypingEvent(convID, userID, isTyping), excludeConnID)
	b.logger.Debug("typing relayed", "conversation_id", convID, "sessions", n)
}

func (b *SignalBroadcaster) ReadReceipt(convID uuid.UUID, payload *model.ReadReceiptPayload) {
	n := b.hub.BroadcastRoom(convID, event.NewReadReceiptEvent(payload), uuid.Nil)
	b.logger.Debug("read receipt relayed", "conversation_id", convID, "sessions", n)
}

func (b *SignalBroadcaster) PresenceChange(userID uuid.UUID, online bool, excludeConnID uuid.UUID) {
	b.hub.BroadcastAll(event.NewPresenceEvent(userID, online), excludeConnID)
}
