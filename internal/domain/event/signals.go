package event

import (
	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/model"
)

// Constructors for the ephemeral, best-effort signal family. None of these
// carry a durability contract: a missed delivery is reconstructed later
// from a full state fetch.

func NewTypingEvent(convID, userID uuid.UUID, isTyping bool) *SystemEvent {
	return NewSystemEvent(Typing, PriorityLow, &model.TypingPayload{
		ConversationID: convID,
		UserID:         userID,
		IsTyping:       isTyping,
	})
}

func NewReadReceiptEvent(payload *model.ReadReceiptPayload) *SystemEvent {
	return NewSystemEvent(MessageRead, PriorityNormal, payload)
}

func NewPresenceEvent(userID uuid.UUID, online bool) *SystemEvent {
	kind := UserOffline
	if online {
		kind = UserOnline
	}
	return NewSystemEvent(kind, PriorityLow, &model.PresencePayload{UserID: userID})
}

func NewErrorEvent(msg string) *SystemEvent {
	return NewSystemEvent(Error, PriorityHigh, &model.ErrorPayload{Message: msg})
}
