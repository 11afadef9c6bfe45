package model

import (
	"time"

	"github.com/google/uuid"
)

type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationUnmatched ConversationStatus = "unmatched"
	ConversationBlocked   ConversationStatus = "blocked"
)

// Conversation is the durable two-party match owned by the conversation
// store. This core only reads it: participants and status drive
// authorization, LastMessageAt is bumped as a delivery side effect.
type Conversation struct {
	ID            uuid.UUID          `json:"id"`
	UserAID       uuid.UUID          `json:"user_a_id"`
	UserBID       uuid.UUID          `json:"user_b_id"`
	Status        ConversationStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	LastMessageAt time.Time          `json:"last_message_at"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// OtherParticipant resolves the peer of userID. The caller must have
// checked HasParticipant first.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

func (c *Conversation) IsActive() bool {
	return c.Status == ConversationActive
}
