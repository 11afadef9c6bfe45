package model

import "github.com/google/uuid"

const ServerVersion = "25.08"

// ConnectedPayload is the handshake acknowledgement sent to a client right
// after its connection is registered.
type ConnectedPayload struct {
	Ok            bool   `json:"ok"`
	ConnectionID  string `json:"connection_id"`
	ServerVersion string `json:"server_version"`
}

// DisconnectedPayload is pushed before the server closes the session.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"` // "SHUTDOWN", "EVICTED", "AUTH"
}

// PresencePayload announces a user going online or offline.
type PresencePayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// TypingPayload relays a typing indicator inside a conversation.
type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
}

// ReadReceiptPayload reports messages flipped to read. Count is set for
// mark-all receipts, MessageID for single-message receipts.
type ReadReceiptPayload struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserID         uuid.UUID  `json:"user_id"`
	Count          int        `json:"count,omitempty"`
	MessageID      *uuid.UUID `json:"message_id,omitempty"`
}

// NotificationPayload is the directed "you have a message" signal for
// recipients that are not viewing the conversation.
type NotificationPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Message        *Message  `json:"message"`
}

// ErrorPayload is delivered to the originating connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}
