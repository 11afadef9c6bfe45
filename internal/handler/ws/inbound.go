package ws

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/model"
)

// Client event names. Everything else fails closed with a validation error.
const (
	evConversationJoin  = "conversation:join"
	evConversationLeave = "conversation:leave"
	evMessageSend       = "message:send"
	evMessageTyping     = "message:typing"
	evMessageRead       = "message:read"
)

// ClientEvent is the tagged envelope for inbound frames. The payload is
// decoded against the schema of the named event before any dispatch.
type ClientEvent struct {
	Event   string          `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
}

type sendPayload struct {
	ConversationID uuid.UUID     `json:"conversation_id" validate:"required"`
	Content        string        `json:"content" validate:"required,max=4000"`
	Media          *mediaPayload `json:"media,omitempty"`
}

type mediaPayload struct {
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type" validate:"omitempty,oneof=image video audio"`
}

func (m *mediaPayload) toDomain() *model.Media {
	if m == nil {
		return nil
	}
	mediaType := model.MediaType(m.Type)
	if mediaType == "" {
		mediaType = model.MediaImage
	}
	return &model.Media{URL: m.URL, Type: mediaType}
}

type typingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
	IsTyping       bool      `json:"is_typing"`
}

type readPayload struct {
	ConversationID uuid.UUID `json:"conversation_id" validate:"required"`
}

// decode unmarshals and validates an event payload in one step; both
// failure modes fold into errs.ErrValidation so the client gets a single
// scoped error shape.
func decode[T any](raw json.RawMessage, v *validator.Validate) (*T, error) {
	payload := new(T)
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", errs.ErrValidation, err)
	}
	if err := v.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return payload, nil
}
