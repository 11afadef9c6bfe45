package event

import (
	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/model"
)

var _ Eventer = (*MessageNewEvent)(nil)

// MessageNewEvent fans a freshly persisted message out to the conversation
// room. The message is immutable from this point on; the marshalled wire
// form is cached so multiple sessions pay the encoding cost once.
type MessageNewEvent struct {
	ID      uuid.UUID      `json:"id"`
	Message *model.Message `json:"message"`
	cached  any
}

func NewMessageNewEvent(msg *model.Message) *MessageNewEvent {
	return &MessageNewEvent{
		ID:      uuid.New(),
		Message: msg,
	}
}

func (e *MessageNewEvent) GetID() string         { return e.ID.String() }
func (e *MessageNewEvent) GetKind() Kind         { return MessageNew }
func (e *MessageNewEvent) GetPriority() Priority { return PriorityHigh }
func (e *MessageNewEvent) GetOccurredAt() int64  { return e.Message.CreatedAt.UnixMilli() }
func (e *MessageNewEvent) GetPayload() any       { return e.Message }
func (e *MessageNewEvent) GetCached() any        { return e.cached }
func (e *MessageNewEvent) SetCached(v any)       { e.cached = v }
