package event

import (
	"time"

	"github.com/google/uuid"
)

var _ Eventer = (*SystemEvent)(nil)

// SystemEvent is the generic carrier for control-plane and ephemeral
// signals: connected/disconnected acks, presence changes, typing
// indicators, read receipts and scoped errors. Business events with bus
// semantics (message:new, notification:message) have dedicated types.
type SystemEvent struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	Priority   Priority  `json:"priority"`
	OccurredAt int64     `json:"occurred_at"`
	Payload    any       `json:"payload"`
	cached     any
}

func NewSystemEvent(kind Kind, priority Priority, payload any) *SystemEvent {
	return &SystemEvent{
		ID:         uuid.New(),
		Kind:       kind,
		Priority:   priority,
		OccurredAt: time.Now().UnixMilli(),
		Payload:    payload,
	}
}

func (e *SystemEvent) GetID() string          { return e.ID.String() }
func (e *SystemEvent) GetKind() Kind          { return e.Kind }
func (e *SystemEvent) GetPriority() Priority  { return e.Priority }
func (e *SystemEvent) GetOccurredAt() int64   { return e.OccurredAt }
func (e *SystemEvent) GetPayload() any        { return e.Payload }
func (e *SystemEvent) GetCached() any         { return e.cached }
func (e *SystemEvent) SetCached(v any)        { e.cached = v }
