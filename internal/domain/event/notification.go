package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/model"
)

var (
	_ Eventer    = (*NotificationEvent)(nil)
	_ Exportable = (*NotificationEvent)(nil)
)

// NotificationEvent is the directed "new message" signal for a recipient
// that is not viewing the conversation.
//
// It distinguishes between:
//   - the conversation participants (the "who"), carried in the payload;
//   - TargetID (the "where"): the one user whose personal room — and,
//     via the bus, whose push channel — receives this instance.
//
// Exporting it with the target in the routing key lets every node (and the
// push gateway) decide locally whether the delivery concerns it.
type NotificationEvent struct {
	ID         uuid.UUID                  `json:"id"`
	TargetID   uuid.UUID                  `json:"target_id"`
	Payload    *model.NotificationPayload `json:"payload"`
	OccurredAt int64                      `json:"occurred_at"`
	cached     any
}

func NewNotificationEvent(targetID uuid.UUID, convID uuid.UUID, msg *model.Message) *NotificationEvent {
	return &NotificationEvent{
		ID:       uuid.New(),
		TargetID: targetID,
		Payload: &model.NotificationPayload{
			ConversationID: convID,
			Message:        msg,
		},
		OccurredAt: time.Now().UnixMilli(),
	}
}

func (e *NotificationEvent) GetID() string         { return e.ID.String() }
func (e *NotificationEvent) GetKind() Kind         { return Notification }
func (e *NotificationEvent) GetPriority() Priority { return PriorityHigh }
func (e *NotificationEvent) GetOccurredAt() int64  { return e.OccurredAt }
func (e *NotificationEvent) GetPayload() any       { return e.Payload }
func (e *NotificationEvent) GetCached() any        { return e.cached }
func (e *NotificationEvent) SetCached(v any)       { e.cached = v }

// GetRoutingKey builds the bus topic for this delivery.
// [PATTERN] notify.v1.{target_user_id}.message.created
func (e *NotificationEvent) GetRoutingKey() string {
	return fmt.Sprintf("notify.v1.%s.message.created", e.TargetID)
}
