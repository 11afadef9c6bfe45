package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
)

// HistoryQuery pages a conversation backwards in time.
type HistoryQuery struct {
	Limit  int
	Before time.Time // zero value means "from the newest"
}

// ConversationStore is the durable conversation/message collaborator.
// Every method is a suspension point; callers must not hold registry locks
// across these calls. Absent entities surface as errs.ErrNotFound,
// infrastructure failures as errs.ErrUnavailable.
type ConversationStore interface {
	FindConversation(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
	CreateMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error)
	// GetMessages returns messages older than q.Before, newest first,
	// bounded by q.Limit.
	GetMessages(ctx context.Context, convID uuid.UUID, q HistoryQuery) ([]*model.Message, error)
	MarkMessageRead(ctx context.Context, id uuid.UUID) (*model.Message, error)
	// MarkConversationRead flips every unread message in the conversation
	// not sent by exceptSenderID and returns how many it touched.
	MarkConversationRead(ctx context.Context, convID, exceptSenderID uuid.UUID) (int, error)
	// CountUnread counts unread messages addressed to userID across that
	// user's active conversations.
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	// TouchLastActivity bumps the conversation's last-activity timestamp.
	TouchLastActivity(ctx context.Context, convID uuid.UUID) error
}

// Notifier hands a delivery off to the asynchronous notification path
// (message bus, push gateways). Fire-and-forget: the pipeline logs
// failures and never propagates them.
type Notifier interface {
	Notify(ctx context.Context, ev *event.NotificationEvent) error
}

// Auther verifies a client credential and yields the owning user.
type Auther interface {
	Verify(ctx context.Context, credential string) (uuid.UUID, error)
}
