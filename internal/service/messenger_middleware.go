package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/model"
)

// MessengerMiddleware implements [DECORATOR_PATTERN] to add observability
// to the delivery pipeline without touching business logic.
type MessengerMiddleware struct {
	Next   Messenger
	Logger *slog.Logger
}

func (m *MessengerMiddleware) Send(ctx context.Context, convID, senderID uuid.UUID, content string, media *model.Media) (*model.Message, error) {
	start := time.Now()
	msg, err := m.Next.Send(ctx, convID, senderID, content, media)

	if err != nil {
		m.Logger.Warn("send failed",
			"conversation_id", convID,
			"sender_id", senderID,
			"duration_ms", time.Since(start).Milliseconds(),
			"err", err,
		)
	} else {
		m.Logger.Debug("message delivered",
			"conversation_id", convID,
			"message_id", msg.ID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return msg, err
}

func (m *MessengerMiddleware) History(ctx context.Context, convID, userID uuid.UUID, q HistoryQuery) ([]*model.Message, error) {
	start := time.Now()
	msgs, err := m.Next.History(ctx, convID, userID, q)
	if err != nil {
		m.Logger.Warn("history fetch failed", "conversation_id", convID, "err", err)
		return nil, err
	}
	m.Logger.Debug("history served",
		"conversation_id", convID,
		"messages", len(msgs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return msgs, nil
}

func (m *MessengerMiddleware) MarkRead(ctx context.Context, messageID, userID uuid.UUID) (*model.Message, error) {
	msg, err := m.Next.MarkRead(ctx, messageID, userID)
	if err != nil {
		m.Logger.Warn("mark read failed", "message_id", messageID, "err", err)
	}
	return msg, err
}

func (m *MessengerMiddleware) MarkAllRead(ctx context.Context, convID, userID uuid.UUID) (int, error) {
	count, err := m.Next.MarkAllRead(ctx, convID, userID)
	if err != nil {
		m.Logger.Warn("mark all read failed", "conversation_id", convID, "err", err)
	}
	return count, err
}

func (m *MessengerMiddleware) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.Next.UnreadCount(ctx, userID)
}
