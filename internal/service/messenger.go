package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
	"github.com/pairly/messaging-service/internal/domain/registry"
)

// Messenger is the message delivery pipeline: the single authoritative
// path for persisting a message and fanning it out. Both the real-time
// handlers and the REST handlers call it — neither ever persists or
// broadcasts on its own, so a logical action cannot double-deliver.
type Messenger interface {
	Send(ctx context.Context, convID, senderID uuid.UUID, content string, media *model.Media) (*model.Message, error)
	// History pages messages newest-first. Viewing history marks all
	// messages not sent by userID as read and emits one read receipt —
	// the coupling is part of the contract.
	History(ctx context.Context, convID, userID uuid.UUID, q HistoryQuery) ([]*model.Message, error)
	// MarkRead is a no-op when userID authored the message.
	MarkRead(ctx context.Context, messageID, userID uuid.UUID) (*model.Message, error)
	MarkAllRead(ctx context.Context, convID, userID uuid.UUID) (int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

var _ Messenger = (*DeliveryPipeline)(nil)

type DeliveryPipeline struct {
	guard       Guard
	store       ConversationStore
	hub         registry.Hubber
	broadcaster Broadcaster
	notifier    Notifier
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewDeliveryPipeline(
	guard Guard,
	store ConversationStore,
	hub registry.Hubber,
	broadcaster Broadcaster,
	notifier Notifier,
	logger *slog.Logger,
) *DeliveryPipeline {
	return &DeliveryPipeline{
		guard:       guard,
		store:       store,
		hub:         hub,
		broadcaster: broadcaster,
		notifier:    notifier,
		logger:      logger,
		tracer:      otel.Tracer("messenger"),
	}
}

// Send runs the linear delivery pipeline. Persistence happens-before any
// broadcast: a failure at the store aborts the whole call with nothing
// fanned out, while failures past the durable write are best-effort only.
func (p *DeliveryPipeline) Send(ctx context.Context, convID, senderID uuid.UUID, content string, media *model.Media) (*model.Message, error) {
	ctx, span := p.tracer.Start(ctx, "messenger.send",
		trace.WithAttributes(attribute.String("conversation_id", convID.String())))
	defer span.End()

	// 1. Authorization. Send also requires an active conversation.
	conv, err := p.guard.Authorize(ctx, senderID, convID)
	if err != nil {
		return nil, err
	}
	if err := p.guard.RequireActive(conv); err != nil {
		return nil, err
	}

	// 2. The single durable write. Sole source of truth for the message.
	msg, err := p.store.CreateMessage(ctx, &model.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Content:        content,
		Media:          media,
	})
	if err != nil {
		return nil, err
	}

	// 3. Bump conversation activity. Best-effort: the message is already
	// durable, a stale ordering timestamp is not worth failing the send.
	if err := p.store.TouchLastActivity(ctx, convID); err != nil {
		p.logger.Warn("touch last activity failed", "conversation_id", convID, "err", err)
	}

	// 4-5. Fan out to every session viewing this conversation, the
	// sender's own devices included.
	p.hub.BroadcastRoom(convID, event.NewMessageNewEvent(msg), uuid.Nil)

	// 6. The recipient saw the room broadcast only if one of their
	// sessions joined the room. Otherwise: directed notification to their
	// personal room plus the asynchronous path for offline/background
	// delivery.
	recipient := conv.OtherParticipant(senderID)
	if !p.hub.UserInRoom(convID, recipient) {
		notif := event.NewNotificationEvent(recipient, convID, msg)
		p.hub.BroadcastUser(recipient, notif)

		if err := p.notifier.Notify(ctx, notif); err != nil {
			p.logger.Warn("notification dispatch failed",
				"user_id", recipient, "conversation_id", convID, "err", err)
		}
	}

	return msg, nil
}

func (p *DeliveryPipeline) History(ctx context.Context, convID, userID uuid.UUID, q HistoryQuery) ([]*model.Message, error) {
	ctx, span := p.tracer.Start(ctx, "messenger.history")
	defer span.End()

	if _, err := p.guard.Authorize(ctx, userID, convID); err != nil {
		return nil, err
	}

	// Viewing history doubles as marking read; flip flags before the
	// fetch so the returned page reflects the new state.
	count, err := p.store.MarkConversationRead(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		p.broadcaster.ReadReceipt(convID, &model.ReadReceiptPayload{
			ConversationID: convID,
			UserID:         userID,
			Count:          count,
		})
	}

	return p.store.GetMessages(ctx, convID, q)
}

func (p *DeliveryPipeline) MarkRead(ctx context.Context, messageID, userID uuid.UUID) (*model.Message, error) {
	ctx, span := p.tracer.Start(ctx, "messenger.mark_read")
	defer span.End()

	msg, err := p.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := p.guard.Authorize(ctx, userID, msg.ConversationID)
	if err != nil {
		return nil, err
	}

	// A sender cannot mark their own message read.
	if msg.SenderID == userID {
		return msg, nil
	}

	updated, err := p.store.MarkMessageRead(ctx, messageID)
	if err != nil {
		return nil, err
	}

	p.broadcaster.ReadReceipt(conv.ID, &model.ReadReceiptPayload{
		ConversationID: conv.ID,
		UserID:         userID,
		MessageID:      &messageID,
	})
	return updated, nil
}

func (p *DeliveryPipeline) MarkAllRead(ctx context.Context, convID, userID uuid.UUID) (int, error) {
	ctx, span := p.tracer.Start(ctx, "messenger.mark_all_read")
	defer span.End()

	if _, err := p.guard.Authorize(ctx, userID, convID); err != nil {
		return 0, err
	}

	count, err := p.store.MarkConversationRead(ctx, convID, userID)
	if err != nil {
		return 0, err
	}

	p.broadcaster.ReadReceipt(convID, &model.ReadReceiptPayload{
		ConversationID: convID,
		UserID:         userID,
		Count:          count,
	})
	return count, nil
}

func (p *DeliveryPipeline) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, span := p.tracer.Start(ctx, "messenger.unread_count")
	defer span.End()

	return p.store.CountUnread(ctx, userID)
}
