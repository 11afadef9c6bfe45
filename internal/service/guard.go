package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/model"
)

// Guard decides whether a user may act inside a conversation. It is
// consulted synchronously before every protected action; room membership
// is never a substitute for it.
type Guard interface {
	// Authorize fetches the conversation and fails with errs.ErrNotFound
	// when it does not exist, errs.ErrForbidden when userID is not one of
	// its two participants.
	Authorize(ctx context.Context, userID, convID uuid.UUID) (*model.Conversation, error)
	// RequireActive fails with errs.ErrBadState unless the conversation
	// accepts writes. Read paths skip this check.
	RequireActive(conv *model.Conversation) error
}

var _ Guard = (*ConversationGuard)(nil)

type ConversationGuard struct {
	store ConversationStore

	// [HOT_PATH] Read-through cache over the store. The TTL is short on
	// purpose: an unmatch/block must take effect within one window.
	cache *expirable.LRU[uuid.UUID, *model.Conversation]
}

func NewConversationGuard(store ConversationStore, cacheSize int, cacheTTL time.Duration) *ConversationGuard {
	return &ConversationGuard{
		store: store,
		cache: expirable.NewLRU[uuid.UUID, *model.Conversation](cacheSize, nil, cacheTTL),
	}
}

func (g *ConversationGuard) Authorize(ctx context.Context, userID, convID uuid.UUID) (*model.Conversation, error) {
	conv, ok := g.cache.Get(convID)
	if !ok {
		var err error
		conv, err = g.store.FindConversation(ctx, convID)
		if err != nil {
			return nil, err
		}
		g.cache.Add(convID, conv)
	}

	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: user %s is not a participant of conversation %s",
			errs.ErrForbidden, userID, convID)
	}
	return conv, nil
}

func (g *ConversationGuard) RequireActive(conv *model.Conversation) error {
	if !conv.IsActive() {
		return fmt.Errorf("%w: conversation %s is %s", errs.ErrBadState, conv.ID, conv.Status)
	}
	return nil
}
