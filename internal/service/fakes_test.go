package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
)

// memStore is an in-memory ConversationStore for service-level tests.
// It honors the same error taxonomy as the durable implementation.
type memStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*model.Conversation
	messages      map[uuid.UUID]*model.Message

	findCalls int
	failAll   bool
}

func newMemStore() *memStore {
	return &memStore{
		conversations: make(map[uuid.UUID]*model.Conversation),
		messages:      make(map[uuid.UUID]*model.Message),
	}
}

func (s *memStore) addConversation(a, b uuid.UUID, status model.ConversationStatus) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &model.Conversation{
		ID:        uuid.New(),
		UserAID:   a,
		UserBID:   b,
		Status:    status,
		CreatedAt: time.Now(),
	}
	s.conversations[conv.ID] = conv
	return conv
}

func (s *memStore) FindConversation(_ context.Context, id uuid.UUID) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.failAll {
		return nil, fmt.Errorf("%w: store down", errs.ErrUnavailable)
	}
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", errs.ErrNotFound, id)
	}
	return conv, nil
}

func (s *memStore) CreateMessage(_ context.Context, msg *model.Message) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("%w: store down", errs.ErrUnavailable)
	}
	stored := *msg
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.IsRead = false
	s.messages[stored.ID] = &stored
	return &stored, nil
}

func (s *memStore) GetMessage(_ context.Context, id uuid.UUID) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", errs.ErrNotFound, id)
	}
	return msg, nil
}

func (s *memStore) GetMessages(_ context.Context, convID uuid.UUID, q HistoryQuery) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, msg := range s.messages {
		if msg.ConversationID != convID {
			continue
		}
		if !q.Before.IsZero() && !msg.CreatedAt.Before(q.Before) {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memStore) MarkMessageRead(_ context.Context, id uuid.UUID) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", errs.ErrNotFound, id)
	}
	now := time.Now()
	msg.IsRead = true
	msg.ReadAt = &now
	return msg, nil
}

func (s *memStore) MarkConversationRead(_ context.Context, convID, exceptSenderID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	now := time.Now()
	for _, msg := range s.messages {
		if msg.ConversationID != convID || msg.SenderID == exceptSenderID || msg.IsRead {
			continue
		}
		msg.IsRead = true
		msg.ReadAt = &now
		count++
	}
	return count, nil
}

func (s *memStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, msg := range s.messages {
		conv, ok := s.conversations[msg.ConversationID]
		if !ok || !conv.IsActive() || !conv.HasParticipant(userID) {
			continue
		}
		if msg.SenderID != userID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memStore) TouchLastActivity(_ context.Context, convID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[convID]; ok {
		conv.LastMessageAt = time.Now()
	}
	return nil
}

// recordingNotifier captures what the pipeline hands to the async path.
type recordingNotifier struct {
	mu     sync.Mutex
	events []*event.NotificationEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev *event.NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}
