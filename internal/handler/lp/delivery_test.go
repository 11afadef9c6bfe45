package lp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
	"github.com/pairly/messaging-service/internal/domain/registry"
	wsmarshaller "github.com/pairly/messaging-service/internal/handler/marshaller/ws"
	"github.com/pairly/messaging-service/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type lpStore struct {
	conv *model.Conversation
}

func (s *lpStore) FindConversation(_ context.Context, id uuid.UUID) (*model.Conversation, error) {
	if s.conv == nil || s.conv.ID != id {
		return nil, fmt.Errorf("%w: conversation %s", errs.ErrNotFound, id)
	}
	return s.conv, nil
}

func (s *lpStore) CreateMessage(_ context.Context, msg *model.Message) (*model.Message, error) {
	return msg, nil
}

func (s *lpStore) GetMessage(context.Context, uuid.UUID) (*model.Message, error) {
	return nil, errs.ErrNotFound
}

func (s *lpStore) GetMessages(context.Context, uuid.UUID, service.HistoryQuery) ([]*model.Message, error) {
	return nil, nil
}

func (s *lpStore) MarkMessageRead(context.Context, uuid.UUID) (*model.Message, error) {
	return nil, errs.ErrNotFound
}

func (s *lpStore) MarkConversationRead(context.Context, uuid.UUID, uuid.UUID) (int, error) {
	return 0, nil
}

func (s *lpStore) CountUnread(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (s *lpStore) TouchLastActivity(context.Context, uuid.UUID) error { return nil }

type lpFixture struct {
	server *httptest.Server
	hub    *registry.Hub
	conv   *model.Conversation
	userA  uuid.UUID
	userB  uuid.UUID
}

func newLPFixture(t *testing.T) *lpFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userA, userB := uuid.New(), uuid.New()
	conv := &model.Conversation{
		ID:      uuid.New(),
		UserAID: userA,
		UserBID: userB,
		Status:  model.ConversationActive,
	}

	hub := registry.NewHub()
	t.Cleanup(hub.Shutdown)

	auther := service.NewTokenAuther([]byte(testSecret))
	broadcaster := service.NewSignalBroadcaster(hub, logger)
	sessions := service.NewSessionManager(auther, hub, broadcaster, logger, 32, time.Second)
	guard := service.NewConversationGuard(&lpStore{conv: conv}, 16, time.Minute)

	handler := NewLPHandler(sessions, guard)
	server := httptest.NewServer(http.HandlerFunc(handler.Poll))
	t.Cleanup(server.Close)

	return &lpFixture{server: server, hub: hub, conv: conv, userA: userA, userB: userB}
}

func (f *lpFixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &service.TokenClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// waitOnline blocks until the polling session has registered, so events
// broadcast afterwards are guaranteed to reach its mailbox.
func (f *lpFixture) waitOnline(t *testing.T, userID uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !f.hub.IsOnline(userID) {
		if time.Now().After(deadline) {
			t.Fatal("poll session never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoll_Requires_Credential(t *testing.T) {
	req := require.New(t)
	f := newLPFixture(t)

	resp, err := http.Get(f.server.URL)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestPoll_Delivers_Broadcast_Event(t *testing.T) {
	req := require.New(t)
	f := newLPFixture(t)

	type result struct {
		status int
		body   []byte
	}
	pollURL := f.server.URL + "?token=" + f.token(t, f.userA)
	results := make(chan result, 1)
	go func() {
		resp, err := http.Get(pollURL)
		if err != nil {
			results <- result{}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		results <- result{status: resp.StatusCode, body: body}
	}()

	f.waitOnline(t, f.userA)
	req.True(f.hub.BroadcastUser(f.userA, event.NewErrorEvent("wake up")))

	select {
	case res := <-results:
		req.Equal(http.StatusOK, res.status)

		var batch []wsmarshaller.WSEvent
		req.NoError(json.Unmarshal(res.body, &batch))
		req.NotEmpty(batch)
		req.Equal("error", batch[0].Event)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not return after the broadcast")
	}

	// The short-lived session is torn down with the request.
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.IsOnline(f.userA) {
		if time.Now().After(deadline) {
			t.Fatal("poll session leaked past its request")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoll_Rejects_Foreign_Conversation(t *testing.T) {
	req := require.New(t)
	f := newLPFixture(t)

	outsider := uuid.New()
	resp, err := http.Get(f.server.URL + "?token=" + f.token(t, outsider) +
		"&conversation_id=" + f.conv.ID.String())
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestPoll_Rejects_Malformed_Conversation_ID(t *testing.T) {
	req := require.New(t)
	f := newLPFixture(t)

	resp, err := http.Get(f.server.URL + "?token=" + f.token(t, f.userA) +
		"&conversation_id=not-a-uuid")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}
