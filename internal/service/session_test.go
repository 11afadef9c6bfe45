package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
	"github.com/pairly/messaging-service/internal/domain/registry"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &TokenClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newSessionFixture(t *testing.T) (*SessionManager, *registry.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := registry.NewHub()
	t.Cleanup(hub.Shutdown)

	auther := NewTokenAuther([]byte(testSecret))
	broadcaster := NewSignalBroadcaster(hub, logger)
	return NewSessionManager(auther, hub, broadcaster, logger, 32, time.Second), hub
}

func TestSessions_Open_Registers_Authenticated_User(t *testing.T) {
	req := require.New(t)
	mgr, hub := newSessionFixture(t)
	userID := uuid.New()

	conn, err := mgr.Open(context.Background(), signToken(t, userID), registry.ConnectMetadata{})
	req.NoError(err)
	defer conn.Close()

	req.Equal(userID, conn.GetUserID())
	req.True(hub.IsOnline(userID))
}

func TestSessions_Open_Rejects_Bad_Credential(t *testing.T) {
	req := require.New(t)
	mgr, hub := newSessionFixture(t)

	for _, credential := range []string{"", "garbage", signToken(t, uuid.New()) + "tampered"} {
		_, err := mgr.Open(context.Background(), credential, registry.ConnectMetadata{})
		req.ErrorIs(err, errs.ErrAuthentication)
	}

	req.Empty(hub.Online(), "a refused credential must never enter the registry")
}

func TestSessions_Open_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	mgr, _ := newSessionFixture(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &TokenClaims{
		UserID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	req.NoError(err)

	_, err = mgr.Open(context.Background(), signed, registry.ConnectMetadata{})
	req.ErrorIs(err, errs.ErrAuthentication)
}

func TestSessions_First_Open_Announces_Online(t *testing.T) {
	req := require.New(t)
	mgr, _ := newSessionFixture(t)

	// Given an established observer session
	observer := uuid.New()
	observerConn, err := mgr.Open(context.Background(), signToken(t, observer), registry.ConnectMetadata{})
	req.NoError(err)
	defer observerConn.Close()

	// When another user opens their first session
	userID := uuid.New()
	conn, err := mgr.Open(context.Background(), signToken(t, userID), registry.ConnectMetadata{})
	req.NoError(err)
	defer conn.Close()

	// Then the observer sees user:online
	ev := waitKind(t, observerConn, event.UserOnline)
	req.Equal(userID, ev.GetPayload().(*model.PresencePayload).UserID)

	// And a second device of the same user announces nothing
	second, err := mgr.Open(context.Background(), signToken(t, userID), registry.ConnectMetadata{})
	req.NoError(err)
	defer second.Close()
	reqNoKind(t, observerConn, event.UserOnline)
}

func TestSessions_Last_Close_Announces_Offline(t *testing.T) {
	req := require.New(t)
	mgr, hub := newSessionFixture(t)

	observer := uuid.New()
	observerConn, err := mgr.Open(context.Background(), signToken(t, observer), registry.ConnectMetadata{})
	req.NoError(err)
	defer observerConn.Close()

	userID := uuid.New()
	first, err := mgr.Open(context.Background(), signToken(t, userID), registry.ConnectMetadata{})
	req.NoError(err)
	second, err := mgr.Open(context.Background(), signToken(t, userID), registry.ConnectMetadata{})
	req.NoError(err)
	waitKind(t, observerConn, event.UserOnline)

	// Closing one of two devices: still online, no announcement
	mgr.Close(userID, first.GetID())
	req.True(hub.IsOnline(userID))
	reqNoKind(t, observerConn, event.UserOffline)

	// Closing the last device flips the user offline
	mgr.Close(userID, second.GetID())
	req.False(hub.IsOnline(userID))

	ev := waitKind(t, observerConn, event.UserOffline)
	req.Equal(userID, ev.GetPayload().(*model.PresencePayload).UserID)
}

func TestSessions_Join_And_Leave_Room(t *testing.T) {
	req := require.New(t)
	mgr, hub := newSessionFixture(t)
	userID := uuid.New()
	convID := uuid.New()

	conn, err := mgr.Open(context.Background(), signToken(t, userID), registry.ConnectMetadata{})
	req.NoError(err)
	defer conn.Close()

	mgr.Join(convID, conn)
	req.True(hub.UserInRoom(convID, userID))

	mgr.Leave(convID, conn.GetID())
	req.False(hub.UserInRoom(convID, userID))
}

func waitKind(t *testing.T, conn registry.Connector, kind event.Kind) event.Eventer {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-conn.Recv():
			if ev.GetKind() == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event within 1s", kind.WireName())
			return nil
		}
	}
}

func reqNoKind(t *testing.T, conn registry.Connector, kind event.Kind) {
	t.Helper()
	timeout := time.After(50 * time.Millisecond)
	for {
		select {
		case ev := <-conn.Recv():
			if ev.GetKind() == kind {
				t.Fatalf("unexpected %s event", kind.WireName())
			}
		case <-timeout:
			return
		}
	}
}
