package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/registry"
)

// Sessions owns the lifecycle of real-time connections: authentication,
// registration in the presence registry, room membership, and teardown.
// Transport handlers (WebSocket, long-poll) never touch the hub directly.
type Sessions interface {
	// Open verifies the credential and registers a fresh connection.
	// Authentication failure is terminal for the connection: it never
	// enters the registry. Verification is bounded by handshakeTimeout so
	// a stalled handshake cannot park a goroutine forever.
	Open(ctx context.Context, credential string, meta registry.ConnectMetadata) (registry.Connector, error)
	// Close unregisters the connection; when it was the user's last one,
	// everyone else observes the user going offline.
	Close(userID, connID uuid.UUID)

	// Join/Leave manage conversation-room membership. No authorization
	// happens at join time — rooms are a delivery optimization and every
	// action inside them is authorized by its own pipeline.
	Join(convID uuid.UUID, conn registry.Connector)
	Leave(convID, connID uuid.UUID)
}

var _ Sessions = (*SessionManager)(nil)

type SessionManager struct {
	auther      Auther
	hub         registry.Hubber
	broadcaster Broadcaster
	logger      *slog.Logger

	connectionBuffer int
	handshakeTimeout time.Duration
}

func NewSessionManager(
	auther Auther,
	hub registry.Hubber,
	broadcaster Broadcaster,
	logger *slog.Logger,
	connectionBuffer int,
	handshakeTimeout time.Duration,
) *SessionManager {
	return &SessionManager{
		auther:           auther,
		hub:              hub,
		broadcaster:      broadcaster,
		logger:           logger,
		connectionBuffer: connectionBuffer,
		handshakeTimeout: handshakeTimeout,
	}
}

func (m *SessionManager) Open(ctx context.Context, credential string, meta registry.ConnectMetadata) (registry.Connector, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, m.handshakeTimeout)
	defer cancel()

	userID, err := m.auther.Verify(verifyCtx, credential)
	if err != nil {
		return nil, err
	}

	conn := registry.NewConnector(ctx, userID, meta, m.connectionBuffer)

	// Registration is a short atomic critical section; the verify call
	// above (the only suspension point) is already behind us.
	first := m.hub.Register(conn)

	m.logger.Info("session opened",
		"user_id", userID, "conn_id", conn.GetID(), "first", first)

	if first {
		// Everyone but the freshly opened session learns the user came up.
		m.broadcaster.PresenceChange(userID, true, conn.GetID())
	}
	return conn, nil
}

func (m *SessionManager) Close(userID, connID uuid.UUID) {
	last := m.hub.Unregister(userID, connID)

	m.logger.Info("session closed", "user_id", userID, "conn_id", connID, "last", last)

	if last {
		m.broadcaster.PresenceChange(userID, false, uuid.Nil)
	}
}

func (m *SessionManager) Join(convID uuid.UUID, conn registry.Connector) {
	m.hub.JoinRoom(convID, conn)
	m.logger.Debug("joined room", "conversation_id", convID, "conn_id", conn.GetID())
}

func (m *SessionManager) Leave(convID, connID uuid.UUID) {
	m.hub.LeaveRoom(convID, connID)
	m.logger.Debug("left room", "conversation_id", convID, "conn_id", connID)
}
