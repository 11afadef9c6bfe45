package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
	"github.com/pairly/messaging-service/internal/domain/registry"
	wsmarshaller "github.com/pairly/messaging-service/internal/handler/marshaller/ws"
	"github.com/pairly/messaging-service/internal/service"
)

const (
	writeWait     = 10 * time.Second
	sendTimeout   = 500 * time.Millisecond
	maxFrameBytes = 64 << 10
	handshakeWait = 10 * time.Second

	// flushLimit bounds how many queued events the pump drains on teardown.
	flushLimit = 32
)

type WSHandler struct {
	logger      *slog.Logger
	sessions    service.Sessions
	messenger   service.Messenger
	broadcaster service.Broadcaster
	guard       service.Guard
	upgrader    websocket.Upgrader
	validate    *validator.Validate
}

func NewWSHandler(
	logger *slog.Logger,
	sessions service.Sessions,
	messenger service.Messenger,
	broadcaster service.Broadcaster,
	guard service.Guard,
) *WSHandler {
	return &WSHandler{
		logger:      logger,
		sessions:    sessions,
		messenger:   messenger,
		broadcaster: broadcaster,
		guard:       guard,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeWait,
			CheckOrigin:      func(r *http.Request) bool { return true }, // Security: adjust for production
		},
		validate: validator.New(),
	}
}

// credential extracts the bearer token from the Authorization header or,
// for browser clients that cannot set headers on WebSocket dials, the
// "token" query parameter.
func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxFrameBytes)

	// Connecting -> Authenticated. Failure is terminal: the client gets
	// one scoped error frame and the socket closes without ever touching
	// the registry.
	conn, err := h.sessions.Open(r.Context(), credential(r), registry.ConnectMetadata{
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeEvent(ws, event.NewErrorEvent("authentication failed"))
		return
	}

	userID := conn.GetUserID()
	l := h.logger.With(
		slog.String("user_id", userID.String()),
		slog.String("conn_id", conn.GetID().String()),
	)

	// Teardown order matters: unregister first so no new events target the
	// mailbox, then close the connector, whose Done signal flushes and
	// stops the write pump.
	defer conn.Close()
	defer h.sessions.Close(userID, conn.GetID())

	// Authenticated -> Joined: handshake acknowledgement.
	if err := h.writeEvent(ws, event.NewSystemEvent(event.Connected, event.PriorityNormal, &model.ConnectedPayload{
		Ok:            true,
		ConnectionID:  conn.GetID().String(),
		ServerVersion: model.ServerVersion,
	})); err != nil {
		l.Error("handshake delivery failed", "error", err)
		return
	}

	l.Info("ws session established")

	// [WRITE_PUMP] Single writer goroutine: gorilla permits at most one
	// concurrent writer per socket. It exits when the connector signals
	// teardown via Done.
	go h.writePump(r.Context(), ws, conn, l)

	// [READ_LOOP] The connection's inbound events are processed here, in
	// order — this is the only sequential execution guarantee a client
	// gets.
	h.readLoop(r.Context(), ws, conn, l)
}

func (h *WSHandler) writePump(ctx context.Context, ws *websocket.Conn, conn registry.Connector, l *slog.Logger) {
	// Capture both channels once: teardown may recycle the connector into
	// its pool, so the pump never touches the object after Done fires.
	recv := conn.Recv()
	done := conn.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			// Flush what was queued before teardown, then say goodbye.
			h.flushPending(ws, recv, l)
			_ = h.writeRaw(ws, mustMarshal(event.NewSystemEvent(
				event.Disconnected, event.PriorityHigh,
				&model.DisconnectedPayload{Reason: "session_closed_by_server"},
			)))
			_ = ws.Close()
			return
		case ev := <-recv:
			data, err := wsmarshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				l.Error("failed to marshal ws event", "error", err)
				continue
			}
			if err := h.writeRaw(ws, data); err != nil {
				l.Warn("ws send failed", "error", err)
				_ = ws.Close()
				return
			}
		}
	}
}

// flushPending drains events buffered before teardown so a client does not
// lose the tail of a burst that raced its own disconnect.
func (h *WSHandler) flushPending(ws *websocket.Conn, recv <-chan event.Eventer, l *slog.Logger) {
	for i := 0; i < flushLimit; i++ {
		select {
		case ev := <-recv:
			data, err := wsmarshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				l.Error("failed to marshal ws event", "error", err)
				continue
			}
			if err := h.writeRaw(ws, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn registry.Connector, l *slog.Logger) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Warn("ws closed unexpectedly", "error", err)
			}
			return
		}

		// Mid-session errors are scoped to this connection; the session
		// itself stays up.
		if err := h.dispatch(ctx, conn, data); err != nil {
			l.Debug("client event rejected", "error", err)
			h.sendError(conn, err)
		}
	}
}

// dispatch routes one inbound frame. Payloads are validated against the
// schema of their event name before any state is touched.
func (h *WSHandler) dispatch(ctx context.Context, conn registry.Connector, data []byte) error {
	env := &ClientEvent{}
	if err := json.Unmarshal(data, env); err != nil {
		return fmt.Errorf("%w: malformed frame: %v", errs.ErrValidation, err)
	}
	if err := h.validate.Struct(env); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	userID := conn.GetUserID()

	switch env.Event {
	case evConversationJoin:
		p, err := decode[joinPayload](env.Payload, h.validate)
		if err != nil {
			return err
		}
		// Joining a room requires membership in the conversation; blocked
		// and unmatched pairs keep read access to history, so any known
		// status is acceptable here.
		if _, err := h.guard.Authorize(ctx, userID, p.ConversationID); err != nil {
			return err
		}
		h.sessions.Join(p.ConversationID, conn)
		return nil

	case evConversationLeave:
		p, err := decode[joinPayload](env.Payload, h.validate)
		if err != nil {
			return err
		}
		h.sessions.Leave(p.ConversationID, conn.GetID())
		return nil

	case evMessageSend:
		p, err := decode[sendPayload](env.Payload, h.validate)
		if err != nil {
			return err
		}
		_, err = h.messenger.Send(ctx, p.ConversationID, userID, p.Content, p.Media.toDomain())
		return err

	case evMessageTyping:
		p, err := decode[typingPayload](env.Payload, h.validate)
		if err != nil {
			return err
		}
		// Typing bypasses persistence entirely, but not authorization.
		if _, err := h.guard.Authorize(ctx, userID, p.ConversationID); err != nil {
			return err
		}
		h.broadcaster.Typing(p.ConversationID, userID, conn.GetID(), p.IsTyping)
		return nil

	case evMessageRead:
		p, err := decode[readPayload](env.Payload, h.validate)
		if err != nil {
			return err
		}
		_, err = h.messenger.MarkAllRead(ctx, p.ConversationID, userID)
		return err

	default:
		return fmt.Errorf("%w: unknown event %q", errs.ErrValidation, env.Event)
	}
}

func (h *WSHandler) sendError(conn registry.Connector, err error) {
	conn.Send(event.NewErrorEvent(clientMessage(err)), sendTimeout)
}

// clientMessage hides internals behind the taxonomy: transient store
// failures surface as a generic message, everything else as its sentinel
// text.
func clientMessage(err error) string {
	if kind := errs.Kind(err); kind != nil && !errors.Is(kind, errs.ErrUnavailable) {
		return err.Error()
	}
	return "temporary failure, please retry"
}

func (h *WSHandler) writeEvent(ws *websocket.Conn, ev event.Eventer) error {
	data, err := wsmarshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		return err
	}
	return h.writeRaw(ws, data)
}

func (h *WSHandler) writeRaw(ws *websocket.Conn, data []byte) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data)
}

func mustMarshal(ev event.Eventer) []byte {
	data, _ := wsmarshaller.MarshallDeliveryEvent(ev)
	return data
}
