package lp

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/registry"
	wsmarshaller "github.com/pairly/messaging-service/internal/handler/marshaller/ws"
	"github.com/pairly/messaging-service/internal/service"
)

const (
	pollTimeout = 30 * time.Second
	drainLimit  = 15
)

// LPHandler is the long-poll fallback for clients that cannot hold a
// WebSocket (restrictive proxies, some mobile webviews). Each request is
// a short-lived session: it authenticates, registers, waits for events,
// and tears down — so presence transitions flicker by design on this
// transport and clients are expected to poll in a tight loop.
type LPHandler struct {
	sessions service.Sessions
	guard    service.Guard
}

func NewLPHandler(sessions service.Sessions, guard service.Guard) *LPHandler {
	return &LPHandler{sessions: sessions, guard: guard}
}

// Poll holds the request open until an event arrives or the timeout hits.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	conn, err := h.sessions.Open(r.Context(), credential(r), registry.ConnectMetadata{
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	// Unregister before recycling the connector, same order as the
	// WebSocket teardown.
	defer conn.Close()
	defer h.sessions.Close(conn.GetUserID(), conn.GetID())

	// Re-join the conversation room for the lifetime of this request so
	// room-scoped signals (typing, receipts) reach polling clients too.
	if raw := r.URL.Query().Get("conversation_id"); raw != "" {
		convID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid conversation id", http.StatusBadRequest)
			return
		}
		if _, err := h.guard.Authorize(r.Context(), conn.GetUserID(), convID); err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.sessions.Join(convID, conn)
	}

	var events []event.Eventer

	select {
	case <-r.Context().Done():
		return

	case <-time.After(pollTimeout):
		w.WriteHeader(http.StatusNoContent)
		return

	// The registry tore the session down underneath us (shutdown).
	case <-conn.Done():
		return

	case ev, ok := <-conn.Recv():
		if !ok {
			return
		}
		events = append(events, ev)

		// Drain whatever queued up behind the first event so the client
		// pays one HTTP round-trip per burst, not per event.
	drainLoop:
		for i := 0; i < drainLimit; i++ {
			select {
			case nextEv, ok := <-conn.Recv():
				if !ok {
					break drainLoop
				}
				events = append(events, nextEv)
			default:
				break drainLoop
			}
		}
	}

	data, err := wsmarshaller.MarshallEvents(events)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
