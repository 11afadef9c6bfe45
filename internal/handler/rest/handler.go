package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pairly/messaging-service/internal/domain/errs"
	"github.com/pairly/messaging-service/internal/domain/model"
	"github.com/pairly/messaging-service/internal/domain/registry"
	"github.com/pairly/messaging-service/internal/service"
)

// RESTHandler is the request/response twin of the real-time surface. It
// delegates every mutating call to the same pipeline the WebSocket handler
// uses, so a REST send and a socket send are indistinguishable downstream.
type RESTHandler struct {
	messenger service.Messenger
	hub       registry.Hubber
	auther    service.Auther
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewRESTHandler(messenger service.Messenger, hub registry.Hubber, auther service.Auther, logger *slog.Logger) *RESTHandler {
	return &RESTHandler{
		messenger: messenger,
		hub:       hub,
		auther:    auther,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Routes mounts the authenticated API surface.
func (h *RESTHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(Authenticate(h.auther))

	r.Route("/conversations/{conversationID}", func(r chi.Router) {
		r.Post("/messages", h.sendMessage)
		r.Get("/messages", h.getHistory)
		r.Post("/read", h.markAllRead)
	})
	r.Post("/messages/{messageID}/read", h.markRead)
	r.Get("/messages/unread-count", h.unreadCount)
	r.Get("/presence/online", h.onlineUsers)

	return r
}

type sendMessageRequest struct {
	Content string        `json:"content" validate:"required,max=4000"`
	Media   *mediaRequest `json:"media,omitempty"`
}

type mediaRequest struct {
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type" validate:"omitempty,oneof=image video audio"`
}

func (m *mediaRequest) toDomain() *model.Media {
	if m == nil {
		return nil
	}
	mediaType := model.MediaType(m.Type)
	if mediaType == "" {
		mediaType = model.MediaImage
	}
	return &model.Media{URL: m.URL, Type: mediaType}
}

func (h *RESTHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	convID, err := pathUUID(r, "conversationID")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	req := &sendMessageRequest{}
	if err := h.decodeBody(r, req); err != nil {
		h.respondErr(w, err)
		return
	}

	msg, err := h.messenger.Send(r.Context(), convID, callerID(r), req.Content, req.Media.toDomain())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respond(w, http.StatusCreated, msg)
}

func (h *RESTHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	convID, err := pathUUID(r, "conversationID")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	q := service.HistoryQuery{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.respondErr(w, fmt.Errorf("%w: limit must be a positive integer", errs.ErrValidation))
			return
		}
		q.Limit = limit
	}
	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.respondErr(w, fmt.Errorf("%w: before must be RFC 3339", errs.ErrValidation))
			return
		}
		q.Before = before
	}

	msgs, err := h.messenger.History(r.Context(), convID, callerID(r), q)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *RESTHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	convID, err := pathUUID(r, "conversationID")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	count, err := h.messenger.MarkAllRead(r.Context(), convID, callerID(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]int{"count": count})
}

func (h *RESTHandler) markRead(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathUUID(r, "messageID")
	if err != nil {
		h.respondErr(w, err)
		return
	}

	msg, err := h.messenger.MarkRead(r.Context(), messageID, callerID(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respond(w, http.StatusOK, msg)
}

func (h *RESTHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.messenger.UnreadCount(r.Context(), callerID(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]int{"count": count})
}

func (h *RESTHandler) onlineUsers(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]any{"users": h.hub.Online()})
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errs.ErrValidation, param)
	}
	return id, nil
}

func (h *RESTHandler) decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", errs.ErrValidation, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return nil
}

func (h *RESTHandler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encoding failed", "err", err)
	}
}

// respondErr maps the error taxonomy onto HTTP statuses. Unclassified
// errors surface as 500 without leaking internals.
func (h *RESTHandler) respondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch kind := errs.Kind(err); {
	case errors.Is(kind, errs.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(kind, errs.ErrAuthentication):
		status, msg = http.StatusUnauthorized, "authentication failed"
	case errors.Is(kind, errs.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(kind, errs.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(kind, errs.ErrBadState):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(kind, errs.ErrUnavailable):
		status, msg = http.StatusServiceUnavailable, "temporarily unavailable"
	default:
		h.logger.Error("unclassified error", "err", err)
	}

	h.respond(w, status, map[string]string{"error": msg})
}
