package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/api"
	"github.com/futureecho/futureecho/internal/auth"
)

type Handler struct {
	orchestrator *Orchestrator
	repo         Repository
	history      History
	validate     *validator.Validate
}

func NewHandler(orchestrator *Orchestrator, repo Repository, history History) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		repo:         repo,
		history:      history,
		validate:     validator.New(),
	}
}

type chunkPayload struct {
	Text      string    `json:"text"`
	SessionID uuid.UUID `json:"session_id"`
}

type donePayload struct {
	Done      bool      `json:"done"`
	SessionID uuid.UUID `json:"session_id"`
	MessageID uuid.UUID `json:"message_id"`
}

type errorPayload struct {
	Error     string    `json:"error"`
	SessionID uuid.UUID `json:"session_id"`
}

// Chat runs a turn and streams it as server-sent events.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChatRequest
	if err := api.DecodeAndValidate(r, h.validate, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	events, err := h.orchestrator.RunTurn(r.Context(), TurnRequest{
		OwnerID:   ownerID,
		Message:   req.Message,
		SessionID: req.SessionID,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidMessage) {
			api.HandleError(w, api.NewValidationError("message must be 1-5000 characters"))
			return
		}
		slog.Error("starting chat turn", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	for ev := range events {
		var payload any
		switch ev.Type {
		case EventChunk:
			payload = chunkPayload{Text: ev.Text, SessionID: ev.SessionID}
		case EventDone:
			payload = donePayload{Done: true, SessionID: ev.SessionID, MessageID: ev.MessageID}
		case EventError:
			payload = errorPayload{Error: "Failed to generate a reply. Please try again.", SessionID: ev.SessionID}
		}

		if err := writeEvent(w, payload); err != nil {
			// The request context is cancelled once we return, which stops forwarding.
			slog.Debug("chat: client write failed", "error", err)
			return
		}
		if err := rc.Flush(); err != nil {
			slog.Debug("chat: flush failed", "error", err)
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	sessions, err := h.repo.ListSessions(r.Context(), ownerID)
	if err != nil {
		slog.Error("listing chat sessions", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, sessions)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ownerID, sessionID, ok := target(w, r)
	if !ok {
		return
	}

	session, err := h.repo.GetSession(r.Context(), ownerID, sessionID)
	if err != nil {
		slog.Error("fetching chat session", "error", err, "session_id", sessionID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if session == nil {
		api.HandleError(w, api.NewNotFoundError(ErrSessionNotFound.Error()))
		return
	}

	msgs, err := h.repo.ListMessages(r.Context(), sessionID)
	if err != nil {
		slog.Error("listing chat messages", "error", err, "session_id", sessionID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, SessionWithMessages{Session: *session, Messages: msgs})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ownerID, sessionID, ok := target(w, r)
	if !ok {
		return
	}

	deleted, err := h.repo.DeleteSession(r.Context(), ownerID, sessionID)
	if err != nil {
		slog.Error("deleting chat session", "error", err, "session_id", sessionID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if !deleted {
		api.HandleError(w, api.NewNotFoundError(ErrSessionNotFound.Error()))
		return
	}

	h.history.Invalidate(r.Context(), sessionID)
	api.JSONMessage(w, http.StatusOK, "session deleted successfully")
}

func target(w http.ResponseWriter, r *http.Request) (ownerID, sessionID uuid.UUID, ok bool) {
	ownerID, ok = auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid session ID"))
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, sessionID, true
}
