package handlers

import (
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/go-chi/chi/v5"
)

type SessionStore interface {
	Get(sessionID string) domain.ConversationHistory
	Exists(sessionID string) bool
	Delete(sessionID string) bool
}

type SessionHandler struct {
	sessions SessionStore
}

func NewSessionHandler(sessions SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type HistoryResponse struct {
	SessionID string                     `json:"sessionId"`
	Turns     domain.ConversationHistory `json:"turns"`
}

func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	middleware.SetSessionID(r.Context(), id)

	if !h.sessions.Exists(id) {
		api.HandleError(w, domain.ErrSessionNotFound)
		return
	}

	api.Success(w, http.StatusOK, HistoryResponse{
		SessionID: id,
		Turns:     h.sessions.Get(id),
	})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	middleware.SetSessionID(r.Context(), id)

	if !h.sessions.Delete(id) {
		api.HandleError(w, domain.ErrSessionNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
