package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
)

type QueryService interface {
	Ask(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error)
}

type AskHandler struct {
	svc QueryService
}

func NewAskHandler(svc QueryService) *AskHandler {
	return &AskHandler{svc: svc}
}

type AskRequest struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question"`
}

// Ask answers one question. The response body is the answer itself, not a
// data envelope.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, domain.ErrCodeInvalidArgument, "invalid request body")
		return
	}
	middleware.SetSessionID(r.Context(), req.SessionID)

	result, err := h.svc.Ask(r.Context(), domain.QueryRequest{
		SessionID: req.SessionID,
		Question:  req.Question,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	middleware.SetSessionID(r.Context(), result.SessionID)
	if result.Sources == nil {
		result.Sources = []string{}
	}
	api.JSON(w, http.StatusOK, result)
}
