package handlers

import (
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/index"
)

type IndexStats interface {
	Stats() index.Stats
}

type HealthHandler struct {
	index IndexStats
}

func NewHealthHandler(ix IndexStats) *HealthHandler {
	return &HealthHandler{index: ix}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Entries   int    `json:"entries"`
	Documents int    `json:"documents"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.index.Stats()
	api.Success(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Entries:   stats.Entries,
		Documents: stats.Documents,
	})
}
