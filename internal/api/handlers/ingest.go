package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type IngestJobStore interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
}

type IngestHandler struct {
	jobs   IngestJobStore
	notify func()
	newID  func() string
	now    func() time.Time
}

// NewIngestHandler creates the handler. notify is called after a job has
// been queued and may be nil.
func NewIngestHandler(jobs IngestJobStore, notify func()) *IngestHandler {
	if notify == nil {
		notify = func() {}
	}
	return &IngestHandler{
		jobs:   jobs,
		notify: notify,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

type IngestRequest struct {
	Rebuild  bool   `json:"rebuild"`
	Document string `json:"document"`
}

// Enqueue queues an ingest job and answers 202 with the pending job.
// An empty body ingests the whole source incrementally.
func (h *IngestHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, http.StatusBadRequest, domain.ErrCodeInvalidArgument, "invalid request body")
		return
	}

	job := domain.NewIngestJob(h.newID(), req.Document, req.Rebuild, h.now().UTC())
	if err := domain.ValidateIngestJob(job); err != nil {
		api.Error(w, http.StatusBadRequest, domain.ErrCodeInvalidArgument, err.Error())
		return
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		api.HandleError(w, err)
		return
	}
	h.notify()

	api.Success(w, http.StatusAccepted, job)
}

func (h *IngestHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, job)
}
