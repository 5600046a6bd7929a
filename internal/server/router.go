package server

import (
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	AskHandler      *handlers.AskHandler
	SessionHandler  *handlers.SessionHandler
	DocumentHandler *handlers.DocumentHandler
	IngestHandler   *handlers.IngestHandler
	HealthHandler   *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 << 20

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.TrackSession)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, domain.ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, domain.ErrCodeInvalidArgument, "method not allowed")
	})

	r.Get("/health", cfg.HealthHandler.Health)
	r.Post("/ask", cfg.AskHandler.Ask)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/history", cfg.SessionHandler.History)
		r.Delete("/", cfg.SessionHandler.Delete)
	})

	r.Get("/documents", cfg.DocumentHandler.List)

	r.Route("/ingest", func(r chi.Router) {
		r.Post("/", cfg.IngestHandler.Enqueue)
		r.Get("/{id}", cfg.IngestHandler.Get)
	})

	return r
}
