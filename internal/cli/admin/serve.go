package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/jobs"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/session"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/telemetry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docqa API server: load the index, ingest the document source and answer questions over HTTP",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides DOCQA_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-ingest", false, "Skip ingesting the document source on startup")
	cmd.Flags().Bool("watch", false, "Queue ingest jobs when files in the docs directory change")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		// Default to 10% sampling outside development
		sampleRate := 0.1
		if cfg.SentryEnvironment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	noIngest, _ := cmd.Flags().GetBool("no-ingest")
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		cfg.DocsWatch = true
	}

	rt, err := newRuntime(ctx, cfg, runtimeOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer rt.Close()

	querySvc, history, err := buildQueryService(rt)
	if err != nil {
		return err
	}

	jobRepo := rt.jobRepository()
	ingestWorker := jobs.NewWorker(jobs.NewIngestWorker(jobRepo, rt.ingester), cfg.IngestPollInterval)
	go ingestWorker.Start(ctx)
	log.Println("ingest worker started")

	if cfg.IngestOnStart && !noIngest {
		job := domain.NewIngestJob(uuid.NewString(), "", cfg.Rebuild(), time.Now().UTC())
		if err := jobRepo.Create(ctx, job); err != nil {
			return fmt.Errorf("failed to queue startup ingest: %w", err)
		}
		ingestWorker.Notify()
		log.Printf("startup ingest queued as job %s (rebuild=%t)", job.ID, job.Rebuild)
	}

	if cfg.DocsWatch {
		dir, ok := rt.source.(*storage.DirSource)
		if !ok {
			log.Printf("watch: ignored, %s is not a local directory", rt.source.Name())
		} else {
			watcher := jobs.NewWatcher(dir, rt.registry.Supports, jobRepo, ingestWorker.Notify, jobs.DefaultDebounce)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					log.Printf("watcher stopped: %v", err)
				}
			}()
		}
	}

	if cfg.SessionTTL > 0 {
		go sweepSessions(ctx, history, cfg.SessionTTL)
	}

	router := server.NewRouter(server.RouterConfig{
		AskHandler:      handlers.NewAskHandler(querySvc),
		SessionHandler:  handlers.NewSessionHandler(history),
		DocumentHandler: handlers.NewDocumentHandler(rt.index),
		IngestHandler:   handlers.NewIngestHandler(jobRepo, ingestWorker.Notify),
		HealthHandler:   handlers.NewHealthHandler(rt.index),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	ingestWorker.Stop()
	cancel()

	log.Println("server exited")
	return nil
}

func buildQueryService(rt *runtime) (*service.QueryService, *session.History, error) {
	retriever, err := service.NewRetriever(rt.index, rt.cfg.TopK)
	if err != nil {
		return nil, nil, err
	}

	generator := rt.generator()
	synthesizer := service.NewSynthesizer(generator, service.SynthesisOptions{HistoryTurns: rt.cfg.HistoryTurns})
	condenser := service.NewCondenser(generator, rt.cfg.HistoryTurns, rt.cfg.CondenseQuestions && rt.openai != nil)
	guard := service.NewGuard(rt.cfg.Markers())
	history := session.NewHistory()

	return service.NewQueryService(retriever, synthesizer, condenser, guard, history, rt.cfg.QueryTimeout), history, nil
}

func sweepSessions(ctx context.Context, history *session.History, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := history.Sweep(ttl); n > 0 {
				log.Printf("sessions: dropped %d idle sessions", n)
			}
		}
	}
}
