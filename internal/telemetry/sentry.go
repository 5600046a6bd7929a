// Package telemetry wraps Sentry tracing for the query and ingest pipelines.
package telemetry

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	serverName   = "docqad"
	flushTimeout = 5 * time.Second
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init starts the Sentry client and returns a flush function for shutdown.
// An empty DSN, or a client that fails to start, yields a no-op.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		TracesSampler:    sampler(cfg.TracesSampleRate),
		Debug:            cfg.Debug,
		ServerName:       serverName,
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// probes and polling are never traced; children inherit the root decision
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span == nil {
			return rate
		}
		var root sentry.SpanID
		if ctx.Span.ParentSpanID != root {
			if ctx.Span.Sampled.Bool() {
				return 1.0
			}
			return 0.0
		}
		if untraced(ctx.Span.Name) {
			return 0.0
		}
		return rate
	}
}

func untraced(name string) bool {
	_, path, _ := strings.Cut(name, " ")
	return path == "/health" || strings.HasPrefix(path, "/ingest/")
}

// SpanAttributes tags a pipeline span. Empty fields are left off.
type SpanAttributes struct {
	SessionID  string
	DocumentID string
	JobID      string
	Operation  string
}

// Span is a nil-safe handle on a sentry span.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports err on the request hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
}

func (s *Span) SetData(key string, value interface{}) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// StartSpan opens a child of the span already in ctx (the HTTP transaction
// or a job), or a new transaction when there is none, as for the CLI ingest.
// The returned context derives from ctx, so deadlines set on ctx still apply.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if sentry.SpanFromContext(ctx) != nil {
		span = sentry.StartSpan(ctx, name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	tags := map[string]string{
		"session_id":  attrs.SessionID,
		"document_id": attrs.DocumentID,
		"job_id":      attrs.JobID,
	}
	for k, v := range tags {
		if v != "" {
			span.SetTag(k, v)
		}
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}

	return span.Context(), &Span{inner: span}
}

// AddBreadcrumb records one pipeline step on the request scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
		return
	}
	sentry.AddBreadcrumb(breadcrumb)
}
