// Package jobs runs ingestion in the background: a polling worker drains
// queued ingest jobs and a watcher queues jobs when source files change.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobProcessor drains whatever jobs are queued when it is called.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls its processor once at start, on every tick and whenever
// Notify is called. Passes never overlap, so ingestion writes to the index
// one job at a time.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWorker creates a Worker
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called. Jobs queued before
// a restart are picked up by the first pass.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	log.Printf("ingest worker: polling every %v", w.pollInterval)
	for {
		w.pass(ctx)

		select {
		case <-ctx.Done():
			log.Printf("ingest worker: stopped (%v)", context.Cause(ctx))
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

func (w *Worker) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("ingest worker: %v", err)
	}
}

// Notify asks for a pass now instead of at the next tick. It never blocks;
// several calls before the pass collapse into one.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop cancels the running pass and waits for Start to return. Safe to call
// more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
