package jobs

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// DefaultDebounce is how long a file must be quiet before it is queued
const DefaultDebounce = 500 * time.Millisecond

// JobQueue accepts new ingest jobs
type JobQueue interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// DocumentNamer maps a file path to a document name of the watched source
type DocumentNamer interface {
	Root() string
	Rel(path string) (string, bool)
}

// Watcher queues a single-document ingest job whenever a supported file
// below the docs directory is created, written, renamed or removed.
type Watcher struct {
	namer    DocumentNamer
	supports func(name string) bool
	queue    JobQueue
	notify   func()
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a watcher. notify, when set, is called after jobs were
// queued so the worker can pick them up immediately.
func NewWatcher(namer DocumentNamer, supports func(string) bool, queue JobQueue, notify func(), debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if notify == nil {
		notify = func() {}
	}
	return &Watcher{
		namer:    namer,
		supports: supports,
		queue:    queue,
		notify:   notify,
		debounce: debounce,
		pending:  make(map[string]time.Time),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.namer.Root()); err != nil {
		return err
	}
	log.Printf("Watching %s for document changes", w.namer.Root())

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, event.Name); err != nil {
				log.Printf("watcher: %v", err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.touch(event.Name, time.Now())
}

// touch records a change; flush queues it once it has been quiet long enough
func (w *Watcher) touch(path string, at time.Time) {
	name, ok := w.namer.Rel(path)
	if !ok || hidden(name) || !w.supports(name) {
		return
	}
	w.mu.Lock()
	w.pending[name] = at
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context, now time.Time) int {
	w.mu.Lock()
	var ready []string
	for name, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, name)
			delete(w.pending, name)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return 0
	}
	sort.Strings(ready)

	queued := 0
	for _, name := range ready {
		job := domain.NewIngestJob(uuid.NewString(), name, false, now.UTC())
		if err := w.queue.Create(ctx, job); err != nil {
			log.Printf("watcher: failed to queue %s: %v", name, err)
			continue
		}
		log.Printf("watcher: queued job %s for %s", job.ID, name)
		queued++
	}
	if queued > 0 {
		w.notify()
	}
	return queued
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
