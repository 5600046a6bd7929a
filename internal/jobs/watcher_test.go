package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []*domain.IngestJob
	err  error
}

func (q *recordingQueue) Create(_ context.Context, job *domain.IngestJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) documents() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = j.Document
	}
	return out
}

func markdownOnly(name string) bool {
	return strings.HasSuffix(name, ".md")
}

func TestWatcher_FlushDebounces(t *testing.T) {
	root := t.TempDir()
	queue := &recordingQueue{}
	notified := 0
	w := NewWatcher(storage.NewDirSource(root), markdownOnly, queue, func() { notified++ }, time.Second)

	start := time.Now()
	w.touch(filepath.Join(root, "b.md"), start)
	w.touch(filepath.Join(root, "a.md"), start)
	w.touch(filepath.Join(root, "a.md"), start.Add(500*time.Millisecond))

	assert.Equal(t, 0, w.flush(context.Background(), start.Add(900*time.Millisecond)))
	assert.Equal(t, 1, w.flush(context.Background(), start.Add(1100*time.Millisecond)))
	assert.Equal(t, []string{"b.md"}, queue.documents())

	assert.Equal(t, 1, w.flush(context.Background(), start.Add(2*time.Second)))
	assert.Equal(t, []string{"b.md", "a.md"}, queue.documents())
	assert.Equal(t, 2, notified)

	for _, job := range queue.jobs {
		assert.Equal(t, domain.IngestJobStatusPending, job.Status)
		assert.False(t, job.Rebuild)
		assert.NotEmpty(t, job.ID)
	}
}

func TestWatcher_IgnoresUnsupportedAndHidden(t *testing.T) {
	root := t.TempDir()
	queue := &recordingQueue{}
	w := NewWatcher(storage.NewDirSource(root), markdownOnly, queue, nil, time.Millisecond)

	now := time.Now()
	w.touch(filepath.Join(root, "photo.png"), now)
	w.touch(filepath.Join(root, ".draft.md"), now)
	w.touch(filepath.Join(root, ".git", "x.md"), now)
	w.touch(filepath.Join(filepath.Dir(root), "outside.md"), now)

	assert.Equal(t, 0, w.flush(context.Background(), now.Add(time.Second)))
	assert.Empty(t, queue.documents())
}

func TestWatcher_QueueErrorSkipsNotify(t *testing.T) {
	root := t.TempDir()
	queue := &recordingQueue{err: errors.New("database error")}
	notified := false
	w := NewWatcher(storage.NewDirSource(root), markdownOnly, queue, func() { notified = true }, time.Millisecond)

	now := time.Now()
	w.touch(filepath.Join(root, "a.md"), now)

	assert.Equal(t, 0, w.flush(context.Background(), now.Add(time.Second)))
	assert.False(t, notified)
}

func TestWatcher_Run_QueuesChangedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "guides"), 0o755))

	queue := &recordingQueue{}
	w := NewWatcher(storage.NewDirSource(root), markdownOnly, queue, nil, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register the tree
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "guides", "setup.md"), []byte("# Setup"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644))

	assert.Eventually(t, func() bool {
		docs := queue.documents()
		return len(docs) == 1 && docs[0] == "guides/setup.md"
	}, 3*time.Second, 25*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
