package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/embedding"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/index"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingEmbedder fails every batch containing marker
type failingEmbedder struct {
	*embedding.HashingEmbedder
	marker string
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if strings.Contains(t, e.marker) {
			return nil, errors.New("embedding provider unavailable")
		}
	}
	return e.HashingEmbedder.EmbedBatch(ctx, texts)
}

type ingestFixture struct {
	dir      string
	store    *repository.MemoryChunkStore
	index    *index.Index
	ingester *Ingester
}

func newIngestFixture(t *testing.T, emb index.Embedder) *ingestFixture {
	t.Helper()
	dir := t.TempDir()
	store := repository.NewMemoryChunkStore()
	ix := index.New(store, emb, index.DefaultOptions())
	chunker, err := NewChunker(ChunkConfig{Size: 40, Overlap: 5})
	require.NoError(t, err)

	return &ingestFixture{
		dir:      dir,
		store:    store,
		index:    ix,
		ingester: NewIngester(storage.NewDirSource(dir), extract.NewRegistry(), chunker, ix),
	}
}

func (f *ingestFixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

func TestIngestAll_ReportsAndIndexes(t *testing.T) {
	f := newIngestFixture(t, embedding.NewHashingEmbedder(64))
	f.write(t, "geo.txt", "The capital of France is Paris. The capital of Italy is Rome.")
	f.write(t, "notes.md", "Short note.")
	f.write(t, "photo.png", "binary")
	f.write(t, "empty.txt", "")
	f.write(t, "broken.docx", "not a zip archive")

	report, err := f.ingester.IngestAll(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Documents)
	assert.Equal(t, []string{"photo.png"}, report.Unsupported)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "broken.docx", report.Skipped[0].Name)
	assert.Equal(t, report.Chunks, report.Added)
	assert.Equal(t, report.Added, f.store.Len())

	stats := f.index.Stats()
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, report.Added, stats.Entries)
}

func TestIngestAll_IncrementalIsIdempotent(t *testing.T) {
	f := newIngestFixture(t, embedding.NewHashingEmbedder(64))
	f.write(t, "geo.txt", "The capital of France is Paris. The capital of Italy is Rome.")
	f.write(t, "notes.md", "Short note.")

	first, err := f.ingester.IngestAll(context.Background(), false)
	require.NoError(t, err)
	entries := f.index.Stats().Entries

	second, err := f.ingester.IngestAll(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, entries, f.index.Stats().Entries)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, first.Documents, second.Unchanged)
}

func TestIngestAll_RebuildMatchesFreshIngest(t *testing.T) {
	f := newIngestFixture(t, embedding.NewHashingEmbedder(64))
	f.write(t, "geo.txt", "The capital of France is Paris. The capital of Italy is Rome.")

	fresh, err := f.ingester.IngestAll(context.Background(), false)
	require.NoError(t, err)

	rebuilt, err := f.ingester.IngestAll(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, fresh.Added, rebuilt.Added)
	assert.Equal(t, fresh.Chunks, f.index.Stats().Entries)
}

func TestIngestDocument_ChangedDocumentIsReplaced(t *testing.T) {
	f := newIngestFixture(t, embedding.NewHashingEmbedder(64))
	f.write(t, "geo.txt", "The capital of France is Paris. The capital of Italy is Rome.")
	_, err := f.ingester.IngestAll(context.Background(), false)
	require.NoError(t, err)
	before := f.index.DocumentChunkIDs("geo.txt")

	f.write(t, "geo.txt", "The capital of Spain is Madrid.")
	report, err := f.ingester.IngestDocument(context.Background(), "geo.txt")
	require.NoError(t, err)

	after := f.index.DocumentChunkIDs("geo.txt")
	assert.Equal(t, 1, report.Added)
	assert.Len(t, after, 1)
	for id := range after {
		assert.NotContains(t, before, id)
	}
	assert.Equal(t, 1, f.index.Stats().Entries)
}

func TestIngestDocument_EmptiedDocumentIsRemoved(t *testing.T) {
	f := newIngestFixture(t, embedding.NewHashingEmbedder(64))
	f.write(t, "geo.txt", "The capital of France is Paris.")
	_, err := f.ingester.IngestAll(context.Background(), false)
	require.NoError(t, err)

	f.write(t, "geo.txt", "")
	_, err = f.ingester.IngestDocument(context.Background(), "geo.txt")
	require.NoError(t, err)

	assert.Empty(t, f.index.DocumentChunkIDs("geo.txt"))
}

func TestIngestAll_EmbeddingFailureStopsRun(t *testing.T) {
	emb := &failingEmbedder{HashingEmbedder: embedding.NewHashingEmbedder(64), marker: "poison"}
	f := newIngestFixture(t, emb)
	f.write(t, "a.txt", "The capital of France is Paris.")
	f.write(t, "b.txt", "This one is poison for the embedder.")

	report, err := f.ingester.IngestAll(context.Background(), false)

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeEmbedding))
	assert.Equal(t, 1, report.Documents, "documents before the failure stay indexed")
	assert.Empty(t, f.index.DocumentChunkIDs("b.txt"))
}

func TestIngestDocument_MissingFileIsSkipped(t *testing.T) {
	f := newIngestFixture(t, embedding.NewHashingEmbedder(64))

	report, err := f.ingester.IngestDocument(context.Background(), "gone.txt")

	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "gone.txt", report.Skipped[0].Name)
	assert.Equal(t, "document not found", report.Skipped[0].Reason)
}

func TestIngestDocument_DeletedDocumentIsRemoved(t *testing.T) {
	f := newIngestFixture(t, embedding.NewHashingEmbedder(64))
	f.write(t, "geo.txt", "The capital of France is Paris.")
	f.write(t, "other.txt", "Unrelated.")
	_, err := f.ingester.IngestAll(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.dir, "geo.txt")))
	report, err := f.ingester.IngestDocument(context.Background(), "geo.txt")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.Empty(t, f.index.DocumentChunkIDs("geo.txt"))
	assert.Equal(t, 1, f.index.Stats().Documents)
}

func TestIngestAll_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	emb := &failingEmbedder{HashingEmbedder: embedding.NewHashingEmbedder(64), marker: "poison"}
	f := newIngestFixture(t, emb)
	f.write(t, "a.txt", "The capital of France is Paris.")
	f.write(t, "b.txt", "The capital of Italy is Rome.")
	_, err := f.ingester.IngestAll(context.Background(), false)
	require.NoError(t, err)
	before := f.index.Stats()

	f.write(t, "b.txt", "This one is poison for the embedder.")
	_, err = f.ingester.IngestAll(context.Background(), true)

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeEmbedding))
	assert.Equal(t, before, f.index.Stats())
	assert.Equal(t, before.Entries, f.store.Len())
	assert.NotEmpty(t, f.index.DocumentChunkIDs("a.txt"))
	assert.NotEmpty(t, f.index.DocumentChunkIDs("b.txt"))
}

func TestIngestAll_RebuildDropsDeletedDocuments(t *testing.T) {
	f := newIngestFixture(t, embedding.NewHashingEmbedder(64))
	f.write(t, "a.txt", "The capital of France is Paris.")
	f.write(t, "b.txt", "The capital of Italy is Rome.")
	_, err := f.ingester.IngestAll(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.dir, "b.txt")))
	report, err := f.ingester.IngestAll(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, f.index.Stats().Documents)
	assert.Empty(t, f.index.DocumentChunkIDs("b.txt"))
}
