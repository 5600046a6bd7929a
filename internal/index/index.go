// Package index holds the embedding index: an in-memory snapshot of every
// IndexEntry backed by a durable Store.
package index

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/cloo-solutions/docqa/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Embedder is the external embedding capability
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists index entries across restarts. Insert, ReplaceDocument and
// ReplaceAll must be atomic: either every entry of the call is written or
// none is.
type Store interface {
	// LoadAll returns every entry ordered by Seq
	LoadAll(ctx context.Context) ([]domain.IndexEntry, error)
	// Insert writes new entries, assigns Seq and returns the entries actually
	// written. Entries whose chunk ID already exists are ignored.
	Insert(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error)
	// ReplaceDocument drops the document's entries and writes the new ones
	ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) ([]domain.IndexEntry, error)
	// ReplaceAll drops every entry and writes the new ones
	ReplaceAll(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error)
	Close() error
}

// Options tunes embedding batches and search fan out
type Options struct {
	// Dimensions fixes the vector size up front. Zero takes it from the
	// first vector seen.
	Dimensions int
	// BatchSize is the number of texts per embedding call
	BatchSize int
	// ParallelThreshold is the entry count from which scoring is split
	// across goroutines
	ParallelThreshold int
	// Workers bounds the scoring goroutines
	Workers int
}

// DefaultOptions returns the options used by the server
func DefaultOptions() Options {
	return Options{
		BatchSize:         64,
		ParallelThreshold: 4096,
		Workers:           4,
	}
}

type item struct {
	entry domain.IndexEntry
	norm  float64
}

// Index resolves nearest-neighbour queries over chunk embeddings.
type Index struct {
	store    Store
	embedder Embedder
	opts     Options

	// writeMu serializes writers so the known-id check and the store write
	// happen as one step
	writeMu sync.Mutex

	mu    sync.RWMutex
	items []item // ordered by Seq, never mutated in place
	ids   map[string]string
	dims  int
}

// AddResult reports what an Add call changed
type AddResult struct {
	Added   int
	Skipped int
}

// Stats describes the index contents
type Stats struct {
	Entries    int `json:"entries"`
	Documents  int `json:"documents"`
	Dimensions int `json:"dimensions"`
}

// New creates an empty index. Call Load to pick up persisted entries.
func New(store Store, embedder Embedder, opts Options) *Index {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = def.ParallelThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	return &Index{
		store:    store,
		embedder: embedder,
		opts:     opts,
		ids:      make(map[string]string),
		dims:     opts.Dimensions,
	}
}

// Load replaces the in-memory snapshot with the persisted entries.
func (ix *Index) Load(ctx context.Context) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	entries, err := ix.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load index entries: %w", err)
	}

	dims := ix.opts.Dimensions
	items := make([]item, 0, len(entries))
	ids := make(map[string]string, len(entries))
	for _, e := range entries {
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) != dims {
			return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration,
				"persisted index has mixed embedding dimensions",
				fmt.Errorf("chunk %s has %d dimensions, expected %d", e.Chunk.ID, len(e.Vector), dims))
		}
		items = append(items, item{entry: e, norm: norm(e.Vector)})
		ids[e.Chunk.ID] = e.Chunk.DocumentID
	}

	ix.mu.Lock()
	ix.items = items
	ix.ids = ids
	ix.dims = dims
	ix.mu.Unlock()

	log.Printf("Index loaded %d entries (%d dimensions)", len(items), dims)
	return nil
}

// Add embeds and stores chunks that are not indexed yet. The batch is
// all-or-nothing: an embedding failure leaves the store and the snapshot
// untouched.
func (ix *Index) Add(ctx context.Context, chunks []domain.Chunk) (AddResult, error) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	fresh := make([]domain.Chunk, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	ix.mu.RLock()
	for _, c := range chunks {
		if _, ok := ix.ids[c.ID]; ok {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		fresh = append(fresh, c)
	}
	ix.mu.RUnlock()

	result := AddResult{Skipped: len(chunks) - len(fresh)}
	if len(fresh) == 0 {
		return result, nil
	}

	entries, err := ix.embedChunks(ctx, fresh, ix.currentDims())
	if err != nil {
		return AddResult{}, err
	}

	written, err := ix.store.Insert(ctx, entries)
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to persist index entries: %w", err)
	}

	ix.publish("", written)
	result.Added = len(written)
	result.Skipped += len(entries) - len(written)
	return result, nil
}

// ReplaceDocument swaps a document's entries for new chunks in one batch.
func (ix *Index) ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk) (AddResult, error) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	entries, err := ix.embedChunks(ctx, chunks, ix.currentDims())
	if err != nil {
		return AddResult{}, err
	}

	written, err := ix.store.ReplaceDocument(ctx, documentID, entries)
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to replace document %s: %w", documentID, err)
	}

	ix.publish(documentID, written)
	return AddResult{Added: len(written)}, nil
}

// Rebuild replaces the whole index with chunks in one batch. Every chunk is
// embedded before the store is touched, so a failure keeps the previous
// entries both on disk and in the snapshot.
func (ix *Index) Rebuild(ctx context.Context, chunks []domain.Chunk) (AddResult, error) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	entries, err := ix.embedChunks(ctx, chunks, ix.opts.Dimensions)
	if err != nil {
		return AddResult{}, err
	}

	written, err := ix.store.ReplaceAll(ctx, entries)
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to rebuild index: %w", err)
	}

	items := make([]item, 0, len(written))
	ids := make(map[string]string, len(written))
	dims := ix.opts.Dimensions
	for _, e := range written {
		items = append(items, item{entry: e, norm: norm(e.Vector)})
		ids[e.Chunk.ID] = e.Chunk.DocumentID
		if dims == 0 {
			dims = len(e.Vector)
		}
	}

	ix.mu.Lock()
	ix.items = items
	ix.ids = ids
	ix.dims = dims
	ix.mu.Unlock()

	log.Printf("Index rebuilt with %d entries", len(items))
	return AddResult{Added: len(written), Skipped: len(chunks) - len(written)}, nil
}

// DocumentChunkIDs returns the chunk ids currently indexed for a document.
func (ix *Index) DocumentChunkIDs(documentID string) map[string]struct{} {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string]struct{})
	for id, doc := range ix.ids {
		if doc == documentID {
			out[id] = struct{}{}
		}
	}
	return out
}

// Search returns the k entries most similar to queryText, highest score
// first, ties broken by insertion order.
func (ix *Index) Search(ctx context.Context, queryText string, k int) (domain.RetrievalResult, error) {
	if k <= 0 {
		return domain.RetrievalResult{}, domain.ErrInvalidK
	}

	ix.mu.RLock()
	empty := len(ix.items) == 0
	ix.mu.RUnlock()
	if empty {
		return domain.RetrievalResult{}, nil
	}

	query, err := ix.embedder.Embed(ctx, queryText)
	if err != nil {
		return domain.RetrievalResult{}, domain.WrapCapabilityError(domain.ErrEmbeddingFailed, err)
	}

	ix.mu.RLock()
	items := ix.items
	dims := ix.dims
	ix.mu.RUnlock()

	if len(query) != dims {
		return domain.RetrievalResult{}, dimensionError(len(query), dims)
	}

	scores, err := ix.score(ctx, items, query)
	if err != nil {
		return domain.RetrievalResult{}, domain.WrapCapabilityError(domain.ErrEmbeddingFailed, err)
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	// items are in Seq order, so a stable sort keeps insertion order on ties
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if len(order) > k {
		order = order[:k]
	}

	result := domain.RetrievalResult{Chunks: make([]domain.ScoredChunk, len(order))}
	for i, idx := range order {
		result.Chunks[i] = domain.ScoredChunk{Chunk: items[idx].entry.Chunk, Score: scores[idx]}
	}
	return result, nil
}

// Stats returns entry, document and dimension counts.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docs := make(map[string]struct{})
	for _, doc := range ix.ids {
		docs[doc] = struct{}{}
	}
	return Stats{Entries: len(ix.items), Documents: len(docs), Dimensions: ix.dims}
}

// Documents lists indexed documents sorted by id.
func (ix *Index) Documents() []domain.DocumentSummary {
	ix.mu.RLock()
	counts := make(map[string]int)
	for _, doc := range ix.ids {
		counts[doc]++
	}
	ix.mu.RUnlock()

	out := make([]domain.DocumentSummary, 0, len(counts))
	for id, n := range counts {
		out = append(out, domain.DocumentSummary{ID: id, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (ix *Index) currentDims() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dims
}

// embedChunks embeds chunks in batches; dims of zero takes the size of the
// first vector.
func (ix *Index) embedChunks(ctx context.Context, chunks []domain.Chunk, dims int) ([]domain.IndexEntry, error) {
	entries := make([]domain.IndexEntry, 0, len(chunks))
	for start := 0; start < len(chunks); start += ix.opts.BatchSize {
		end := start + ix.opts.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Text
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, domain.WrapCapabilityError(domain.ErrEmbeddingFailed, err)
		}
		if len(vectors) != len(texts) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, domain.ErrEmbeddingFailed.Message,
				fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(texts)))
		}

		for i, v := range vectors {
			if dims == 0 {
				dims = len(v)
			}
			if len(v) != dims {
				return nil, dimensionError(len(v), dims)
			}
			entries = append(entries, domain.IndexEntry{Chunk: chunks[start+i], Vector: v})
		}
	}
	return entries, nil
}

// publish swaps in a new snapshot. When documentID is set its old entries
// are dropped first.
func (ix *Index) publish(documentID string, written []domain.IndexEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var items []item
	if documentID == "" {
		items = make([]item, len(ix.items), len(ix.items)+len(written))
		copy(items, ix.items)
	} else {
		items = make([]item, 0, len(ix.items)+len(written))
		for _, it := range ix.items {
			if it.entry.Chunk.DocumentID == documentID {
				delete(ix.ids, it.entry.Chunk.ID)
				continue
			}
			items = append(items, it)
		}
	}

	for _, e := range written {
		items = append(items, item{entry: e, norm: norm(e.Vector)})
		ix.ids[e.Chunk.ID] = e.Chunk.DocumentID
		if ix.dims == 0 {
			ix.dims = len(e.Vector)
		}
	}
	ix.items = items
}

func (ix *Index) score(ctx context.Context, items []item, query []float32) ([]float64, error) {
	scores := make([]float64, len(items))
	qnorm := norm(query)

	if len(items) < ix.opts.ParallelThreshold || ix.opts.Workers == 1 {
		for i := range items {
			scores[i] = cosine(query, qnorm, items[i])
		}
		return scores, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	block := (len(items) + ix.opts.Workers - 1) / ix.opts.Workers
	for start := 0; start < len(items); start += block {
		start, end := start, start+block
		if end > len(items) {
			end = len(items)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				scores[i] = cosine(query, qnorm, items[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func cosine(query []float32, qnorm float64, it item) float64 {
	if qnorm == 0 || it.norm == 0 {
		return 0
	}
	var dot float64
	for i, v := range it.entry.Vector {
		dot += float64(v) * float64(query[i])
	}
	return dot / (qnorm * it.norm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dimensionError(got, want int) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, domain.ErrDimensionMismatch.Message,
		fmt.Errorf("got %d dimensions, index has %d", got, want))
}
