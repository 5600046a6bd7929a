package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/index"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// IndexWriter is the write side of the embedding index
type IndexWriter interface {
	Add(ctx context.Context, chunks []domain.Chunk) (index.AddResult, error)
	ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk) (index.AddResult, error)
	Rebuild(ctx context.Context, chunks []domain.Chunk) (index.AddResult, error)
	DocumentChunkIDs(documentID string) map[string]struct{}
}

// Ingester reads documents from a source, extracts their text and indexes
// the chunks.
type Ingester struct {
	source   storage.Source
	registry *extract.Registry
	chunker  *Chunker
	index    IndexWriter
}

// NewIngester creates an ingester
func NewIngester(source storage.Source, registry *extract.Registry, chunker *Chunker, index IndexWriter) *Ingester {
	return &Ingester{source: source, registry: registry, chunker: chunker, index: index}
}

// Source returns the document source being ingested
func (i *Ingester) Source() storage.Source {
	return i.source
}

// IngestAll ingests every document of the source. With rebuild the whole
// source is chunked and embedded first and then replaces the index in one
// batch, so a failure leaves the previous index in place. Otherwise already
// indexed chunks are kept and changed documents are replaced one by one.
// Unsupported or unreadable documents are reported, not fatal. An index
// failure stops the run.
func (i *Ingester) IngestAll(ctx context.Context, rebuild bool) (*domain.IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "Ingester.IngestAll", telemetry.SpanAttributes{Operation: "ingest"})
	defer span.End()
	span.SetData("rebuild", rebuild)

	names, err := i.source.List(ctx)
	if err != nil {
		return nil, err
	}

	var report *domain.IngestReport
	if rebuild {
		report, err = i.rebuild(ctx, names)
	} else {
		report, err = i.incremental(ctx, names)
	}
	if err != nil {
		span.SetError(err)
		return report, err
	}

	log.Printf("ingest %s: %d documents, %d chunks (%d added, %d unchanged documents), %d skipped, %d unsupported",
		i.source.Name(), report.Documents, report.Chunks, report.Added, report.Unchanged,
		len(report.Skipped), len(report.Unsupported))
	return report, nil
}

func (i *Ingester) incremental(ctx context.Context, names []string) (*domain.IngestReport, error) {
	report := &domain.IngestReport{}
	for _, name := range names {
		one, err := i.ingest(ctx, name)
		if err != nil {
			return report, err
		}
		report.Merge(*one)
	}
	return report, nil
}

func (i *Ingester) rebuild(ctx context.Context, names []string) (*domain.IngestReport, error) {
	report := &domain.IngestReport{}
	var chunks []domain.Chunk
	for _, name := range names {
		doc, err := i.load(ctx, name, report)
		if errors.Is(err, fs.ErrNotExist) {
			report.Skipped = append(report.Skipped, domain.SkippedDocument{Name: name, Reason: "document not found"})
			continue
		}
		if err != nil {
			return report, err
		}
		if doc == nil {
			continue
		}
		docChunks := i.chunker.Split(doc)
		report.Documents++
		report.Chunks += len(docChunks)
		chunks = append(chunks, docChunks...)
	}

	res, err := i.index.Rebuild(ctx, chunks)
	if err != nil {
		return report, fmt.Errorf("failed to rebuild from %s: %w", i.source.Name(), err)
	}
	report.Added = res.Added
	return report, nil
}

// IngestDocument ingests one named document incrementally.
func (i *Ingester) IngestDocument(ctx context.Context, name string) (*domain.IngestReport, error) {
	return i.ingest(ctx, name)
}

// load reads and extracts one document. A nil document means it was
// recorded in report as unsupported or skipped.
func (i *Ingester) load(ctx context.Context, name string, report *domain.IngestReport) (*domain.Document, error) {
	docType, err := i.registry.TypeFor(name)
	if err != nil {
		report.Unsupported = append(report.Unsupported, name)
		return nil, nil
	}

	raw, err := storage.ReadAll(ctx, i.source, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapCapabilityError(domain.ErrTimeout, ctx.Err())
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		report.Skipped = append(report.Skipped, domain.SkippedDocument{Name: name, Reason: err.Error()})
		return nil, nil
	}

	text, err := i.registry.Extract(name, raw, docType)
	if err != nil {
		reason := err.Error()
		var de *domain.DomainError
		if errors.As(err, &de) {
			reason = de.Message
		}
		report.Skipped = append(report.Skipped, domain.SkippedDocument{Name: name, Reason: reason})
		return nil, nil
	}

	return domain.NewDocument(name, text, docType, map[string]string{"source": i.source.Name()}), nil
}

func (i *Ingester) ingest(ctx context.Context, name string) (*domain.IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.document", telemetry.SpanAttributes{DocumentID: name})
	defer span.End()

	report := &domain.IngestReport{}

	doc, err := i.load(ctx, name, report)
	if errors.Is(err, fs.ErrNotExist) {
		return i.remove(ctx, name, report)
	}
	if err != nil || doc == nil {
		return report, err
	}

	chunks := i.chunker.Split(doc)
	report.Documents = 1
	report.Chunks = len(chunks)

	existing := i.index.DocumentChunkIDs(name)
	switch {
	case len(existing) == 0:
		if len(chunks) == 0 {
			return report, nil
		}
		res, err := i.index.Add(ctx, chunks)
		if err != nil {
			return report, fmt.Errorf("failed to index %s: %w", name, err)
		}
		report.Added = res.Added
	case sameChunks(existing, chunks):
		report.Unchanged = 1
	default:
		res, err := i.index.ReplaceDocument(ctx, name, chunks)
		if err != nil {
			return report, fmt.Errorf("failed to reindex %s: %w", name, err)
		}
		report.Added = res.Added
		log.Printf("ingest: replaced %d stale chunks of %s", len(existing), name)
	}
	return report, nil
}

// remove drops the chunks of a document that no longer exists
func (i *Ingester) remove(ctx context.Context, name string, report *domain.IngestReport) (*domain.IngestReport, error) {
	existing := i.index.DocumentChunkIDs(name)
	if len(existing) == 0 {
		report.Skipped = append(report.Skipped, domain.SkippedDocument{Name: name, Reason: "document not found"})
		return report, nil
	}
	if _, err := i.index.ReplaceDocument(ctx, name, nil); err != nil {
		return report, fmt.Errorf("failed to remove %s: %w", name, err)
	}
	report.Removed = len(existing)
	log.Printf("ingest: removed %d chunks of deleted document %s", len(existing), name)
	return report, nil
}

func sameChunks(existing map[string]struct{}, chunks []domain.Chunk) bool {
	if len(existing) != len(chunks) {
		return false
	}
	for _, c := range chunks {
		if _, ok := existing[c.ID]; !ok {
			return false
		}
	}
	return true
}
