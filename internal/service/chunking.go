package service

import (
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// ChunkConfig controls how documents are split. Sizes are in runes.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    800,
		Overlap: 50,
	}
}

// Validate rejects windows that cannot advance.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return domain.ErrInvalidChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return domain.ErrInvalidChunkOverlap
	}
	return nil
}

// Chunker splits document text into fixed-size overlapping windows.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker creates a Chunker, failing with a configuration error when the
// overlap is not strictly smaller than the size.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the chunker's settings
func (c *Chunker) Config() ChunkConfig {
	return c.cfg
}

// Split partitions the document text. Consecutive chunks share exactly
// Overlap runes and the last window ends at the end of the text.
func (c *Chunker) Split(doc *domain.Document) []domain.Chunk {
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.cfg.Size {
		return []domain.Chunk{domain.NewChunk(doc.ID, 0, 0, doc.Text)}
	}

	stride := c.cfg.Size - c.cfg.Overlap
	chunks := make([]domain.Chunk, 0, len(runes)/stride+1)
	for start := 0; ; start += stride {
		end := start + c.cfg.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.NewChunk(doc.ID, len(chunks), start, string(runes[start:end])))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Reconstruct joins chunks produced by Split back into the original text.
func Reconstruct(chunks []domain.Chunk, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch.Text)
			continue
		}
		r := []rune(ch.Text)
		if overlap < len(r) {
			b.WriteString(string(r[overlap:]))
		}
	}
	return b.String()
}
