package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// DocumentType is the declared type tag used to pick an extractor
type DocumentType string

const (
	DocumentTypeText       DocumentType = "text"
	DocumentTypeStructured DocumentType = "structured"
)

// IsValid reports whether t is a known document type
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeText, DocumentTypeStructured:
		return true
	}
	return false
}

// Document is one ingested source file. Immutable after creation.
type Document struct {
	ID       string
	Text     string
	Type     DocumentType
	Metadata map[string]string
}

// NewDocument creates a new Document instance
func NewDocument(id, text string, docType DocumentType, metadata map[string]string) *Document {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Document{
		ID:       id,
		Text:     text,
		Type:     docType,
		Metadata: metadata,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("document Type is invalid: %s", d.Type)
	}
	return nil
}

// Chunk is a bounded span of a document's text, the unit of retrieval.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Start      int // rune offset inside the document text
	Text       string
}

// ChunkID derives the stable identifier of a chunk.
func ChunkID(documentID string, ordinal int, text string) string {
	h := sha256.New()
	h.Write([]byte(documentID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(ordinal)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// NewChunk creates a chunk with its derived ID
func NewChunk(documentID string, ordinal, start int, text string) Chunk {
	return Chunk{
		ID:         ChunkID(documentID, ordinal, text),
		DocumentID: documentID,
		Ordinal:    ordinal,
		Start:      start,
		Text:       text,
	}
}

// EmbeddingVector is a fixed-dimension vector for one chunk
type EmbeddingVector []float32

// IndexEntry pairs a chunk with its embedding. Seq is the insertion order
// assigned by the store.
type IndexEntry struct {
	Chunk  Chunk
	Vector EmbeddingVector
	Seq    int64
}

// DocumentSummary describes one indexed document
type DocumentSummary struct {
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
}
