// Package extract turns raw document bytes into plain text, dispatching on
// the declared document type and the file extension.
package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Func extracts text from raw bytes
type Func func(raw []byte) (string, error)

type format struct {
	docType domain.DocumentType
	extract Func
}

// Registry maps file extensions to extractors.
type Registry struct {
	formats map[string]format
}

// NewRegistry returns a registry with the built-in text and structured formats.
func NewRegistry() *Registry {
	r := &Registry{formats: make(map[string]format)}
	for _, ext := range []string{".txt", ".md", ".markdown", ".csv", ".log"} {
		r.Register(ext, domain.DocumentTypeText, Text)
	}
	r.Register(".docx", domain.DocumentTypeStructured, DOCX)
	r.Register(".pdf", domain.DocumentTypeStructured, PDF)
	r.Register(".html", domain.DocumentTypeStructured, HTML)
	r.Register(".htm", domain.DocumentTypeStructured, HTML)
	return r
}

// Register adds or replaces the extractor for an extension.
func (r *Registry) Register(ext string, docType domain.DocumentType, fn Func) {
	r.formats[strings.ToLower(ext)] = format{docType: docType, extract: fn}
}

// TypeFor returns the declared type for a document name.
func (r *Registry) TypeFor(name string) (domain.DocumentType, error) {
	f, ok := r.lookup(name)
	if !ok {
		return "", unsupported(name)
	}
	return f.docType, nil
}

// Supports reports whether name has a registered extension
func (r *Registry) Supports(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Extensions lists the registered extensions in order
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract produces the plain text of a document. Text documents are decoded
// as UTF-8 whatever their extension; structured documents need a registered
// structured format.
func (r *Registry) Extract(name string, raw []byte, declared domain.DocumentType) (string, error) {
	switch declared {
	case domain.DocumentTypeText:
		return Text(raw)
	case domain.DocumentTypeStructured:
		f, ok := r.lookup(name)
		if !ok || f.docType != domain.DocumentTypeStructured {
			return "", unsupported(name)
		}
		text, err := f.extract(raw)
		if err != nil {
			return "", fmt.Errorf("failed to extract %s: %w", name, err)
		}
		return text, nil
	default:
		return "", unsupported(name)
	}
}

func (r *Registry) lookup(name string) (format, bool) {
	f, ok := r.formats[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

func unsupported(name string) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeUnsupportedType, domain.ErrUnsupportedType.Message,
		fmt.Errorf("no extractor for %q", name))
}
