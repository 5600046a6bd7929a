// Package storage lists and opens the documents to ingest.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("document name escapes the source root")

// Source is a flat namespace of documents. Names returned by List are stable
// and double as document ids.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Name() string
}

// DirSource serves the files below a local directory.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

func (s *DirSource) Name() string { return "dir:" + s.root }

// Root returns the directory being served
func (s *DirSource) Root() string { return s.root }

// List returns slash separated paths relative to the root in lexical order.
// Hidden files and directories are skipped.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != s.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	return names, nil
}

// Open opens a document by the name List returned.
func (s *DirSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	return os.Open(filepath.Join(s.root, rel))
}

// Rel maps an absolute or root-relative path to a document name. It reports
// false for paths outside the root.
func (s *DirSource) Rel(path string) (string, bool) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ReadAll opens one named document and returns its bytes.
func ReadAll(ctx context.Context, src Source, name string) ([]byte, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
