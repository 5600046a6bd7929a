package repository

import (
	"context"
	"sync"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// MemoryChunkStore keeps index entries in process memory only.
type MemoryChunkStore struct {
	mu      sync.Mutex
	entries []domain.IndexEntry
	ids     map[string]struct{}
	seq     int64
}

func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{ids: make(map[string]struct{})}
}

func (s *MemoryChunkStore) LoadAll(ctx context.Context) ([]domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.IndexEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryChunkStore) Insert(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(entries), nil
}

func (s *MemoryChunkStore) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if e.Chunk.DocumentID == documentID {
			delete(s.ids, e.Chunk.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return s.insertLocked(entries), nil
}

func (s *MemoryChunkStore) insertLocked(entries []domain.IndexEntry) []domain.IndexEntry {
	written := make([]domain.IndexEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := s.ids[e.Chunk.ID]; ok {
			continue
		}
		s.seq++
		e.Seq = s.seq
		s.ids[e.Chunk.ID] = struct{}{}
		s.entries = append(s.entries, e)
		written = append(written, e)
	}
	return written
}

func (s *MemoryChunkStore) ReplaceAll(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.ids = make(map[string]struct{})
	return s.insertLocked(entries), nil
}

func (s *MemoryChunkStore) Close() error {
	return nil
}

// Len returns the number of stored entries
func (s *MemoryChunkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
