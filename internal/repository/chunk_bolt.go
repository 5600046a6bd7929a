package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var (
	boltEntriesBucket = []byte("entries")
	boltIDsBucket     = []byte("ids")
)

type boltRecord struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Ordinal    int       `json:"ordinal"`
	Start      int       `json:"start"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
}

// BoltChunkStore persists index entries in a bbolt file. Entries are keyed
// by their big-endian sequence number so a cursor walks them in insertion
// order.
type BoltChunkStore struct {
	db *bolt.DB
}

// NewBoltChunkStore opens (or creates) index.bolt inside dataDir.
func NewBoltChunkStore(dataDir string) (*BoltChunkStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenBoltChunkStore(filepath.Join(dataDir, "index.bolt"))
}

// OpenBoltChunkStore opens a store at an explicit file path.
func OpenBoltChunkStore(path string) (*BoltChunkStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(boltEntriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(boltIDsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bolt buckets: %w", err)
	}

	return &BoltChunkStore{db: db}, nil
}

func (s *BoltChunkStore) LoadAll(ctx context.Context) ([]domain.IndexEntry, error) {
	var entries []domain.IndexEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltEntriesBucket).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt entry %x: %w", k, err)
			}
			entries = append(entries, rec.entry(int64(binary.BigEndian.Uint64(k))))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *BoltChunkStore) Insert(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	var written []domain.IndexEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		written, err = boltInsert(tx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func (s *BoltChunkStore) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	var written []domain.IndexEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := boltDeleteDocument(tx, documentID); err != nil {
			return err
		}
		var err error
		written, err = boltInsert(tx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func boltInsert(tx *bolt.Tx, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	eb := tx.Bucket(boltEntriesBucket)
	ib := tx.Bucket(boltIDsBucket)

	written := make([]domain.IndexEntry, 0, len(entries))
	for _, e := range entries {
		if ib.Get([]byte(e.Chunk.ID)) != nil {
			continue
		}
		seq, err := eb.NextSequence()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(newBoltRecord(e))
		if err != nil {
			return nil, fmt.Errorf("failed to encode entry %s: %w", e.Chunk.ID, err)
		}

		key := seqKey(seq)
		if err := eb.Put(key, raw); err != nil {
			return nil, err
		}
		if err := ib.Put([]byte(e.Chunk.ID), key); err != nil {
			return nil, err
		}
		e.Seq = int64(seq)
		written = append(written, e)
	}
	return written, nil
}

func boltDeleteDocument(tx *bolt.Tx, documentID string) error {
	eb := tx.Bucket(boltEntriesBucket)
	ib := tx.Bucket(boltIDsBucket)

	var stale [][]byte
	var staleIDs []string
	err := eb.ForEach(func(k, v []byte) error {
		var rec boltRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if rec.DocumentID == documentID {
			stale = append(stale, append([]byte(nil), k...))
			staleIDs = append(staleIDs, rec.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, k := range stale {
		if err := eb.Delete(k); err != nil {
			return err
		}
		if err := ib.Delete([]byte(staleIDs[i])); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltChunkStore) ReplaceAll(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	var written []domain.IndexEntry
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{boltEntriesBucket, boltIDsBucket} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		var err error
		written, err = boltInsert(tx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func (s *BoltChunkStore) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func newBoltRecord(e domain.IndexEntry) boltRecord {
	return boltRecord{
		ID:         e.Chunk.ID,
		DocumentID: e.Chunk.DocumentID,
		Ordinal:    e.Chunk.Ordinal,
		Start:      e.Chunk.Start,
		Content:    e.Chunk.Text,
		Embedding:  e.Vector,
	}
}

func (r boltRecord) entry(seq int64) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Ordinal:    r.Ordinal,
			Start:      r.Start,
			Text:       r.Content,
		},
		Vector: r.Embedding,
		Seq:    seq,
	}
}
