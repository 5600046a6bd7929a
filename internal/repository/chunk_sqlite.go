package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/docqa/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS index_entries (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	document_id  TEXT NOT NULL,
	ordinal      INTEGER NOT NULL,
	start_offset INTEGER NOT NULL DEFAULT 0,
	content      TEXT NOT NULL,
	embedding    BLOB NOT NULL,
	created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_index_entries_document_id ON index_entries(document_id);
`

// SQLiteChunkStore persists index entries in a single SQLite file.
// Embeddings are stored as JSON arrays.
type SQLiteChunkStore struct {
	db *sql.DB
}

// NewSQLiteChunkStore opens (or creates) index.db inside dataDir.
func NewSQLiteChunkStore(dataDir string) (*SQLiteChunkStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenSQLiteChunkStore(filepath.Join(dataDir, "index.db"))
}

// OpenSQLiteChunkStore opens a store at an explicit DSN or path.
func OpenSQLiteChunkStore(dsn string) (*SQLiteChunkStore, error) {
	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer at a time; the index already serializes writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	return &SQLiteChunkStore{db: db}, nil
}

func (s *SQLiteChunkStore) LoadAll(ctx context.Context) ([]domain.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, document_id, ordinal, start_offset, content, embedding
		 FROM index_entries
		 ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var e domain.IndexEntry
		var raw []byte
		if err := rows.Scan(
			&e.Seq,
			&e.Chunk.ID,
			&e.Chunk.DocumentID,
			&e.Chunk.Ordinal,
			&e.Chunk.Start,
			&e.Chunk.Text,
			&raw,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &e.Vector); err != nil {
			return nil, fmt.Errorf("corrupt embedding for chunk %s: %w", e.Chunk.ID, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *SQLiteChunkStore) Insert(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	return s.withTx(ctx, func(tx *sql.Tx) ([]domain.IndexEntry, error) {
		return s.insertTx(ctx, tx, entries)
	})
}

func (s *SQLiteChunkStore) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	return s.withTx(ctx, func(tx *sql.Tx) ([]domain.IndexEntry, error) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries WHERE document_id = ?`, documentID); err != nil {
			return nil, err
		}
		return s.insertTx(ctx, tx, entries)
	})
}

func (s *SQLiteChunkStore) withTx(ctx context.Context, fn func(tx *sql.Tx) ([]domain.IndexEntry, error)) ([]domain.IndexEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	written, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return written, nil
}

func (s *SQLiteChunkStore) insertTx(ctx context.Context, tx *sql.Tx, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO index_entries (id, document_id, ordinal, start_offset, content, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	written := make([]domain.IndexEntry, 0, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e.Vector)
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding: %w", err)
		}

		res, err := stmt.ExecContext(ctx, e.Chunk.ID, e.Chunk.DocumentID, e.Chunk.Ordinal, e.Chunk.Start, e.Chunk.Text, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunk %s: %w", e.Chunk.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		if e.Seq, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		written = append(written, e)
	}
	return written, nil
}

func (s *SQLiteChunkStore) ReplaceAll(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	return s.withTx(ctx, func(tx *sql.Tx) ([]domain.IndexEntry, error) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries`); err != nil {
			return nil, err
		}
		return s.insertTx(ctx, tx, entries)
	})
}

func (s *SQLiteChunkStore) Close() error {
	return s.db.Close()
}
