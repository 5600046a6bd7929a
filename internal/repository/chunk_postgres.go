package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// dbtx is a pool or a transaction
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresChunkStore persists index entries in a pgvector column.
type PostgresChunkStore struct {
	pool *pgxpool.Pool
}

func NewPostgresChunkStore(pool *pgxpool.Pool) *PostgresChunkStore {
	return &PostgresChunkStore{pool: pool}
}

func (s *PostgresChunkStore) LoadAll(ctx context.Context) ([]domain.IndexEntry, error) {
	rows, err := s.pool.Query(ctx,
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
		var vec pgvector.Vector
		if err := rows.Scan(
			&e.Seq,
			&e.Chunk.ID,
			&e.Chunk.DocumentID,
			&e.Chunk.Ordinal,
			&e.Chunk.Start,
			&e.Chunk.Text,
			&vec,
		); err != nil {
			return nil, err
		}
		e.Vector = vec.Slice()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *PostgresChunkStore) Insert(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	var written []domain.IndexEntry
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		written, err = insertEntries(ctx, tx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func (s *PostgresChunkStore) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	var written []domain.IndexEntry
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM index_entries WHERE document_id = $1`, documentID); err != nil {
			return err
		}
		var err error
		written, err = insertEntries(ctx, tx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func insertEntries(ctx context.Context, db dbtx, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	written := make([]domain.IndexEntry, 0, len(entries))
	for _, e := range entries {
		err := db.QueryRow(ctx,
			`INSERT INTO index_entries
				(id, document_id, ordinal, start_offset, content, embedding)
			 VALUES
				($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING
			 RETURNING seq`,
			e.Chunk.ID,
			e.Chunk.DocumentID,
			e.Chunk.Ordinal,
			e.Chunk.Start,
			e.Chunk.Text,
			pgvector.NewVector(e.Vector),
		).Scan(&e.Seq)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunk %s: %w", e.Chunk.ID, err)
		}
		written = append(written, e)
	}
	return written, nil
}

func (s *PostgresChunkStore) ReplaceAll(ctx context.Context, entries []domain.IndexEntry) ([]domain.IndexEntry, error) {
	var written []domain.IndexEntry
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM index_entries`); err != nil {
			return err
		}
		var err error
		written, err = insertEntries(ctx, tx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// Close is a no-op: the pool is owned by the caller.
func (s *PostgresChunkStore) Close() error {
	return nil
}
