//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresChunkStore(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(ctx, t).Pool(ctx, t)

	open := func(t *testing.T) chunkStore {
		require.NoError(t, testutil.Reset(ctx, pool))
		return NewPostgresChunkStore(pool)
	}
	reopen := func(t *testing.T) chunkStore {
		return NewPostgresChunkStore(pool)
	}
	runChunkStoreContract(t, open, reopen)
}

func TestPostgresChunkStore_ReplaceRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(ctx, t).Pool(ctx, t)

	store := NewPostgresChunkStore(pool)
	_, err := store.Insert(ctx, []domain.IndexEntry{testEntry("doc1", 0, "original", 1, 0)})
	require.NoError(t, err)

	// an empty vector is rejected by pgvector, so the delete must roll back
	_, err = store.ReplaceDocument(ctx, "doc1", []domain.IndexEntry{testEntry("doc1", 0, "broken")})
	require.Error(t, err)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "original", all[0].Chunk.Text)
}
