package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func newStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background(), 2))
	return s
}

func chunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "a", DocumentID: "d1", Index: 0, Content: "alpha", Start: 0, End: 5, Embedding: []float32{1, 0}},
		{ID: "b", DocumentID: "d1", Index: 1, Content: "beta", Start: 6, End: 10, Embedding: []float32{0.8, 0.6}},
		{ID: "c", DocumentID: "d2", Index: 0, Content: "gamma", Start: 0, End: 5, Embedding: []float32{0, 1}},
	}
}

func TestStoreSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, "")
	require.NoError(t, s.Upsert(ctx, chunks()))

	got, err := s.Search(ctx, []float32{1, 0}, 0.3, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ChunkID)
	assert.Equal(t, "b", got[1].ChunkID)
	assert.Equal(t, domain.Match{ChunkID: "b", DocumentID: "d1", Content: "beta", Start: 6, End: 10, Similarity: got[1].Similarity}, got[1])
	assert.InDelta(t, 0.8, got[1].Similarity, 1e-5)

	got, err = s.Search(ctx, []float32{1, 0}, -1, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStoreSearchEmptyCollection(t *testing.T) {
	s := newStore(t, "")
	got, err := s.Search(context.Background(), []float32{1, 0}, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreDeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, "")
	require.NoError(t, s.Upsert(ctx, chunks()))
	require.NoError(t, s.DeleteDocument(ctx, "d1"))

	got, err := s.Search(ctx, []float32{0, 1}, -1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ChunkID)
}

func TestStoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, "")
	err := s.Upsert(ctx, []domain.Chunk{{ID: "x", Embedding: []float32{1, 0, 0}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	_, err = s.Search(ctx, []float32{1}, 0, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newStore(t, dir)
	require.NoError(t, s.Upsert(ctx, chunks()))
	require.NoError(t, s.Close())

	reopened := newStore(t, dir)
	got, err := reopened.Search(ctx, []float32{0, 1}, 0.9, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ChunkID)
}

func TestStoreRequiresInit(t *testing.T) {
	s, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Error(t, s.Upsert(context.Background(), chunks()))
}
