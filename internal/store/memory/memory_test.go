package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateDocument(ctx, domain.Document{ID: "d1", DisplayName: "notes"}))
	assert.Error(t, s.CreateDocument(ctx, domain.Document{ID: "d1"}))

	require.NoError(t, s.SaveChunks(ctx, "d1", []domain.Chunk{
		{ID: "c0", Content: "a", End: 1},
		{ID: "c1", Content: "b", Start: 2, End: 3},
	}))
	doc, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.False(t, doc.CreatedAt.IsZero())

	ch, err := s.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "d1", ch.DocumentID)

	require.NoError(t, s.SaveChunks(ctx, "d1", []domain.Chunk{{ID: "c2", Content: "z"}}))
	_, err = s.GetChunk(ctx, "c0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.DeleteDocument(ctx, "d1"))
	_, err = s.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetChunk(ctx, "c2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, s.DeleteDocument(ctx, "d1"))

	assert.ErrorIs(t, s.SaveChunks(ctx, "missing", nil), domain.ErrNotFound)
}

func TestListDocumentsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateDocument(ctx, domain.Document{ID: "a", CreatedAt: base}))
	require.NoError(t, s.CreateDocument(ctx, domain.Document{ID: "b", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateDocument(ctx, domain.Document{ID: "c", CreatedAt: base}))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)

	found, err := s.GetDocuments(ctx, []string{"a", "zzz"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].ID)
}
