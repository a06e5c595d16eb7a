package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
	"docrag/internal/service"
)

func TestNewSQLitePipeline(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "docrag.db")

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	results := a.Service.Ingest(ctx, []service.FileInput{{
		Name:    "whales.txt",
		Content: []byte("Blue whales are the largest animals ever known. Whales sing long songs across the ocean."),
	}})
	require.NoError(t, results[0].Err)

	res, err := a.Service.Search(ctx, "blue whales largest animals", a.SearchOptions())
	require.NoError(t, err)
	require.NotEmpty(t, res.Snippets)
	assert.Equal(t, "whales.txt", res.Snippets[0].File)
	assert.NotEmpty(t, res.Answer)

	require.NoError(t, a.Close())

	// Reopening sees the persisted document and vectors.
	a, err = New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	st, err := a.Service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Files)
}

func TestNewMemoryAndChromemPipelines(t *testing.T) {
	for _, vectors := range []string{"memory", "chromem"} {
		t.Run(vectors, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.Type = "memory"
			cfg.VectorStore.Type = vectors
			cfg.VectorStore.Chromem.Path = filepath.Join(t.TempDir(), "vectors")

			a, err := New(context.Background(), cfg, nil)
			require.NoError(t, err)
			defer a.Close()
			assert.NotNil(t, a.Service)
			assert.NotNil(t, a.Registry)
		})
	}
}

func TestNewRejectsUnknownEmbedder(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = "memory"
	cfg.VectorStore.Type = "memory"
	cfg.Embedder.Type = "word2vec"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
