package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docrag/internal/chunker"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	storemem "docrag/internal/store/memory"
	"docrag/internal/store/sqlite"
	vectormem "docrag/internal/vectorstore/memory"
)

// topicEmbedder maps text onto one axis per topic keyword, with a last axis
// for text that mentions none of them.
type topicEmbedder struct{}

var topics = []string{"turtle", "rain", "mountain"}

func (topicEmbedder) Name() string   { return "topics" }
func (topicEmbedder) Dimension() int { return len(topics) + 1 }
func (topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(topics)+1)
	matched := false
	for i, t := range topics {
		if n := strings.Count(lower, t); n > 0 {
			vec[i] = float32(n)
			matched = true
		}
	}
	if !matched {
		vec[len(topics)] = 1
	}
	return vec, nil
}

const (
	turtleText = "Sea turtles nest on sandy beaches every year. The turtle hatchlings crawl toward the ocean at night."
	rainText   = "Monsoon rain floods the valley in June. Farmers plant rice when the rain arrives early."
)

type fixture struct {
	svc     *Service
	docs    *storemem.Store
	vectors *vectormem.Storage
}

func newFixture(t *testing.T, docs domain.DocumentStore, vectors domain.VectorStore) *Service {
	t.Helper()
	cache, err := embedding.NewCache(topicEmbedder{})
	require.NoError(t, err)
	require.NoError(t, vectors.Init(context.Background(), cache.Dimension()))
	svc, err := New(Deps{
		Documents:  docs,
		Vectors:    vectors,
		Embeddings: cache,
		Chunker:    chunker.New(chunker.WithChunkSize(120), chunker.WithOverlap(0)),
	}, DefaultOptions())
	require.NoError(t, err)
	return svc
}

func setup(t *testing.T) fixture {
	t.Helper()
	f := fixture{docs: storemem.New(), vectors: vectormem.NewStorage()}
	f.svc = newFixture(t, f.docs, f.vectors)
	results := f.svc.Ingest(context.Background(), []FileInput{
		{Name: "turtles.txt", Content: []byte(turtleText)},
		{Name: "rain.txt", ContentType: "text/plain; charset=utf-8", Content: []byte(rainText)},
	})
	for _, r := range results {
		require.NoError(t, r.Err, r.Name)
	}
	return f
}

func TestSearchEmptyQuery(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Search(context.Background(), "   ", SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestSearchStrict(t *testing.T) {
	f := setup(t)
	res, err := f.svc.Search(context.Background(), "  turtle hatchlings ", SearchOptions{Strict: true})
	require.NoError(t, err)

	assert.Equal(t, "turtle hatchlings", res.Query)
	require.Len(t, res.Snippets, 1)
	sn := res.Snippets[0]
	assert.Equal(t, "turtles.txt", sn.File)
	assert.Equal(t, turtleText, sn.Text)
	assert.Equal(t, turtleText, turtleText[sn.Start:sn.End])
	assert.InDelta(t, 1.0, sn.Similarity, 1e-6)
	assert.Equal(t, "The turtle hatchlings crawl toward the ocean at night", res.Answer)
}

func TestSearchNonStrictHasNoAnswer(t *testing.T) {
	f := setup(t)
	res, err := f.svc.Search(context.Background(), "rain", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Snippets, 1)
	assert.Equal(t, "rain.txt", res.Snippets[0].File)
	assert.Empty(t, res.Answer)
}

func TestSearchNoMatches(t *testing.T) {
	f := setup(t)
	res, err := f.svc.Search(context.Background(), "mountain", SearchOptions{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, domain.SearchResult{Query: "mountain", Snippets: []domain.Snippet{}}, res)
}

// stubVectors returns canned matches and records the requested count.
type stubVectors struct {
	matches   []domain.Match
	err       error
	lastCount int
}

func (s *stubVectors) Init(context.Context, int) error              { return nil }
func (s *stubVectors) Upsert(context.Context, []domain.Chunk) error { return nil }
func (s *stubVectors) DeleteDocument(context.Context, string) error { return nil }
func (s *stubVectors) Close() error                                 { return nil }
func (s *stubVectors) Search(_ context.Context, _ []float32, _ float32, count int) ([]domain.Match, error) {
	s.lastCount = count
	return s.matches, s.err
}

type failingDocs struct{ *storemem.Store }

func (failingDocs) GetDocuments(context.Context, []string) ([]domain.Document, error) {
	return nil, errors.New("database is locked")
}

func TestSearchStoreFailureDegrades(t *testing.T) {
	svc := newFixture(t, storemem.New(), &stubVectors{err: errors.New("connection refused")})
	res, err := svc.Search(context.Background(), "turtle", SearchOptions{Strict: true})
	require.NoError(t, err)
	assert.Empty(t, res.Snippets)
	assert.Empty(t, res.Answer)
}

func TestSearchCanceled(t *testing.T) {
	svc := newFixture(t, storemem.New(), &stubVectors{err: errors.New("interrupted")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Search(ctx, "turtle", SearchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Snippets)
}

func TestSearchTruncatesInStoreOrder(t *testing.T) {
	stub := &stubVectors{matches: []domain.Match{
		{ChunkID: "c1", DocumentID: "d1", Content: "one", Start: 0, End: 3, Similarity: 0.9},
		{ChunkID: "c2", DocumentID: "d2", Content: "two", Start: 0, End: 3, Similarity: 0.95},
		{ChunkID: "c3", DocumentID: "d1", Content: "three", Start: 4, End: 9, Similarity: 0.5},
	}}
	docs := storemem.New()
	require.NoError(t, docs.CreateDocument(context.Background(), domain.Document{ID: "d1", OriginalName: "one.txt"}))
	svc := newFixture(t, docs, stub)

	res, err := svc.Search(context.Background(), "turtle", SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, stub.lastCount)
	require.Len(t, res.Snippets, 2)
	assert.Equal(t, "c1", res.Snippets[0].ChunkID)
	assert.Equal(t, "one.txt", res.Snippets[0].File)
	assert.Equal(t, "c2", res.Snippets[1].ChunkID)
	assert.Equal(t, domain.UnknownFile, res.Snippets[1].File)

	_, err = svc.Search(context.Background(), "turtle", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2*DefaultLimit, stub.lastCount)
}

func TestSearchUnknownFileOnLookupFailure(t *testing.T) {
	stub := &stubVectors{matches: []domain.Match{{ChunkID: "c1", DocumentID: "d1", Content: "text", End: 4, Similarity: 0.8}}}
	svc := newFixture(t, failingDocs{storemem.New()}, stub)
	res, err := svc.Search(context.Background(), "turtle", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Snippets, 1)
	assert.Equal(t, domain.UnknownFile, res.Snippets[0].File)
}

func TestSearchInvalidOffsets(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	cache, err := embedding.NewCache(topicEmbedder{})
	require.NoError(t, err)
	stub := &stubVectors{matches: []domain.Match{{ChunkID: "c1", DocumentID: "d1", Content: "text", Start: 5, End: 5}}}
	svc, err := New(Deps{
		Documents:  storemem.New(),
		Vectors:    stub,
		Embeddings: cache,
		Logger:     zap.New(core),
	}, DefaultOptions())
	require.NoError(t, err)

	_, err = svc.Search(context.Background(), "turtle", SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidOffsets)
	entries := logs.FilterMessage("chunk has invalid offsets").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "c1", entries[0].ContextMap()["chunk_id"])
}

func TestIngestValidation(t *testing.T) {
	f := setup(t)
	results := f.svc.Ingest(context.Background(), []FileInput{
		{Name: "report.pdf", ContentType: "application/pdf", Content: []byte("%PDF")},
		{Name: "blank.txt", Content: []byte(" \n\t ")},
		{Name: "binary.txt", Content: []byte{0xff, 0xfe, 0xfd}},
		{Name: "peaks.TXT", Content: []byte("The mountain trail climbs above the clouds.")},
	})
	require.Len(t, results, 4)
	assert.ErrorIs(t, results[0].Err, domain.ErrUnsupportedFileType)
	assert.ErrorIs(t, results[1].Err, domain.ErrEmptyDocument)
	assert.ErrorIs(t, results[2].Err, domain.ErrUnsupportedFileType)
	require.NoError(t, results[3].Err)

	doc := results[3].Document
	assert.Equal(t, "peaks", doc.DisplayName)
	assert.Equal(t, "peaks.TXT", doc.OriginalName)
	assert.Equal(t, int64(43), doc.ByteSize)
	assert.Equal(t, 1, doc.ChunkCount)

	docs, err := f.svc.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestIngestChunksAndVectors(t *testing.T) {
	f := setup(t)
	long := strings.Repeat("The turtle swims far. ", 20)
	doc, err := f.svc.IngestFile(context.Background(), FileInput{Name: "long.txt", Content: []byte(long)})
	require.NoError(t, err)
	assert.Greater(t, doc.ChunkCount, 1)

	for i := range doc.ChunkCount {
		ch, err := f.docs.GetChunk(context.Background(), chunker.ChunkID(doc.ID, i))
		require.NoError(t, err)
		assert.Len(t, ch.Embedding, 4)
	}
	assert.Equal(t, 2+doc.ChunkCount, f.vectors.Len())
}

func TestExpandSnippet(t *testing.T) {
	f := setup(t)
	res, err := f.svc.Search(context.Background(), "rain", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Snippets, 1)
	sn := res.Snippets[0]

	narrow := domain.Snippet{DocumentID: sn.DocumentID, Text: "floods", Start: 13, End: 19}
	assert.Equal(t, "...rain floods the ...", f.svc.ExpandSnippet(context.Background(), narrow, 5))

	viaChunk := narrow
	viaChunk.DocumentID = ""
	viaChunk.ChunkID = sn.ChunkID
	assert.Equal(t, "...rain floods the ...", f.svc.ExpandSnippet(context.Background(), viaChunk, 5))

	assert.Equal(t, rainText, f.svc.ExpandSnippet(context.Background(), narrow, 0))
	assert.Equal(t, rainText, f.svc.ExpandSnippet(context.Background(), domain.Snippet{ChunkID: sn.ChunkID}, 0))

	missing := domain.Snippet{ChunkID: "nope", Text: "kept as is"}
	assert.Equal(t, "kept as is", f.svc.ExpandSnippet(context.Background(), missing, 5))
}

func TestDeleteDocument(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	res, err := f.svc.Search(ctx, "turtle", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Snippets, 1)
	id := res.Snippets[0].DocumentID

	require.NoError(t, f.svc.DeleteDocument(ctx, id))
	res, err = f.svc.Search(ctx, "turtle", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Snippets)
	assert.Equal(t, 1, f.vectors.Len())

	assert.ErrorIs(t, f.svc.DeleteDocument(ctx, id), domain.ErrNotFound)
}

func TestReindex(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	docs, err := f.svc.ListDocuments(ctx)
	require.NoError(t, err)
	before := docs[0]

	after, err := f.svc.Reindex(ctx, before.ID)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.ChunkCount, after.ChunkCount)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
	assert.Equal(t, 2, f.vectors.Len())

	results, err := f.svc.ReindexAll(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = f.svc.Reindex(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStats(t *testing.T) {
	f := setup(t)
	st, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{
		Files:  2,
		Bytes:  int64(len(turtleText) + len(rainText)),
		Chunks: 2,
	}, st)
}

func TestIngestPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("The rain fell all afternoon."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("A turtle rested in the sun."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# ignored"), 0o644))

	paths, err := ExpandPaths([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "sub", "b.txt")}, paths)

	paths, err = ExpandPaths([]string{filepath.Join(dir, "**", "*.txt"), filepath.Join(dir, "a.txt")})
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	_, err = ExpandPaths([]string{filepath.Join(dir, "*.pdf")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	svc := newFixture(t, storemem.New(), vectormem.NewStorage())
	results, err := svc.IngestPaths(context.Background(), []string{dir, filepath.Join(dir, "notes.md")})
	require.NoError(t, err)
	require.Len(t, results, 3)
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.ErrorIs(t, r.Err, domain.ErrUnsupportedFileType)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "notes", DisplayName("dir/notes.txt"))
	assert.Equal(t, "Notes", DisplayName("Notes.TXT"))
	assert.Equal(t, "data.csv", DisplayName("data.csv"))
}

// switchEmbedder behaves like topicEmbedder until broken, then returns
// vectors one value short.
type switchEmbedder struct {
	topicEmbedder
	broken atomic.Bool
}

func (e *switchEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.topicEmbedder.Embed(ctx, text)
	if e.broken.Load() {
		vec = vec[:len(vec)-1]
	}
	return vec, err
}

func TestReindexFailureKeepsDocument(t *testing.T) {
	ctx := context.Background()
	emb := &switchEmbedder{}
	cache, err := embedding.NewCache(emb)
	require.NoError(t, err)
	docs, vectors := storemem.New(), vectormem.NewStorage()
	require.NoError(t, vectors.Init(ctx, cache.Dimension()))
	svc, err := New(Deps{Documents: docs, Vectors: vectors, Embeddings: cache}, DefaultOptions())
	require.NoError(t, err)

	doc, err := svc.IngestFile(ctx, FileInput{Name: "rain.txt", Content: []byte(rainText)})
	require.NoError(t, err)
	indexed := vectors.Len()
	require.Positive(t, indexed)

	emb.broken.Store(true)
	cache.Purge()
	_, err = svc.Reindex(ctx, doc.ID)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	kept, err := svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, rainText, kept.Content)
	assert.Equal(t, doc.ChunkCount, kept.ChunkCount)
	listed, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, doc.ID, listed[0].ID)
	assert.Equal(t, indexed, vectors.Len())

	// Once the embedder recovers the same call succeeds.
	emb.broken.Store(false)
	again, err := svc.Reindex(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
	assert.Equal(t, indexed, vectors.Len())

	res, err := svc.Search(ctx, "rain", SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Snippets)
	assert.Equal(t, "rain.txt", res.Snippets[0].File)
}

func TestReindexSharedSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "docrag.db"), nil)
	require.NoError(t, err)
	defer store.Close()
	svc := newFixture(t, store, store)

	doc, err := svc.IngestFile(ctx, FileInput{Name: "rain.txt", Content: []byte(rainText)})
	require.NoError(t, err)

	after, err := svc.Reindex(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, after.ID)
	assert.Equal(t, rainText, after.Content)
	assert.True(t, doc.CreatedAt.Equal(after.CreatedAt))

	res, err := svc.Search(ctx, "rain", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Snippets, doc.ChunkCount)
	assert.Equal(t, "rain.txt", res.Snippets[0].File)
}
