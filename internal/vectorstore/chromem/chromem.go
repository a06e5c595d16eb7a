// Package chromem stores chunk vectors in an embedded chromem-go database,
// optionally persisted to disk.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/vectorstore"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "chunks"

const (
	metaDocumentID = "document_id"
	metaIndex      = "index"
	metaStart      = "start"
	metaEnd        = "end"
)

// ErrPrecomputedOnly is returned if chromem ever asks the store to embed
// text itself; every document and query carries its own vector.
var ErrPrecomputedOnly = errors.New("chromem store only accepts precomputed embeddings")

// Config configures the chromem store.
type Config struct {
	// Path of the persistent database directory; empty keeps it in memory.
	Path       string
	Compress   bool
	Collection string
}

// Store implements domain.VectorStore on top of chromem-go.
type Store struct {
	db         *chromem.DB
	name       string
	collection *chromem.Collection
	dimension  int
	logger     *zap.Logger
}

// New opens the database.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", cfg.Path, err)
		}
	}
	return &Store{db: db, name: cfg.Collection, logger: logger}, nil
}

func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, ErrPrecomputedOnly
}

// Init gets or creates the collection.
func (s *Store) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	collection, err := s.db.GetOrCreateCollection(s.name, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", s.name, err)
	}
	s.collection = collection
	s.dimension = dimension
	return nil
}

func (s *Store) ready() error {
	if s.collection == nil {
		return errors.New("chromem store not initialized")
	}
	return nil
}

// Upsert adds chunks; chromem replaces documents with an existing ID.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		if len(ch.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %s has %d values, want %d", domain.ErrDimensionMismatch, ch.ID, len(ch.Embedding), s.dimension)
		}
		docs[i] = chromem.Document{
			ID:      ch.ID,
			Content: ch.Content,
			Metadata: map[string]string{
				metaDocumentID: ch.DocumentID,
				metaIndex:      strconv.Itoa(ch.Index),
				metaStart:      strconv.Itoa(ch.Start),
				metaEnd:        strconv.Itoa(ch.End),
			},
			Embedding: embedding.Normalize(ch.Embedding),
		}
	}
	// Concurrency of 1 since embeddings are already computed.
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	s.logger.Debug("added chunks to chromem", zap.String("collection", s.name), zap.Int("count", len(docs)))
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, threshold float32, count int) ([]domain.Match, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d values, want %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	// chromem rejects nResults larger than the collection.
	n := min(count, s.collection.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := s.collection.QueryEmbedding(ctx, embedding.Normalize(vector), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.name, err)
	}
	matches := make([]domain.Match, 0, len(results))
	for _, r := range results {
		m, err := matchFromResult(r)
		if err != nil {
			s.logger.Error("skipping chromem result with malformed metadata", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		matches = append(matches, m)
	}
	return vectorstore.Rank(matches, threshold, count), nil
}

func matchFromResult(r chromem.Result) (domain.Match, error) {
	start, err := strconv.Atoi(r.Metadata[metaStart])
	if err != nil {
		return domain.Match{}, fmt.Errorf("start offset: %w", err)
	}
	end, err := strconv.Atoi(r.Metadata[metaEnd])
	if err != nil {
		return domain.Match{}, fmt.Errorf("end offset: %w", err)
	}
	return domain.Match{
		ChunkID:    r.ID,
		DocumentID: r.Metadata[metaDocumentID],
		Content:    r.Content,
		Start:      start,
		End:        end,
		Similarity: r.Similarity,
	}, nil
}

func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.collection.Delete(ctx, map[string]string{metaDocumentID: documentID}, nil); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	return nil
}

// Close is a no-op: the persistent database writes through on every change.
func (s *Store) Close() error { return nil }
