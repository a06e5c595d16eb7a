// Package qdrant stores chunk vectors in a Qdrant collection over gRPC.
// It assumes cosine distance and creates the collection if missing.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

const (
	DefaultPort       = 6334
	DefaultCollection = "docrag_chunks"
)

const (
	keyChunkID    = "chunk_id"
	keyDocumentID = "document_id"
	keyIndex      = "index"
	keyStart      = "start"
	keyEnd        = "end"
	keyContent    = "content"
)

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

type Storage struct {
	client     *qdrant.Client
	collection string
	dimension  int
	logger     *zap.Logger
}

func NewStorage(cfg Config, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC connection is plaintext", zap.String("host", cfg.Host))
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Storage{client: client, collection: cfg.Collection, logger: logger}, nil
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	s.logger.Info("created qdrant collection", zap.String("collection", s.collection), zap.Int("dimension", dimension))
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		if len(ch.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %s has %d values, want %d", domain.ErrDimensionMismatch, ch.ID, len(ch.Embedding), s.dimension)
		}
		points[i] = &qdrant.PointStruct{
			// Chunk IDs are UUIDs, which Qdrant accepts as point IDs.
			Id:      qdrant.NewIDUUID(ch.ID),
			Vectors: qdrant.NewVectors(ch.Embedding...),
			Payload: payloadFromChunk(ch),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points into %s: %w", len(points), s.collection, err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, threshold float32, count int) ([]domain.Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d values, want %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if count <= 0 {
		return nil, nil
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(count)),
		ScoreThreshold: qdrant.PtrOf(threshold),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", s.collection, err)
	}
	matches := make([]domain.Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, matchFromPayload(p.GetPayload(), p.GetScore()))
	}
	// Qdrant already orders by score; Rank keeps ties stable and the
	// threshold inclusive regardless of server version.
	return vectorstore.Rank(matches, threshold, count), nil
}

func (s *Storage) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatchKeyword(keyDocumentID, documentID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points of %s: %w", documentID, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func payloadFromChunk(ch domain.Chunk) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		keyChunkID:    {Kind: &qdrant.Value_StringValue{StringValue: ch.ID}},
		keyDocumentID: {Kind: &qdrant.Value_StringValue{StringValue: ch.DocumentID}},
		keyContent:    {Kind: &qdrant.Value_StringValue{StringValue: ch.Content}},
		keyIndex:      {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(ch.Index)}},
		keyStart:      {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(ch.Start)}},
		keyEnd:        {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(ch.End)}},
	}
}

func matchFromPayload(payload map[string]*qdrant.Value, score float32) domain.Match {
	return domain.Match{
		ChunkID:    payload[keyChunkID].GetStringValue(),
		DocumentID: payload[keyDocumentID].GetStringValue(),
		Content:    payload[keyContent].GetStringValue(),
		Start:      int(payload[keyStart].GetIntegerValue()),
		End:        int(payload[keyEnd].GetIntegerValue()),
		Similarity: score,
	}
}
