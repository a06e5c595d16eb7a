package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	chunks    []domain.Chunk
	index     map[string]int
}

func NewStorage() *Storage { return &Storage{index: make(map[string]int)} }

// Init sets the vector dimension. Switching to a different dimension drops
// all stored vectors.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != dimension {
		s.chunks = nil
		s.index = make(map[string]int)
	}
	s.dimension = dimension
	return nil
}

// Upsert stores chunks, replacing any with the same ID.
func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chunks {
		if len(ch.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %s has %d values, want %d", domain.ErrDimensionMismatch, ch.ID, len(ch.Embedding), s.dimension)
		}
	}
	for _, ch := range chunks {
		ch.Embedding = slices.Clone(ch.Embedding)
		if i, ok := s.index[ch.ID]; ok {
			s.chunks[i] = ch
			continue
		}
		s.index[ch.ID] = len(s.chunks)
		s.chunks = append(s.chunks, ch)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, threshold float32, count int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d values, want %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	matches := make([]domain.Match, 0, len(s.chunks))
	for _, ch := range s.chunks {
		matches = append(matches, domain.Match{
			ChunkID:    ch.ID,
			DocumentID: ch.DocumentID,
			Content:    ch.Content,
			Start:      ch.Start,
			End:        ch.End,
			Similarity: embedding.Cosine(ch.Embedding, vector),
		})
	}
	return vectorstore.Rank(matches, threshold, count), nil
}

func (s *Storage) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, ch := range s.chunks {
		if ch.DocumentID != documentID {
			kept = append(kept, ch)
		}
	}
	clear(s.chunks[len(kept):])
	s.chunks = kept
	s.index = make(map[string]int, len(kept))
	for i, ch := range kept {
		s.index[ch.ID] = i
	}
	return nil
}

// Len returns the number of stored vectors.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Storage) Close() error { return nil }
