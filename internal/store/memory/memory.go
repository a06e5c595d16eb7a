// Package memory is a process-local document store, used for ephemeral
// sessions and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"docrag/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	seq    int
	docs   map[string]entry
	chunks map[string]domain.Chunk
	byDoc  map[string][]string
}

type entry struct {
	doc domain.Document
	seq int
}

func New() *Store {
	return &Store{
		docs:   make(map[string]entry),
		chunks: make(map[string]domain.Chunk),
		byDoc:  make(map[string][]string),
	}
}

func (s *Store) CreateDocument(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	s.seq++
	s.docs[doc.ID] = entry{doc: doc, seq: s.seq}
	return nil
}

func (s *Store) SaveChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.docs[documentID]
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	s.dropChunks(documentID)
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		ch.DocumentID = documentID
		ch.Embedding = slices.Clone(ch.Embedding)
		s.chunks[ch.ID] = ch
		ids = append(ids, ch.ID)
	}
	s.byDoc[documentID] = ids
	e.doc.ChunkCount = len(chunks)
	e.doc.UpdatedAt = time.Now().UTC()
	s.docs[documentID] = e
	return nil
}

func (s *Store) dropChunks(documentID string) {
	for _, id := range s.byDoc[documentID] {
		delete(s.chunks, id)
	}
	delete(s.byDoc, documentID)
}

func (s *Store) GetDocument(_ context.Context, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return e.doc, nil
}

func (s *Store) GetDocuments(_ context.Context, ids []string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, id := range ids {
		if e, ok := s.docs[id]; ok {
			docs = append(docs, e.doc)
		}
	}
	return docs, nil
}

func (s *Store) GetChunk(_ context.Context, id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	ch.Embedding = slices.Clone(ch.Embedding)
	return ch, nil
}

// ListDocuments orders by creation time, newest first; documents created at
// the same instant come back in reverse insertion order.
func (s *Store) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.docs))
	for _, e := range s.docs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		if c := b.doc.CreatedAt.Compare(a.doc.CreatedAt); c != 0 {
			return c
		}
		return b.seq - a.seq
	})
	docs := make([]domain.Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc
	}
	return docs, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropChunks(id)
	delete(s.docs, id)
	return nil
}

func (s *Store) Close() error { return nil }
