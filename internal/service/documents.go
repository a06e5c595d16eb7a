package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docrag/internal/domain"
)

// DeleteDocument removes a document with its chunks and vectors.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.docs.GetDocument(ctx, id); err != nil {
		return err
	}
	if err := s.remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted document", zap.String("document_id", id))
	return nil
}

// remove deletes vectors first so a failure leaves the document listed and
// the delete can be retried.
func (s *Service) remove(ctx context.Context, id string) error {
	if err := s.vectors.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("deleting vectors of %s: %w", id, err)
	}
	if err := s.docs.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

func (s *Service) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return s.docs.GetDocument(ctx, id)
}

// ListDocuments returns all documents, newest first.
func (s *Service) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.docs.ListDocuments(ctx)
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	var st domain.Stats
	for _, d := range docs {
		st.Files++
		st.Bytes += d.ByteSize
		st.Chunks += d.ChunkCount
	}
	return st, nil
}
