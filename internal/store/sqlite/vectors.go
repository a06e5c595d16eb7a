package sqlite

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/vectorstore"
)

// Init records the vector dimension used to validate upserts and queries.
func (s *Store) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	return nil
}

// Upsert stores chunk vectors. Chunk rows that do not exist yet are inserted;
// their document must already be present.
func (s *Store) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	for _, ch := range chunks {
		if len(ch.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %s has %d values, want %d", domain.ErrDimensionMismatch, ch.ID, len(ch.Embedding), s.dimension)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, start_offset, end_offset, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("preparing vector upsert: %w", err)
	}
	defer stmt.Close()
	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.Index, ch.Content, ch.Start, ch.End, vectorToBlob(ch.Embedding)); err != nil {
			return fmt.Errorf("upserting vector of chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// Search scans every stored vector and ranks by cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, threshold float32, count int) ([]domain.Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d values, want %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_id, content, start_offset, end_offset, embedding FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var (
		matches []domain.Match
		skipped int
	)
	for rows.Next() {
		var (
			m    domain.Match
			blob []byte
		)
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Content, &m.Start, &m.End, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		vec := blobToVector(blob)
		if len(vec) != len(vector) {
			skipped++
			continue
		}
		m.Similarity = embedding.Cosine(vec, vector)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("skipped vectors with a stale dimension; reindex to refresh them",
			zap.Int("skipped", skipped), zap.Int("dimension", len(vector)))
	}
	return vectorstore.Rank(matches, threshold, count), nil
}

func vectorToBlob(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToVector(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
