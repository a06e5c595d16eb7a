package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/normalize"
	"docrag/internal/snippet"
)

// Search embeds the query, retrieves the best matching chunks and, in strict
// mode, synthesizes an answer from the top snippets. Retrieval failures
// degrade to an empty result; only an empty query, broken chunk offsets or
// caller cancellation produce an error.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) (domain.SearchResult, error) {
	started := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.SearchResult{}, domain.ErrEmptyQuery
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	empty := domain.SearchResult{Query: query, Snippets: []domain.Snippet{}}

	vec, err := s.cache.Embed(ctx, s.queryText(query))
	if err != nil {
		return empty, err
	}

	matches, err := s.vectors.Search(ctx, vec, s.opts.MatchThreshold, 2*limit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return empty, ctxErr
		}
		s.logger.Warn("vector search failed", zap.String("query", query), zap.Error(err))
		s.metrics.ObserveSearch(time.Since(started), 0)
		return empty, nil
	}
	if len(matches) == 0 {
		s.metrics.ObserveSearch(time.Since(started), 0)
		return empty, nil
	}

	names := s.fileNames(ctx, matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	snippets := make([]domain.Snippet, 0, len(matches))
	for _, m := range matches {
		if m.Start < 0 || m.End <= m.Start {
			s.logger.Error("chunk has invalid offsets",
				zap.String("chunk_id", m.ChunkID),
				zap.String("document_id", m.DocumentID),
				zap.Int("start", m.Start),
				zap.Int("end", m.End))
			return empty, fmt.Errorf("%w: chunk %s spans [%d, %d)", domain.ErrInvalidOffsets, m.ChunkID, m.Start, m.End)
		}
		file, ok := names[m.DocumentID]
		if !ok {
			file = domain.UnknownFile
		}
		snippets = append(snippets, domain.Snippet{
			ChunkID:    m.ChunkID,
			DocumentID: m.DocumentID,
			File:       file,
			Text:       m.Content,
			Start:      m.Start,
			End:        m.End,
			Similarity: float64(m.Similarity),
		})
	}

	result := domain.SearchResult{Query: query, Snippets: snippets}
	if opts.Strict {
		texts := make([]string, 0, answerSnippets)
		for _, sn := range snippets[:min(answerSnippets, len(snippets))] {
			texts = append(texts, sn.Text)
		}
		result.Answer = s.synth.Synthesize(ctx, query, texts, opts.UseLLM)
	}
	s.metrics.ObserveSearch(time.Since(started), len(snippets))
	s.logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("snippets", len(snippets)),
		zap.Duration("took", time.Since(started)))
	return result, nil
}

func (s *Service) queryText(query string) string {
	text := s.chunker.Normalize(query)
	if s.opts.FilterStopwords {
		if filtered := normalize.FilterStopwords(text, s.opts.Stopwords); filtered != "" {
			text = filtered
		}
	}
	return text
}

// fileNames resolves the original file name of every document referenced by
// matches with a single store call. A failed lookup leaves the map empty.
func (s *Service) fileNames(ctx context.Context, matches []domain.Match) map[string]string {
	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.DocumentID]; ok || m.DocumentID == "" {
			continue
		}
		seen[m.DocumentID] = struct{}{}
		ids = append(ids, m.DocumentID)
	}
	names := make(map[string]string, len(ids))
	docs, err := s.docs.GetDocuments(ctx, ids)
	if err != nil {
		s.logger.Warn("resolving file names failed", zap.Int("documents", len(ids)), zap.Error(err))
		return names
	}
	for _, d := range docs {
		names[d.ID] = d.OriginalName
	}
	return names
}

// ExpandSnippet returns the snippet widened by contextSize characters of its
// document on each side. When the document cannot be resolved the snippet
// text is returned unchanged.
func (s *Service) ExpandSnippet(ctx context.Context, sn domain.Snippet, contextSize int) string {
	if contextSize <= 0 {
		contextSize = s.opts.ContextSize
	}
	docID := sn.DocumentID
	if docID == "" {
		ch, err := s.docs.GetChunk(ctx, sn.ChunkID)
		if err != nil {
			s.logger.Debug("expand: chunk lookup failed", zap.String("chunk_id", sn.ChunkID), zap.Error(err))
			return sn.Text
		}
		docID = ch.DocumentID
		if sn.End == 0 {
			sn.Start, sn.End = ch.Start, ch.End
		}
		if sn.Text == "" {
			sn.Text = ch.Content
		}
	}
	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("expand: document lookup failed", zap.String("document_id", docID), zap.Error(err))
		}
		return sn.Text
	}
	return snippet.Expand(s.chunker.Normalize(doc.Content), sn.Start, sn.End, contextSize)
}
