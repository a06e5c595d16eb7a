package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docrag/internal/domain"
)

const textExt = ".txt"

// FileInput is an uploaded file.
type FileInput struct {
	Name        string
	ContentType string
	Content     []byte
}

// IngestResult reports the outcome for one file.
type IngestResult struct {
	Name     string
	Document domain.Document
	Err      error
}

// Validate checks that the file is a non-empty UTF-8 text file.
func (f FileInput) Validate() error {
	if !isTextFile(f.Name, f.ContentType) {
		return fmt.Errorf("%s: %w", f.Name, domain.ErrUnsupportedFileType)
	}
	if !utf8.Valid(f.Content) {
		return fmt.Errorf("%s is not valid UTF-8: %w", f.Name, domain.ErrUnsupportedFileType)
	}
	if strings.TrimSpace(string(f.Content)) == "" {
		return fmt.Errorf("%s: %w", f.Name, domain.ErrEmptyDocument)
	}
	return nil
}

func isTextFile(name, contentType string) bool {
	if strings.EqualFold(filepath.Ext(name), textExt) {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/plain"
}

// DisplayName strips the .txt extension from a file name.
func DisplayName(name string) string {
	base := filepath.Base(name)
	if strings.EqualFold(filepath.Ext(base), textExt) {
		return base[:len(base)-len(textExt)]
	}
	return base
}

// Ingest stores every file. A failing file is reported in its result and
// does not stop the batch.
func (s *Service) Ingest(ctx context.Context, files []FileInput) []IngestResult {
	results := make([]IngestResult, 0, len(files))
	for _, f := range files {
		doc, err := s.IngestFile(ctx, f)
		results = append(results, IngestResult{Name: f.Name, Document: doc, Err: err})
	}
	return results
}

// IngestFile validates, chunks, embeds and persists a single file.
func (s *Service) IngestFile(ctx context.Context, f FileInput) (domain.Document, error) {
	if err := f.Validate(); err != nil {
		s.metrics.FileIngested(false)
		return domain.Document{}, err
	}
	now := time.Now().UTC()
	doc := domain.Document{
		ID:           uuid.NewString(),
		DisplayName:  DisplayName(f.Name),
		OriginalName: filepath.Base(f.Name),
		ByteSize:     int64(len(f.Content)),
		Content:      string(f.Content),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	doc, err := s.index(ctx, doc)
	s.metrics.FileIngested(err == nil)
	if err != nil {
		s.logger.Warn("ingest failed", zap.String("file", f.Name), zap.Error(err))
		return domain.Document{}, err
	}
	s.logger.Info("ingested file",
		zap.String("file", doc.OriginalName),
		zap.String("document_id", doc.ID),
		zap.Int("chunks", doc.ChunkCount))
	return doc, nil
}

// index chunks and embeds doc, then writes the document, its chunks and their
// vectors. A document left without vectors by a late failure can be repaired
// with Reindex.
func (s *Service) index(ctx context.Context, doc domain.Document) (domain.Document, error) {
	chunks := s.chunker.ChunkDocument(doc)
	if len(chunks) == 0 {
		return domain.Document{}, fmt.Errorf("%s: %w", doc.OriginalName, domain.ErrEmptyDocument)
	}
	if err := s.embedChunks(ctx, chunks); err != nil {
		return domain.Document{}, err
	}
	doc.ChunkCount = len(chunks)
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return domain.Document{}, fmt.Errorf("creating document: %w", err)
	}
	if err := s.docs.SaveChunks(ctx, doc.ID, chunks); err != nil {
		return doc, fmt.Errorf("saving chunks: %w", err)
	}
	if err := s.vectors.Upsert(ctx, chunks); err != nil {
		return doc, fmt.Errorf("storing vectors: %w", err)
	}
	return doc, nil
}

func (s *Service) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := s.cache.Embed(ctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("embedding chunk %d: %w", chunks[i].Index, err)
			}
			chunks[i].Embedding = vec
			return nil
		})
	}
	return g.Wait()
}

// ExpandPaths resolves files, directories and doublestar patterns to a
// sorted list of file paths. Directories contribute their .txt files
// recursively.
func ExpandPaths(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, pattern := range patterns {
		info, err := os.Stat(pattern)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.Glob(os.DirFS(pattern), "**/*.txt")
			if err != nil {
				return nil, fmt.Errorf("walking %s: %w", pattern, err)
			}
			for _, m := range matches {
				add(filepath.Join(pattern, filepath.FromSlash(m)))
			}
		case err == nil:
			add(pattern)
		default:
			matches, gerr := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if gerr != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", pattern, gerr)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("%s: %w", pattern, fs.ErrNotExist)
			}
			for _, m := range matches {
				add(m)
			}
		}
	}
	return out, nil
}

// ReadFile loads a file from disk as an ingestion input.
func ReadFile(path string) (FileInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileInput{}, err
	}
	return FileInput{Name: filepath.Base(path), Content: data}, nil
}

// IngestPaths expands patterns and ingests every resulting file.
func (s *Service) IngestPaths(ctx context.Context, patterns []string) ([]IngestResult, error) {
	paths, err := ExpandPaths(patterns)
	if err != nil {
		return nil, err
	}
	results := make([]IngestResult, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		f, err := ReadFile(p)
		if err != nil {
			results = append(results, IngestResult{Name: p, Err: err})
			continue
		}
		doc, err := s.IngestFile(ctx, f)
		results = append(results, IngestResult{Name: p, Document: doc, Err: err})
	}
	return results, nil
}

// Reindex re-chunks and re-embeds a stored document, replacing its chunks and
// vectors in place. It keeps the document ID, content and creation time;
// nothing is removed until the new chunks are embedded, so a failed reindex
// leaves the document listed and can be retried.
func (s *Service) Reindex(ctx context.Context, id string) (domain.Document, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	chunks := s.chunker.ChunkDocument(doc)
	if len(chunks) == 0 {
		return doc, fmt.Errorf("reindexing %s: %w", id, domain.ErrEmptyDocument)
	}
	if err := s.embedChunks(ctx, chunks); err != nil {
		return doc, fmt.Errorf("reindexing %s: %w", id, err)
	}
	if err := s.docs.SaveChunks(ctx, id, chunks); err != nil {
		return doc, fmt.Errorf("reindexing %s: saving chunks: %w", id, err)
	}
	if !s.sharedStore {
		if err := s.vectors.DeleteDocument(ctx, id); err != nil {
			return doc, fmt.Errorf("reindexing %s: clearing vectors: %w", id, err)
		}
	}
	if err := s.vectors.Upsert(ctx, chunks); err != nil {
		return doc, fmt.Errorf("reindexing %s: storing vectors: %w", id, err)
	}
	if doc, err = s.docs.GetDocument(ctx, id); err != nil {
		return domain.Document{}, err
	}
	s.logger.Info("reindexed document", zap.String("document_id", id), zap.Int("chunks", doc.ChunkCount))
	return doc, nil
}

// ReindexAll reindexes every stored document, collecting failures.
func (s *Service) ReindexAll(ctx context.Context) ([]IngestResult, error) {
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]IngestResult, 0, len(docs))
	var errs []error
	for _, d := range docs {
		doc, err := s.Reindex(ctx, d.ID)
		results = append(results, IngestResult{Name: d.OriginalName, Document: doc, Err: err})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}
