// Package service orchestrates ingestion and retrieval: it chunks documents,
// embeds chunks through the cache, persists them, and answers searches.
package service

import (
	"errors"

	"go.uber.org/zap"

	"docrag/internal/chunker"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/metrics"
	"docrag/internal/normalize"
	"docrag/internal/snippet"
	"docrag/internal/summarizer"
	"docrag/internal/vectorstore"
)

const (
	DefaultLimit       = 8
	DefaultConcurrency = 4
	// answerSnippets is how many top snippets feed the answer.
	answerSnippets = 3
)

// Deps are the collaborators of a Service.
type Deps struct {
	Documents   domain.DocumentStore
	Vectors     domain.VectorStore
	Embeddings  *embedding.Cache
	Chunker     *chunker.Chunker
	Synthesizer *summarizer.Synthesizer
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Options tune search and ingestion.
type Options struct {
	DefaultLimit    int
	MatchThreshold  float32
	ContextSize     int
	FilterStopwords bool
	Stopwords       normalize.Set
	// Concurrency bounds parallel chunk embedding during ingestion.
	Concurrency int
}

// DefaultOptions returns the stock search settings.
func DefaultOptions() Options {
	return Options{
		DefaultLimit:   DefaultLimit,
		MatchThreshold: vectorstore.DefaultMatchThreshold,
		ContextSize:    snippet.DefaultContextSize,
		Stopwords:      normalize.SinhalaStopwords,
		Concurrency:    DefaultConcurrency,
	}
}

// SearchOptions are per-request search settings.
type SearchOptions struct {
	Limit  int  `json:"limit"`
	Strict bool `json:"strict"`
	UseLLM bool `json:"use_llm"`
}

type Service struct {
	docs    domain.DocumentStore
	vectors domain.VectorStore
	cache   *embedding.Cache
	chunker *chunker.Chunker
	synth   *summarizer.Synthesizer
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    Options
	// sharedStore is set when one store keeps both documents and vectors,
	// so chunk replacement already replaces the vectors.
	sharedStore bool
}

func New(deps Deps, opts Options) (*Service, error) {
	if deps.Documents == nil || deps.Vectors == nil || deps.Embeddings == nil {
		return nil, errors.New("service requires a document store, a vector store and an embedding cache")
	}
	if deps.Chunker == nil {
		deps.Chunker = chunker.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = summarizer.NewSynthesizer(nil, deps.Logger)
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.ContextSize <= 0 {
		opts.ContextSize = snippet.DefaultContextSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Stopwords == nil {
		opts.Stopwords = normalize.SinhalaStopwords
	}
	return &Service{
		sharedStore: any(deps.Vectors) == any(deps.Documents),
		docs:        deps.Documents,
		vectors:     deps.Vectors,
		cache:       deps.Embeddings,
		chunker:     deps.Chunker,
		synth:       deps.Synthesizer,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		opts:        opts,
	}, nil
}
