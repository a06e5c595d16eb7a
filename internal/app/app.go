// Package app assembles the retrieval pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/embedding/hashing"
	embedopenai "docrag/internal/embedding/openai"
	"docrag/internal/metrics"
	"docrag/internal/normalize"
	"docrag/internal/service"
	"docrag/internal/store/memory"
	"docrag/internal/store/sqlite"
	"docrag/internal/summarizer"
	llmopenai "docrag/internal/summarizer/openai"
	"docrag/internal/vectorstore/chromem"
	vectormem "docrag/internal/vectorstore/memory"
	"docrag/internal/vectorstore/qdrant"
)

// App holds the wired components.
type App struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Service  *service.Service

	docs    domain.DocumentStore
	vectors domain.VectorStore
}

// New builds every component named by cfg. Close releases them.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &App{Config: cfg, Logger: logger, Registry: reg, Metrics: m}

	embedder, err := newEmbedder(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}
	cache, err := embedding.NewCache(embedder,
		embedding.WithCapacity(cfg.Embedder.CacheSize),
		embedding.WithLogger(logger.Named("embedding")),
		embedding.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	var sqliteStore *sqlite.Store
	switch cfg.Storage.Type {
	case "sqlite":
		sqliteStore, err = sqlite.Open(cfg.Storage.Path, logger.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		a.docs = sqliteStore
	default:
		a.docs = memory.New()
	}

	a.vectors, err = newVectorStore(cfg.VectorStore, sqliteStore, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.vectors.Init(ctx, cache.Dimension()); err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing %s vector store: %w", cfg.VectorStore.Type, err)
	}

	var llm domain.LLM
	if cfg.LLM.Type == "openai" {
		llm = llmopenai.New(llmopenai.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  os.Getenv(cfg.LLM.APIKeyEnv),
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		})
	}

	norm := normalize.New(normalize.WithDiacriticStripping(cfg.Normalizer.StripDiacritics))
	opts := service.DefaultOptions()
	opts.DefaultLimit = cfg.Search.DefaultLimit
	opts.MatchThreshold = cfg.VectorStore.MatchThreshold
	opts.ContextSize = cfg.Search.ContextSize
	opts.FilterStopwords = cfg.Search.FilterStopwords

	a.Service, err = service.New(service.Deps{
		Documents:  a.docs,
		Vectors:    a.vectors,
		Embeddings: cache,
		Chunker: chunker.New(
			chunker.WithChunkSize(cfg.Chunker.ChunkSize),
			chunker.WithOverlap(cfg.Chunker.Overlap),
			chunker.WithNormalizer(norm),
		),
		Synthesizer: summarizer.NewSynthesizer(llm, logger.Named("answer")),
		Logger:      logger.Named("service"),
		Metrics:     m,
	}, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("pipeline ready",
		zap.String("embedder", embedder.Name()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("storage", cfg.Storage.Type),
		zap.String("llm", cfg.LLM.Type))
	return a, nil
}

// SearchOptions returns the configured per-request defaults.
func (a *App) SearchOptions() service.SearchOptions {
	return service.SearchOptions{
		Limit:  a.Config.Search.DefaultLimit,
		Strict: a.Config.Search.Strict,
		UseLLM: a.Config.Search.UseLLM,
	}
}

// Close closes the stores.
func (a *App) Close() error {
	var errs []error
	if a.vectors != nil {
		errs = append(errs, a.vectors.Close())
	}
	if a.docs != nil {
		errs = append(errs, a.docs.Close())
	}
	return errors.Join(errs...)
}

func newEmbedder(cfg config.EmbedderConfig, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Type {
	case "openai":
		return embedopenai.NewClient(embedopenai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Style:             cfg.OpenAI.Style,
			Dimension:         cfg.Dimension,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
			MaxRetries:        cfg.OpenAI.MaxRetries,
		}, logger.Named("embedder"))
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
}

func newVectorStore(cfg config.VectorStoreConfig, sqliteStore *sqlite.Store, logger *zap.Logger) (domain.VectorStore, error) {
	switch cfg.Type {
	case "sqlite":
		if sqliteStore == nil {
			return nil, errors.New("sqlite vector store requires sqlite storage")
		}
		return sqliteStore, nil
	case "memory":
		return vectormem.NewStorage(), nil
	case "chromem":
		return chromem.New(chromem.Config{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			Collection: cfg.Chromem.Collection,
		}, logger.Named("chromem"))
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
		}, logger.Named("qdrant"))
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}
