package embedding

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"docrag/internal/domain"
	"docrag/internal/metrics"
)

// DefaultCacheSize bounds the number of cached vectors.
const DefaultCacheSize = 4096

// Cache memoizes an Embedder by exact input string.
//
// Provider failures are replaced by FallbackVector and the fallback is cached
// like any other vector. Concurrent misses on the same text share a single
// provider call. Callers are expected to normalize text before embedding.
type Cache struct {
	embedder domain.Embedder
	dim      int
	size     int
	entries  *lru.Cache[string, []float32]
	group    singleflight.Group
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCapacity sets the maximum number of cached vectors.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.size = n
		}
	}
}

func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache wraps embedder. The embedder must report a positive dimension.
func NewCache(embedder domain.Embedder, opts ...CacheOption) (*Cache, error) {
	c := &Cache{
		embedder: embedder,
		dim:      embedder.Dimension(),
		size:     DefaultCacheSize,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dim <= 0 {
		return nil, fmt.Errorf("%w: embedder %s reports dimension %d", domain.ErrDimensionMismatch, embedder.Name(), c.dim)
	}
	entries, err := lru.New[string, []float32](c.size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Dimension returns the dimension of every vector the cache hands out.
func (c *Cache) Dimension() int { return c.dim }

// Len returns the number of cached vectors.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops every cached vector.
func (c *Cache) Purge() { c.entries.Purge() }

// Embed returns the vector for text. The only errors are a cancelled ctx and
// domain.ErrDimensionMismatch when the provider returns a vector of the
// wrong size; neither is cached.
//
// The provider call is shared by every caller waiting on the same text and
// runs detached from their cancellation: a caller whose ctx ends stops
// waiting, while the call completes and fills the cache for the others.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.entries.Get(text); ok {
		c.metrics.CacheHit()
		return slices.Clone(v), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	callCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(text, func() (any, error) {
		if v, ok := c.entries.Get(text); ok {
			c.metrics.CacheHit()
			return v, nil
		}
		c.metrics.CacheMiss()
		vec, err := c.embedder.Embed(callCtx, text)
		switch {
		case err != nil:
			c.logger.Warn("embedding provider failed, using fallback vector",
				zap.String("embedder", c.embedder.Name()),
				zap.Int("text_len", len(text)),
				zap.Error(err),
			)
			c.metrics.Fallback()
			vec = FallbackVector(text, c.dim)
		case len(vec) != c.dim:
			c.logger.Error("embedding provider returned a vector of the wrong dimension",
				zap.String("embedder", c.embedder.Name()),
				zap.Int("want", c.dim),
				zap.Int("got", len(vec)),
			)
			return nil, fmt.Errorf("%w: embedder %s returned %d values, want %d",
				domain.ErrDimensionMismatch, c.embedder.Name(), len(vec), c.dim)
		}
		c.entries.Add(text, vec)
		return vec, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]float32)), nil
	}
}
