// Package metrics holds the Prometheus collectors for the retrieval pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
//
// Metrics:
//   - docrag_embedding_cache_hits_total
//   - docrag_embedding_cache_misses_total
//   - docrag_embedding_fallbacks_total
//   - docrag_search_duration_seconds
//   - docrag_search_results
//   - docrag_ingested_files_total{status}
type Metrics struct {
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	FallbacksTotal   prometheus.Counter
	SearchDuration   prometheus.Histogram
	SearchResults    prometheus.Histogram
	IngestedFiles    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "docrag_embedding_cache_hits_total",
			Help: "Embedding lookups answered from the cache",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "docrag_embedding_cache_misses_total",
			Help: "Embedding lookups that called the embedding provider",
		}),
		FallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "docrag_embedding_fallbacks_total",
			Help: "Embedding provider failures replaced by a deterministic fallback vector",
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docrag_search_duration_seconds",
			Help:    "Search latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docrag_search_results",
			Help:    "Number of snippets returned per search",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}),
		IngestedFiles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docrag_ingested_files_total",
			Help: "Files processed by ingestion, by outcome",
		}, []string{"status"}),
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) Fallback() {
	if m != nil {
		m.FallbacksTotal.Inc()
	}
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(d time.Duration, snippets int) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
	m.SearchResults.Observe(float64(snippets))
}

// FileIngested counts one ingested file as "ok" or "failed".
func (m *Metrics) FileIngested(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.IngestedFiles.WithLabelValues(status).Inc()
}
