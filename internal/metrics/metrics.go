package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Model call kinds
const (
	KindEmbed  = "embed"
	KindRerank = "rerank"
)

// Metrics holds the Prometheus collectors for the engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	searches          *prometheus.CounterVec
	searchDuration    prometheus.Histogram
	modelDuration     *prometheus.HistogramVec
	cacheSimilarity   prometheus.Histogram
	queryCacheEntries prometheus.Gauge
	ingests           *prometheus.CounterVec
	documentsIndexed  prometheus.Gauge
}

// New creates a Metrics instance with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semcache",
			Name:      "searches_total",
			Help:      "Searches by outcome",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semcache",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency",
			Buckets:   prometheus.DefBuckets,
		}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semcache",
			Name:      "model_call_duration_seconds",
			Help:      "Embedding and rerank call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		cacheSimilarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semcache",
			Name:      "query_cache_best_similarity",
			Help:      "Best cosine similarity found in the query cache per search",
			Buckets:   []float64{0.5, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99, 1},
		}),
		queryCacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "semcache",
			Name:      "query_cache_entries",
			Help:      "Entries in the semantic query cache",
		}),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semcache",
			Name:      "ingests_total",
			Help:      "Ingest runs by outcome",
		}, []string{"outcome"}),
		documentsIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "semcache",
			Name:      "documents_indexed",
			Help:      "Chunks in the loaded corpus snapshot",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searches,
		m.searchDuration,
		m.modelDuration,
		m.cacheSimilarity,
		m.queryCacheEntries,
		m.ingests,
		m.documentsIndexed,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch counts a finished search and its latency
func (m *Metrics) ObserveSearch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(d.Seconds())
}

// ObserveModel records the latency of one embedding or rerank call
func (m *Metrics) ObserveModel(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.modelDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveCacheSimilarity records the best similarity of a query cache lookup
func (m *Metrics) ObserveCacheSimilarity(sim float64) {
	if m == nil {
		return
	}
	m.cacheSimilarity.Observe(sim)
}

// SetQueryCacheEntries updates the query cache size gauge
func (m *Metrics) SetQueryCacheEntries(n int) {
	if m == nil {
		return
	}
	m.queryCacheEntries.Set(float64(n))
}

// ObserveIngest counts an ingest run
func (m *Metrics) ObserveIngest(outcome string) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(outcome).Inc()
}

// SetDocumentsIndexed updates the corpus size gauge
func (m *Metrics) SetDocumentsIndexed(n int) {
	if m == nil {
		return
	}
	m.documentsIndexed.Set(float64(n))
}
