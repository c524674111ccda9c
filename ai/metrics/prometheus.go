// Package metrics exports vectorbase metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vectorbase"

// PrometheusExporter exports store, embedding and cache metrics.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Store metrics
	storeOps         *prometheus.CounterVec
	storeLatency     *prometheus.HistogramVec
	storeFindResults *prometheus.HistogramVec

	// Embedding metrics
	embeddingRequests *prometheus.CounterVec
	embeddingLatency  *prometheus.HistogramVec
	embeddingTexts    *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	e.storeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_latency_seconds",
			Help:      "Store operation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"backend", "operation"},
	)

	e.storeFindResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "find_results",
			Help:      "Number of entries returned by a find",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
		[]string{"backend"},
	)

	e.embeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	e.embeddingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "latency_seconds",
			Help:      "Embedding request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model"},
	)

	e.embeddingTexts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "texts_total",
			Help:      "Total number of texts sent for embedding",
		},
		[]string{"model"},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	registry.MustRegister(
		e.storeOps,
		e.storeLatency,
		e.storeFindResults,
		e.embeddingRequests,
		e.embeddingLatency,
		e.embeddingTexts,
		e.cacheHits,
		e.cacheMisses,
	)

	return e
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordStoreOperation records one store call.
func (e *PrometheusExporter) RecordStoreOperation(backend, operation string, latency time.Duration, success bool) {
	e.storeOps.WithLabelValues(backend, operation, status(success)).Inc()
	e.storeLatency.WithLabelValues(backend, operation).Observe(latency.Seconds())
}

// RecordFindResults records how many entries a find returned.
func (e *PrometheusExporter) RecordFindResults(backend string, count int) {
	e.storeFindResults.WithLabelValues(backend).Observe(float64(count))
}

// RecordEmbeddingRequest records one call to the embedding API.
func (e *PrometheusExporter) RecordEmbeddingRequest(model string, texts int, latency time.Duration, success bool) {
	e.embeddingRequests.WithLabelValues(model, status(success)).Inc()
	e.embeddingLatency.WithLabelValues(model).Observe(latency.Seconds())
	e.embeddingTexts.WithLabelValues(model).Add(float64(texts))
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
