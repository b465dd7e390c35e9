package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Generation metrics
	generationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwriter_generation_requests_total",
		Help: "Total number of generation requests by outcome",
	}, []string{"outcome"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "screenwriter_provider_request_duration_seconds",
		Help:    "Duration of provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "status"})

	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwriter_provider_requests_total",
		Help: "Total number of provider calls",
	}, []string{"provider", "status"})

	providerFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwriter_provider_fallbacks_total",
		Help: "Total number of fallbacks from one provider to another",
	}, []string{"from", "to"})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screenwriter_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screenwriter_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screenwriter_rate_limit_exceeded_total",
		Help: "Total number of rejected admissions",
	})

	// Generation log metrics
	logWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screenwriter_generation_log_failures_total",
		Help: "Total number of generation log entries that could not be persisted",
	})

	// Storage metrics
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwriter_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})

	storageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "screenwriter_storage_operation_duration_seconds",
		Help:    "Duration of storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// Continuity metrics
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwriter_continuity_analyses_total",
		Help: "Total number of continuity analyses by resulting status",
	}, []string{"status"})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordGeneration records the outcome of a generation request
func (m *Metrics) RecordGeneration(outcome string) {
	generationRequests.WithLabelValues(outcome).Inc()
}

// RecordProviderRequest records a provider call
func (m *Metrics) RecordProviderRequest(provider, status string, duration time.Duration) {
	providerRequestDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	providerRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordFallback records a switch from one provider to another
func (m *Metrics) RecordFallback(from, to string) {
	providerFallbacks.WithLabelValues(from, to).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// RecordLogWriteFailure records a generation log entry that was dropped
func (m *Metrics) RecordLogWriteFailure() {
	logWriteFailures.Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string, duration time.Duration) {
	storageOperations.WithLabelValues(operation, status).Inc()
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAnalysis records a continuity analysis
func (m *Metrics) RecordAnalysis(status string) {
	analysesTotal.WithLabelValues(status).Inc()
}

// NewMetricsServer builds the metrics and health HTTP server
func NewMetricsServer(port int, path string) *http.Server {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
