// Package metrics provides Prometheus metrics for a remsh session.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Backend subprocess metrics
	backendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remsh_backend_calls_total",
			Help: "Total number of backend CLI invocations",
		},
		[]string{"verb", "status"},
	)

	backendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remsh_backend_call_duration_seconds",
			Help:    "Backend CLI invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	backendRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remsh_backend_retries_total",
			Help: "Total number of retried backend invocations",
		},
		[]string{"verb"},
	)

	// Directory cache metrics
	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remsh_dircache_hits_total",
			Help: "Directory listings served from the cache",
		},
	)

	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remsh_dircache_misses_total",
			Help: "Directory listings fetched from the backend",
		},
	)

	cacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remsh_dircache_invalidations_total",
			Help: "Directory cache entries removed by invalidation",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remsh_dircache_entries",
			Help: "Number of directories currently cached",
		},
	)

	// Command metrics
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remsh_commands_total",
			Help: "Total number of shell commands executed",
		},
		[]string{"command", "status"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remsh_command_duration_seconds",
			Help:    "Shell command duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Fetch-run pipeline metrics
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remsh_pipeline_runs_total",
			Help: "Total number of fetch/run pipeline executions",
		},
		[]string{"mode", "status"},
	)

	// Reference backend storage metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remsh_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remsh_storage_operations_total",
			Help: "Total storage operations",
		},
		[]string{"backend", "operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordBackendCall records one backend CLI invocation.
func RecordBackendCall(verb string, duration time.Duration, success bool) {
	backendCallsTotal.WithLabelValues(verb, status(success)).Inc()
	backendCallDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

// RecordBackendRetry records a retried backend invocation.
func RecordBackendRetry(verb string) {
	backendRetriesTotal.WithLabelValues(verb).Inc()
}

// RecordCacheHit records a directory listing served from the cache.
func RecordCacheHit() {
	cacheHitsTotal.Inc()
}

// RecordCacheMiss records a directory listing fetched from the backend.
func RecordCacheMiss() {
	cacheMissesTotal.Inc()
}

// RecordCacheInvalidation records the removal of a cached directory.
func RecordCacheInvalidation() {
	cacheInvalidationsTotal.Inc()
}

// SetCacheEntries sets the number of cached directories.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordCommand records one shell command.
func RecordCommand(name string, duration time.Duration, success bool) {
	commandsTotal.WithLabelValues(name, status(success)).Inc()
	commandDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordPipelineRun records one fetch/run pipeline execution.
func RecordPipelineRun(mode string, success bool) {
	pipelineRunsTotal.WithLabelValues(mode, status(success)).Inc()
}

// RecordStorageOperation records a reference backend storage operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	storageOperationsTotal.WithLabelValues(backend, operation, status(success)).Inc()
}
