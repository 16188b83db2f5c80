// Package metrics provides Prometheus metrics for artindexd
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for artindexd
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Page store metrics
	PagerOperationsTotal   *prometheus.CounterVec
	PagerOperationDuration *prometheus.HistogramVec
	PagerSizeBytes         prometheus.Gauge
	PagerFreePagesTotal    prometheus.Gauge
	PagerCacheHitsTotal    prometheus.Counter
	PagerCacheMissesTotal  prometheus.Counter

	// Index/scan metrics
	IndexesTotal        prometheus.Gauge
	IndexBuildsTotal     prometheus.Counter
	IndexBuildDuration   prometheus.Histogram
	ScanRequestsTotal    prometheus.Counter
	ScanRowsTotal        prometheus.Counter
	GateCrossingsTotal   prometheus.Counter
	ScanTruncatedTotal   prometheus.Counter

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artindexd_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artindexd_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artindexd_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Page store metrics
	m.PagerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artindexd_pager_operations_total",
			Help: "Total number of page store operations",
		},
		[]string{"operation", "status"},
	)

	m.PagerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artindexd_pager_operation_duration_seconds",
			Help:    "Duration of page store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.PagerSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artindexd_pager_size_bytes",
			Help: "Current page store file size in bytes",
		},
	)

	m.PagerFreePagesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artindexd_pager_free_pages_total",
			Help: "Pages currently parked on the free list, available for reuse",
		},
	)

	m.PagerCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artindexd_pager_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	m.PagerCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artindexd_pager_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// Index/scan metrics
	m.IndexesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artindexd_indexes_total",
			Help: "Total number of registered indexes",
		},
	)

	m.IndexBuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artindexd_index_builds_total",
			Help: "Total number of index (re)builds",
		},
	)

	m.IndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artindexd_index_build_duration_seconds",
			Help:    "Duration of index builds in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.ScanRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artindexd_scan_requests_total",
			Help: "Total number of range scan requests",
		},
	)

	m.ScanRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artindexd_scan_rows_total",
			Help: "Total number of row ids yielded by range scans",
		},
	)

	m.GateCrossingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artindexd_gate_crossings_total",
			Help: "Total number of gate-subtree crossings during range scans",
		},
	)

	m.ScanTruncatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artindexd_scan_truncated_total",
			Help: "Total number of scans that stopped at max_count before exhausting the index",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artindexd_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime periodically updates the server uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordPagerOperation records a page store operation
func (m *Metrics) RecordPagerOperation(operation string, status string, duration time.Duration) {
	m.PagerOperationsTotal.WithLabelValues(operation, status).Inc()
	m.PagerOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordScan records a completed range scan.
func (m *Metrics) RecordScan(rowCount int, gateCrossings int, truncated bool) {
	m.ScanRequestsTotal.Inc()
	m.ScanRowsTotal.Add(float64(rowCount))
	m.GateCrossingsTotal.Add(float64(gateCrossings))
	if truncated {
		m.ScanTruncatedTotal.Inc()
	}
}

// RecordIndexBuild records a completed index build.
func (m *Metrics) RecordIndexBuild(duration time.Duration, indexCount int) {
	m.IndexBuildsTotal.Inc()
	m.IndexBuildDuration.Observe(duration.Seconds())
	m.IndexesTotal.Set(float64(indexCount))
}

// UpdatePagerStats updates page store statistics: file size and how
// many pages are sitting on the free list waiting for reuse.
func (m *Metrics) UpdatePagerStats(sizeBytes int64, freePages int) {
	m.PagerSizeBytes.Set(float64(sizeBytes))
	m.PagerFreePagesTotal.Set(float64(freePages))
}
