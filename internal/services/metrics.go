package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector owns the application's Prometheus instruments.
type MetricsCollector struct {
	httpRequests          *prometheus.CounterVec
	httpDuration          *prometheus.HistogramVec
	recommendationLatency prometheus.Histogram
	recommendationResults *prometheus.CounterVec
	cacheRequests         *prometheus.CounterVec
	ratingsTotal          *prometheus.CounterVec
	importedRecords       *prometheus.CounterVec
	graphRequests         *prometheus.CounterVec
	healthCheckStatus     *prometheus.GaugeVec
	lastHealthCheck       *prometheus.GaugeVec
	systemInfo            *prometheus.GaugeVec
}

// NewMetricsCollector registers every instrument with reg.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)

	return &MetricsCollector{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		recommendationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommendation_latency_seconds",
			Help:    "Time to compute a recommendation response in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		}),

		recommendationResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Recommendation requests by outcome",
		}, []string{"outcome"}),

		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by result",
		}, []string{"cache", "result"}),

		ratingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratings_total",
			Help: "Rating changes by operation",
		}, []string{"operation"}),

		importedRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_import_records_total",
			Help: "Catalog records processed by the importer",
		}, []string{"result"}),

		graphRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graph_requests_total",
			Help: "Calls into the variety graph by result",
		}, []string{"operation", "result"}),

		healthCheckStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_status",
			Help: "Health check status (1 = healthy, 0 = unhealthy)",
		}, []string{"service"}),

		lastHealthCheck: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_timestamp",
			Help: "Timestamp of last health check",
		}, []string{"service"}),

		systemInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "system_info",
			Help: "System information metrics",
		}, []string{"metric_type"}),
	}
}

// RecordHTTPRequest records one served request.
func (mc *MetricsCollector) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	mc.httpRequests.WithLabelValues(method, endpoint, status).Inc()
	mc.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRecommendation records the outcome and latency of a recommendation
// request. outcome is one of "computed", "cached", "empty" or "error".
func (mc *MetricsCollector) RecordRecommendation(outcome string, duration time.Duration) {
	mc.recommendationResults.WithLabelValues(outcome).Inc()
	mc.recommendationLatency.Observe(duration.Seconds())
}

func (mc *MetricsCollector) RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	mc.cacheRequests.WithLabelValues(cache, result).Inc()
}

func (mc *MetricsCollector) RecordRating(operation string) {
	mc.ratingsTotal.WithLabelValues(operation).Inc()
}

func (mc *MetricsCollector) RecordImportedRecords(imported, failed int) {
	mc.importedRecords.WithLabelValues("imported").Add(float64(imported))
	mc.importedRecords.WithLabelValues("failed").Add(float64(failed))
}

func (mc *MetricsCollector) RecordGraphRequest(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	mc.graphRequests.WithLabelValues(operation, result).Inc()
}

// UpdateHealthMetrics updates health check metrics
func (mc *MetricsCollector) UpdateHealthMetrics(serviceName string, healthy bool) {
	status := 0.0
	if healthy {
		status = 1.0
	}
	mc.healthCheckStatus.WithLabelValues(serviceName).Set(status)
	mc.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}

func (mc *MetricsCollector) UpdateSystemInfo(metric string, value float64) {
	mc.systemInfo.WithLabelValues(metric).Set(value)
}
