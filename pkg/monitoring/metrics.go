// Package monitoring holds the Prometheus metrics and health checks of greenroute.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "greenroute"
)

var (
	// HTTP API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_http_requests_total",
			Help: "Total number of REST API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenroute_http_request_duration_seconds",
			Help:    "REST API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"method", "route"},
	)

	// MCP tool metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_mcp_requests_total",
			Help: "Total number of MCP tool calls processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenroute_mcp_request_duration_seconds",
			Help:    "MCP tool call duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// Provider metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_provider_requests_total",
			Help: "Total number of geocoding and directions provider requests",
		},
		[]string{"service", "operation", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenroute_provider_request_duration_seconds",
			Help:    "Provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_rate_limit_exceeded_total",
			Help: "Total number of inbound requests rejected by the rate limiter",
		},
		[]string{"surface"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenroute_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting on the outbound provider limiter",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache", "reason"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greenroute_cache_size",
			Help: "Current number of entries in cache",
		},
		[]string{"cache"},
	)

	// Domain metrics
	MetricsCalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_metrics_calculations_total",
			Help: "Route metrics computed, by transport mode and environmental rating",
		},
		[]string{"mode", "rating"},
	)

	CarbonEmissions = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenroute_carbon_emissions_kg",
			Help:    "Carbon emissions of computed routes in kilograms",
			Buckets: []float64{0, 0.1, 0.5, 1, 2, 5, 10, 25, 50},
		},
		[]string{"mode"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greenroute_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenroute_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greenroute_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greenroute_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greenroute_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, httpStatusClass(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func httpStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordProviderRequest(service, operation string, duration time.Duration, success bool) {
	ProviderRequestsTotal.WithLabelValues(service, operation, statusLabel(success)).Inc()
	ProviderRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

func RecordCacheEviction(cache, reason string) {
	CacheEvictions.WithLabelValues(cache, reason).Inc()
}

func UpdateCacheSize(cache string, size int) {
	CacheSize.WithLabelValues(cache).Set(float64(size))
}

func RecordMetricsCalculation(mode, rating string, carbonKg float64) {
	MetricsCalculations.WithLabelValues(mode, rating).Inc()
	CarbonEmissions.WithLabelValues(mode).Observe(carbonKg)
}

func RecordRateLimitExceeded(surface string) {
	RateLimitExceeded.WithLabelValues(surface).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport string, count int) {
	ActiveConnections.WithLabelValues(transport).Set(float64(count))
}
