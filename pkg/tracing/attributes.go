package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.result.size_bytes"

	// Provider attributes
	AttrProviderService   = "greenroute.provider.service"
	AttrProviderOperation = "greenroute.provider.operation"
	AttrProviderProfile   = "greenroute.provider.profile"

	// Cache attributes
	AttrCacheName = "greenroute.cache.name"
	AttrCacheHit  = "greenroute.cache.hit"

	// Metrics attributes
	AttrTransportMode = "greenroute.transport.mode"
	AttrDistanceKm    = "greenroute.distance_km"
	AttrRating        = "greenroute.rating"

	// Rate limiting attributes
	AttrRateLimitWaitMs = "greenroute.ratelimit.wait_ms"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrRequestID      = "http.request_id"

	// Error attributes
	AttrErrorCode = "error.code"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Provider services
const (
	ServiceGeocoding  = "geocoding"
	ServiceDirections = "directions"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
	}
}

// CacheAttributes returns attributes for cache lookups. Keys are omitted since
// they carry user queries.
func CacheAttributes(cacheName string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheName, cacheName),
		attribute.Bool(AttrCacheHit, hit),
	}
}

// MetricsAttributes returns attributes for a metrics computation.
func MetricsAttributes(mode string, distanceKm float64, rating string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTransportMode, mode),
		attribute.Float64(AttrDistanceKm, distanceKm),
		attribute.String(AttrRating, rating),
	}
}
