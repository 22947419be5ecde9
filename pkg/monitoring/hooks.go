package monitoring

import (
	"time"

	"github.com/NERVsystems/greenroute/pkg/cache"
	"github.com/NERVsystems/greenroute/pkg/provider"
)

// CacheHooks reports ResponseCache activity to Prometheus.
func CacheHooks() cache.Hooks {
	return cache.Hooks{
		OnHit:   RecordCacheHit,
		OnMiss:  RecordCacheMiss,
		OnEvict: RecordCacheEviction,
		OnSize:  UpdateCacheSize,
	}
}

// ProviderHooks reports outbound provider traffic to Prometheus.
func ProviderHooks() provider.MonitoringHooks {
	return provider.MonitoringHooks{
		OnResponse: func(service, operation string, d time.Duration, success bool) {
			RecordProviderRequest(service, operation, d, success)
		},
		OnRateLimit: RecordRateLimitWait,
		OnError: func(service, errorType string) {
			RecordError(service, errorType)
		},
	}
}
