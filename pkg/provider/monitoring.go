package provider

import "time"

// MonitoringHooks observe outbound provider traffic. Any field may be nil.
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after the request completes
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called after waiting on the outbound limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when a request fails before producing a response
	OnError func(service, errorType string)
}
