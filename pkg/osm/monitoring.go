package osm

import (
	"time"
)

// MonitoringHooks defines hooks for monitoring HTTP requests
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called after waiting on a rate limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)

	// OnCacheHit and OnCacheMiss are called by sources that cache responses
	OnCacheHit  func(cacheType string)
	OnCacheMiss func(cacheType string)
}

// CacheHit reports a cache hit
func (h *MonitoringHooks) CacheHit(cacheType string) {
	if h != nil && h.OnCacheHit != nil {
		h.OnCacheHit(cacheType)
	}
}

// CacheMiss reports a cache miss
func (h *MonitoringHooks) CacheMiss(cacheType string) {
	if h != nil && h.OnCacheMiss != nil {
		h.OnCacheMiss(cacheType)
	}
}

func (h *MonitoringHooks) request(service, operation string) {
	if h != nil && h.OnRequest != nil {
		h.OnRequest(service, operation)
	}
}

func (h *MonitoringHooks) response(service, operation string, duration time.Duration, success bool) {
	if h != nil && h.OnResponse != nil {
		h.OnResponse(service, operation, duration, success)
	}
}

func (h *MonitoringHooks) rateLimit(service string, waitTime time.Duration) {
	// Only track significant waits
	if waitTime < 100*time.Millisecond {
		return
	}
	if h != nil && h.OnRateLimit != nil {
		h.OnRateLimit(service, waitTime)
	}
}

func (h *MonitoringHooks) error(service, errorType string) {
	if h != nil && h.OnError != nil {
		h.OnError(service, errorType)
	}
}
