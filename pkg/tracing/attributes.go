package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for reconciliation runs
const (
	// Run attributes
	AttrArea        = "mevoosm.area"
	AttrStations    = "mevoosm.stations"
	AttrCandidates  = "mevoosm.candidates"
	AttrMismatches  = "mevoosm.mismatches"
	AttrOutputPath  = "mevoosm.output_path"
	AttrEmptySource = "mevoosm.empty_source"

	// External service attributes
	AttrServiceName      = "osm.service.name"
	AttrServiceOperation = "osm.service.operation"
	AttrServiceURL       = "osm.service.url"
	AttrServiceStatus    = "osm.service.status"

	// Cache attributes
	AttrCacheType = "osm.cache.type"
	AttrCacheHit  = "osm.cache.hit"
	AttrCacheKey  = "osm.cache.key"

	// Rate limiting attributes
	AttrRateLimitService = "osm.ratelimit.service"
	AttrRateLimitWaitMs  = "osm.ratelimit.wait_ms"

	// HTTP attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// Service names
const (
	ServiceGBFS        = "gbfs"
	ServiceOverpass    = "overpass"
	ServiceHealthcheck = "healthcheck"
)

// Cache types
const (
	CacheTypeFeed     = "feed"
	CacheTypeOverpass = "overpass"
)

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.String(AttrServiceURL, url),
		attribute.Int(AttrServiceStatus, status),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}
