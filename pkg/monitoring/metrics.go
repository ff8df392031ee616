package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/NERVsystems/mevoosm/pkg/osm"
)

const (
	// JobName groups pushed metrics on the Pushgateway
	JobName = "mevoosm"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mevoosm_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mevoosm_run_duration_seconds",
			Help:    "Reconciliation run duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	Stations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mevoosm_stations",
			Help: "Number of stations in the operator feed",
		},
	)

	Candidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mevoosm_candidates",
			Help: "Number of OSM elements eligible for matching",
		},
	)

	Mismatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mevoosm_mismatches",
			Help: "Number of stations farther than the threshold from OSM",
		},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mevoosm_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mevoosm_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mevoosm_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mevoosm_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mevoosm_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mevoosm_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mevoosm_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRun records the outcome of a run: success, empty or error
func RecordRun(status string, duration time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(duration.Seconds())
}

// RecordSummary records the size of the reconciled data set
func RecordSummary(stations, candidates, mismatches int) {
	Stations.Set(float64(stations))
	Candidates.Set(float64(candidates))
	Mismatches.Set(float64(mismatches))
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, statusLabel(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// SetSystemInfo publishes the build information
func SetSystemInfo(info map[string]string) {
	SystemInfo.WithLabelValues(
		info["version"],
		info["go_version"],
		info["commit"],
		info["build_date"],
	).Set(1)
}

// Hooks returns transport hooks that feed the metrics above and, when
// tracker is not nil, the per-service status of the run.
func Hooks(tracker *StatusTracker) *osm.MonitoringHooks {
	return &osm.MonitoringHooks{
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			RecordExternalServiceRequest(service, operation, duration, success)
			if tracker != nil {
				tracker.Observe(service, duration, success)
			}
		},
		OnRateLimit: RecordRateLimitWait,
		OnError: func(service, errorType string) {
			RecordError(service, errorType)
		},
		OnCacheHit:  RecordCacheHit,
		OnCacheMiss: RecordCacheMiss,
	}
}

// Push sends the default registry to a Pushgateway
func Push(ctx context.Context, url string) error {
	err := push.New(url, JobName).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
