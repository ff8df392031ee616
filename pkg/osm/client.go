package osm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/mevoosm/pkg/tracing"
)

const (
	// API endpoints
	OverpassBaseURL = "https://overpass-api.de/api/interpreter"
	MevoFeedURL     = "https://gbfs.urbansharing.com/rowermevo.pl/station_information.json"

	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "mevoosm/0.1.0"

	// DefaultTimeout bounds a single HTTP exchange
	DefaultTimeout = 30 * time.Second
)

// TransportOptions configures a rate-limited, monitored transport
type TransportOptions struct {
	// Service is the logical service name used in metrics and traces
	Service string
	// RPS and Burst configure the token bucket; RPS <= 0 disables limiting
	RPS   float64
	Burst int
	// UserAgent is set on every outgoing request
	UserAgent string
	// Hooks receive request lifecycle callbacks; may be nil
	Hooks *MonitoringHooks
	// Base is the underlying round tripper; defaults to a pooled transport
	Base http.RoundTripper
}

// Transport is an http.RoundTripper that applies rate limiting, a User-Agent
// and monitoring hooks to every request.
type Transport struct {
	service   string
	limiter   *rate.Limiter
	userAgent string
	hooks     *MonitoringHooks
	base      http.RoundTripper
}

// NewTransport creates a transport from the given options
func NewTransport(opts TransportOptions) *Transport {
	base := opts.Base
	if base == nil {
		base = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return &Transport{
		service:   opts.Service,
		limiter:   limiter,
		userAgent: ua,
		hooks:     opts.Hooks,
		base:      base,
	}
}

// NewHTTPClient returns an HTTP client backed by a Transport
func NewHTTPClient(opts TransportOptions, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: NewTransport(opts),
		Timeout:   timeout,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	operation := req.Method + " " + req.URL.Path

	// RoundTrip must not modify the caller's request
	req = req.Clone(ctx)
	req.Header.Set("User-Agent", t.userAgent)

	t.hooks.request(t.service, operation)

	if err := t.waitForRateLimit(ctx); err != nil {
		t.hooks.error(t.service, "rate_limit_wait_error")
		return nil, err
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	success := err == nil && resp != nil && resp.StatusCode < 400
	t.hooks.response(t.service, operation, duration, success)
	if err != nil {
		t.hooks.error(t.service, "request_error")
	}

	return resp, err
}

// waitForRateLimit blocks until the limiter grants a token
func (t *Transport) waitForRateLimit(ctx context.Context) error {
	if t.limiter == nil || t.limiter.Allow() {
		return nil
	}

	startWait := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(
			attribute.String(tracing.AttrRateLimitService, t.service),
		),
	)

	err := t.limiter.Wait(ctx)

	waitDuration := time.Since(startWait)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, t.service),
		attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
	)
	t.hooks.rateLimit(t.service, waitDuration)

	if err != nil {
		return fmt.Errorf("waiting for %s rate limit: %w", t.service, err)
	}
	return nil
}
