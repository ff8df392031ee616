// Package healthping reports run progress to a healthchecks-style endpoint.
// Pinging is optional and fails gracefully: a run never fails because the
// endpoint is unavailable.
package healthping

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/NERVsystems/mevoosm/pkg/osm"
	"github.com/NERVsystems/mevoosm/pkg/tracing"
)

// DefaultTimeout is the default timeout for ping requests.
const DefaultTimeout = 5 * time.Second

// maxBodyBytes caps the failure reason sent with a fail ping
const maxBodyBytes = 10000

// Config holds the configuration for health pings.
type Config struct {
	// URL is the check URL, e.g. "https://hc-ping.com/<uuid>".
	// Pinging is disabled when empty.
	URL string

	// Timeout is the HTTP request timeout (default: 5s)
	Timeout time.Duration

	// Hooks receive request lifecycle callbacks; may be nil
	Hooks *osm.MonitoringHooks
}

// Client sends start, success and fail signals.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient creates a new ping client.
// If cfg.URL is empty, the client is a no-op.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.URL = strings.TrimSuffix(cfg.URL, "/")

	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "healthping"),
		httpClient: osm.NewHTTPClient(osm.TransportOptions{
			Service: tracing.ServiceHealthcheck,
			Hooks:   cfg.Hooks,
		}, cfg.Timeout),
	}
}

// Enabled reports whether pings are sent
func (c *Client) Enabled() bool {
	return c.cfg.URL != ""
}

// Start signals that a run has begun
func (c *Client) Start(ctx context.Context) {
	c.ping(ctx, "/start", "")
}

// Success signals that the run finished
func (c *Client) Success(ctx context.Context) {
	c.ping(ctx, "", "")
}

// Fail signals that the run failed. The error text is sent as the body.
func (c *Client) Fail(ctx context.Context, err error) {
	reason := ""
	if err != nil {
		reason = truncate(err.Error(), maxBodyBytes)
	}
	c.ping(ctx, "/fail", reason)
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (c *Client) ping(ctx context.Context, suffix, body string) {
	if !c.Enabled() {
		return
	}

	url := c.cfg.URL + suffix
	ctx, span := tracing.StartSpan(ctx, "healthping"+suffix)
	defer span.End()

	method := http.MethodGet
	var req *http.Request
	var err error
	if body != "" {
		method = http.MethodPost
		req, err = http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		c.logger.Warn("failed to create ping request", "error", err)
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ping failed (endpoint may be unavailable)", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()

	span.SetAttributes(tracing.ServiceAttributes(tracing.ServiceHealthcheck, method, url, resp.StatusCode)...)
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ping rejected", "url", url, "status", resp.StatusCode)
		return
	}
	c.logger.Debug("ping sent", "url", url)
}
