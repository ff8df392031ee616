package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NERVsystems/mevoosm/pkg/comparator"
	"github.com/NERVsystems/mevoosm/pkg/config"
	"github.com/NERVsystems/mevoosm/pkg/gbfs"
	"github.com/NERVsystems/mevoosm/pkg/healthping"
	"github.com/NERVsystems/mevoosm/pkg/match"
	"github.com/NERVsystems/mevoosm/pkg/monitoring"
	"github.com/NERVsystems/mevoosm/pkg/osm"
	"github.com/NERVsystems/mevoosm/pkg/overpass"
	"github.com/NERVsystems/mevoosm/pkg/report"
	"github.com/NERVsystems/mevoosm/pkg/tracing"
	ver "github.com/NERVsystems/mevoosm/pkg/version"
)

// Run outcomes used as metric labels
const (
	statusSuccess = "success"
	statusEmpty   = "empty"
	statusError   = "error"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry tracing
	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		// Continue without tracing - it's not critical
	} else {
		defer func() {
			if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()

		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	logger.Info("starting MEVO reconciliation",
		"version", ver.BuildVersion,
		"log_level", cfg.LogLevel().String(),
		"config_file", cfg.ConfigFile,
		"area", cfg.Area,
		"output_dir", cfg.Output.Dir,
		"feed_url", cfg.Feed.URL,
		"overpass_url", cfg.Overpass.URL,
		"overpass_rps", cfg.Overpass.RPS,
		"run_interval", cfg.Run.Interval,
		"healthcheck_enabled", cfg.HealthcheckURL != "",
		"pushgateway_enabled", cfg.PushgatewayURL != "",
	)

	monitoring.SetSystemInfo(ver.Info())
	tracker := monitoring.NewStatusTracker(tracing.ServiceName, ver.BuildVersion)
	hooks := monitoring.Hooks(tracker)

	rec, err := newReconciler(cfg, hooks, logger)
	if err != nil {
		logger.Error("failed to set up run", "error", err)
		return 1
	}
	ping := healthping.NewClient(healthping.Config{URL: cfg.HealthcheckURL, Hooks: hooks}, logger)

	if cfg.Run.Interval > 0 {
		logger.Info("watch mode enabled", "interval", cfg.Run.Interval)
	}

	status := loop(ctx, cfg.Run.Interval, func(ctx context.Context) string {
		ping.Start(ctx)

		start := time.Now()
		err := rec.run(ctx)
		status := runStatus(err)
		monitoring.RecordRun(status, time.Since(start))

		// Pings and pushes still go out after an interrupt
		finishCtx := context.WithoutCancel(ctx)
		switch status {
		case statusError:
			logger.Error("run failed", "error", err)
			ping.Fail(finishCtx, err)
		case statusEmpty:
			logger.Warn("OSM data not found, wrote the empty report", "path", cfg.IndexPath())
			ping.Success(finishCtx)
		default:
			ping.Success(finishCtx)
		}

		logStatus(logger, tracker.Status())
		pushMetrics(finishCtx, cfg.PushgatewayURL, logger)
		return status
	})

	return exitCode(status)
}

// reconciler holds everything one run needs. It is built once so repeated
// runs share the station and element caches.
type reconciler struct {
	outputDir string
	area      string
	paths     report.Paths
	stations  *gbfs.Source
	elements  *overpass.Source
	engine    *match.Engine
	generator *report.Generator
	logger    *slog.Logger
}

func newReconciler(cfg *config.Config, hooks *osm.MonitoringHooks, logger *slog.Logger) (*reconciler, error) {
	stations := gbfs.NewSource(gbfs.Options{
		URL:              cfg.Feed.URL,
		ClientIdentifier: cfg.Feed.ClientIdentifier,
		Client: osm.NewHTTPClient(osm.TransportOptions{
			Service:   tracing.ServiceGBFS,
			UserAgent: cfg.UserAgent,
			Hooks:     hooks,
		}, osm.DefaultTimeout),
		Hooks:  hooks,
		Logger: logger,
	})

	elements := overpass.NewSource(overpass.Options{
		URL:          cfg.Overpass.URL,
		QueryTimeout: cfg.Overpass.Timeout,
		MaxParallel:  cfg.Overpass.MaxParallel,
		CacheSize:    cfg.Overpass.CacheSize,
		CacheTTL:     cfg.Overpass.CacheTTL,
		Client: osm.NewHTTPClient(osm.TransportOptions{
			Service:   tracing.ServiceOverpass,
			RPS:       cfg.Overpass.RPS,
			Burst:     cfg.Overpass.Burst,
			UserAgent: cfg.UserAgent,
			Hooks:     hooks,
		}, cfg.Overpass.Timeout+10*time.Second),
		Hooks:  hooks,
		Logger: logger,
	})

	matchCfg := match.DefaultConfig()
	generator, err := report.NewGenerator(matchCfg, logger)
	if err != nil {
		return nil, err
	}

	return &reconciler{
		outputDir: cfg.Output.Dir,
		area:      cfg.Area,
		paths: report.Paths{
			Output: cfg.IndexPath(),
			Map:    cfg.MapPath(),
		},
		stations:  stations,
		elements:  elements,
		engine:    match.NewEngine(matchCfg, logger),
		generator: generator,
		logger:    logger,
	}, nil
}

// run performs one reconciliation. Static assets are copied unless the
// run failed.
func (r *reconciler) run(ctx context.Context) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	err := comparator.Run(ctx, comparator.Options{
		Stations:  r.stations,
		Elements:  r.elements,
		Engine:    r.engine,
		Generator: r.generator,
		Area:      r.area,
		Paths:     r.paths,
		Logger:    r.logger,
	})
	if err != nil && !errors.Is(err, comparator.ErrNoData) {
		return err
	}

	if cerr := report.CopyAssets(ctx, r.outputDir); cerr != nil {
		return cerr
	}
	return err
}

// loop calls once, then again every interval until ctx is done. A
// non-positive interval means a single call. It returns the last status.
func loop(ctx context.Context, interval time.Duration, once func(context.Context) string) string {
	for {
		status := once(ctx)
		if interval <= 0 {
			return status
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return status
		case <-timer.C:
		}
	}
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return statusSuccess
	case errors.Is(err, comparator.ErrNoData):
		return statusEmpty
	default:
		return statusError
	}
}

func exitCode(status string) int {
	if status == statusError {
		return 1
	}
	return 0
}

func logStatus(logger *slog.Logger, st monitoring.RunStatus) {
	logger.Info("run finished",
		"status", st.Status,
		"duration", st.Duration.Round(time.Millisecond),
		"goroutines", st.Goroutines,
		"memory_alloc_mb", st.MemoryMB,
	)
	for name, conn := range st.Connections {
		logger.Debug("external service",
			"service", name,
			"status", conn.Status,
			"requests", conn.Requests,
			"failures", conn.Failures,
			"latency_ms", conn.Latency,
		)
	}
}

func pushMetrics(ctx context.Context, url string, logger *slog.Logger) {
	if url == "" {
		return
	}
	if err := monitoring.Push(ctx, url); err != nil {
		logger.Warn("failed to push metrics", "error", err)
		return
	}
	logger.Debug("pushed metrics", "url", url)
}
