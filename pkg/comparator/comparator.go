// Package comparator runs one reconciliation: it fetches stations and map
// elements, pairs them and writes the report.
package comparator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/mevoosm/pkg/geo"
	"github.com/NERVsystems/mevoosm/pkg/match"
	"github.com/NERVsystems/mevoosm/pkg/monitoring"
	"github.com/NERVsystems/mevoosm/pkg/overpass"
	"github.com/NERVsystems/mevoosm/pkg/report"
	"github.com/NERVsystems/mevoosm/pkg/tracing"
)

// ErrNoData is returned when the element source returned neither nodes nor
// ways. The empty page has been written; callers treat it as success.
var ErrNoData = errors.New("no OSM data")

// StationSource produces the ground-truth stations
type StationSource interface {
	FetchStations(ctx context.Context) ([]match.Station, error)
}

// ElementSource produces candidate map elements inside a bounding box
type ElementSource interface {
	FetchElements(ctx context.Context, area string, bbox geo.BoundingBox) (overpass.Result, error)
}

// Options wires one run
type Options struct {
	Stations  StationSource
	Elements  ElementSource
	Engine    *match.Engine
	Generator *report.Generator
	Area      string
	Paths     report.Paths
	Logger    *slog.Logger
}

// Run performs one full reconciliation. Upstream failures abort the run
// before anything is written.
func Run(ctx context.Context, opts Options) (err error) {
	ctx, span := tracing.StartSpan(ctx, "comparator.run")
	defer func() {
		if errors.Is(err, ErrNoData) {
			tracing.EndSpan(span, nil)
			return
		}
		tracing.EndSpan(span, err)
	}()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	span.SetAttributes(attribute.String(tracing.AttrArea, opts.Area))

	stations, err := opts.Stations.FetchStations(ctx)
	if err != nil {
		monitoring.RecordError("comparator", "fetch_stations")
		return fmt.Errorf("fetch stations: %w", err)
	}

	cfg := opts.Engine.Config()
	bbox := cfg.BoundingBox(stations)
	logger.Info("computed bounding box",
		"stations", len(stations),
		"min_lat", bbox.MinLat,
		"min_lon", bbox.MinLon,
		"max_lat", bbox.MaxLat,
		"max_lon", bbox.MaxLon,
	)

	result, err := opts.Elements.FetchElements(ctx, opts.Area, bbox)
	if err != nil {
		monitoring.RecordError("comparator", "fetch_elements")
		return fmt.Errorf("fetch elements: %w", err)
	}

	if !report.ContainsData(result.Nodes, result.Ways) {
		span.SetAttributes(attribute.Bool(tracing.AttrEmptySource, true))
		if err := opts.Generator.WriteEmpty(opts.Paths.Output); err != nil {
			return fmt.Errorf("write empty report: %w", err)
		}
		return ErrNoData
	}

	matches := opts.Engine.Pair(ctx, stations, result.Elements)
	summary := opts.Engine.Summarize(matches)
	monitoring.RecordSummary(summary.Total, len(match.Candidates(result.Elements)), summary.Mismatches)

	if err := opts.Generator.Generate(ctx, matches, opts.Paths, opts.Area); err != nil {
		monitoring.RecordError("comparator", "generate")
		return fmt.Errorf("generate report: %w", err)
	}
	return nil
}
