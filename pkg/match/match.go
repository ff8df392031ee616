// Package match pairs operator stations with the nearest bicycle rental
// features in OpenStreetMap and classifies each pairing.
package match

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/mevoosm/pkg/geo"
	"github.com/NERVsystems/mevoosm/pkg/osm"
	"github.com/NERVsystems/mevoosm/pkg/tracing"
)

// Station is a ground-truth station from the operator feed
type Station struct {
	Name     string  `json:"name"`
	Ref      string  `json:"ref"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Capacity int     `json:"capacity"`
}

// Location returns the station position
func (s Station) Location() geo.Location {
	return geo.Location{Latitude: s.Lat, Longitude: s.Lon}
}

// Match pairs a station with its nearest candidate element.
// Element is nil when no candidate qualified; Distance is then the
// configured MaxDistance.
type Match struct {
	Distance    float64      `json:"distance"`
	Station     Station      `json:"station"`
	Element     *osm.Element `json:"element,omitempty"`
	ElementKind osm.Kind     `json:"element_kind"`
	Ratio       float64      `json:"ratio"`
}

// HasElement reports whether a candidate was found
func (m Match) HasElement() bool {
	return m.Element != nil
}

// Summary counts the outcome of a pairing run
type Summary struct {
	Total          int
	Mismatches     int
	WithoutElement int
	Ways           int
}

// Engine pairs stations with candidate elements
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a matching engine
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With("component", "match"),
	}
}

// Config returns the engine settings
func (e *Engine) Config() Config {
	return e.cfg
}

// IsCandidate reports whether an element's tags make it a reconciliation
// target: a bicycle rental, or a bicycle parking that is a disused rental.
func IsCandidate(tags map[string]string) bool {
	amenity, ok := tags["amenity"]
	if !ok {
		return false
	}
	switch amenity {
	case "bicycle_rental":
		return true
	case "bicycle_parking":
		return tags["disused:amenity"] == "bicycle_rental"
	default:
		return false
	}
}

// Candidates returns the elements that pass IsCandidate, in input order
func Candidates(elements []osm.Element) []*osm.Element {
	candidates := make([]*osm.Element, 0, len(elements))
	for i := range elements {
		if IsCandidate(elements[i].Tags) {
			candidates = append(candidates, &elements[i])
		}
	}
	return candidates
}

// Nearest returns the candidate closest to the station and its distance.
// On equal distances the earlier candidate is kept. With no candidates it
// returns nil and MaxDistance.
func (e *Engine) Nearest(station Station, candidates []*osm.Element) (*osm.Element, float64) {
	bestDistance := e.cfg.MaxDistance
	var best *osm.Element

	from := station.Location()
	for _, candidate := range candidates {
		dist := geo.Distance(from, candidate.Location)
		if dist < bestDistance {
			bestDistance = dist
			best = candidate
		}
	}
	return best, bestDistance
}

// Pair produces exactly one Match per station, in station order.
// Elements are never modified; matches point into the given slice.
func (e *Engine) Pair(ctx context.Context, stations []Station, elements []osm.Element) []Match {
	_, span := tracing.StartSpan(ctx, "match.pair")
	defer span.End()

	candidates := Candidates(elements)
	e.logger.Debug("filtered candidates",
		"elements", len(elements),
		"candidates", len(candidates),
	)

	matches := make([]Match, 0, len(stations))
	for _, station := range stations {
		element, dist := e.Nearest(station, candidates)
		kind := osm.KindNode
		if element != nil {
			kind = element.Kind
		}
		matches = append(matches, Match{
			Distance:    dist,
			Station:     station,
			Element:     element,
			ElementKind: kind,
		})
	}

	summary := e.Summarize(matches)
	span.SetAttributes(
		attribute.Int(tracing.AttrStations, len(stations)),
		attribute.Int(tracing.AttrCandidates, len(candidates)),
		attribute.Int(tracing.AttrMismatches, summary.Mismatches),
	)
	e.logger.Info("paired stations",
		"stations", summary.Total,
		"candidates", len(candidates),
		"mismatches", summary.Mismatches,
		"without_element", summary.WithoutElement,
	)

	return matches
}

// Summarize counts mismatches and element kinds
func (e *Engine) Summarize(matches []Match) Summary {
	s := Summary{Total: len(matches)}
	for _, m := range matches {
		if e.cfg.IsMismatch(m) {
			s.Mismatches++
		}
		if !m.HasElement() {
			s.WithoutElement++
		} else if m.Element.Kind == osm.KindWay {
			s.Ways++
		}
	}
	return s
}

// Mismatches returns the matches farther than the threshold, in order
func (c Config) Mismatches(matches []Match) []Match {
	var out []Match
	for _, m := range matches {
		if c.IsMismatch(m) {
			out = append(out, m)
		}
	}
	return out
}

// BoundingBox returns the station envelope padded by the configured epsilon.
// No stations yields the zero box.
func (c Config) BoundingBox(stations []Station) geo.BoundingBox {
	locations := make([]geo.Location, 0, len(stations))
	for _, s := range stations {
		locations = append(locations, s.Location())
	}
	return geo.Envelope(locations, c.EnvelopeEpsilon)
}
