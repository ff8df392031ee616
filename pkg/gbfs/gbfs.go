// Package gbfs fetches operator stations from a GBFS station_information feed.
package gbfs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/mevoosm/pkg/cache"
	"github.com/NERVsystems/mevoosm/pkg/core"
	"github.com/NERVsystems/mevoosm/pkg/match"
	"github.com/NERVsystems/mevoosm/pkg/osm"
	"github.com/NERVsystems/mevoosm/pkg/tracing"
)

// DefaultClientIdentifier identifies this tool to the feed publisher
const DefaultClientIdentifier = "starsep-mevoosm"

// feed is the station_information.json document
type feed struct {
	LastUpdated int64 `json:"last_updated"`
	TTL         int   `json:"ttl"`
	Data        struct {
		Stations []feedStation `json:"stations"`
	} `json:"data"`
}

type feedStation struct {
	StationID string  `json:"station_id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Capacity  int     `json:"capacity"`
}

// Options configures a Source
type Options struct {
	URL              string
	ClientIdentifier string
	Client           *http.Client
	Retry            core.RetryOptions
	Hooks            *osm.MonitoringHooks
	Logger           *slog.Logger
}

// Source is the station source backed by a GBFS feed
type Source struct {
	url      string
	clientID string
	client   *http.Client
	retry    core.RetryOptions
	hooks    *osm.MonitoringHooks
	logger   *slog.Logger
	cache    *cache.TTLCache[string, []match.Station]
}

// NewSource creates a GBFS station source
func NewSource(opts Options) *Source {
	if opts.URL == "" {
		opts.URL = osm.MevoFeedURL
	}
	if opts.ClientIdentifier == "" {
		opts.ClientIdentifier = DefaultClientIdentifier
	}
	if opts.Client == nil {
		opts.Client = osm.NewHTTPClient(osm.TransportOptions{
			Service: tracing.ServiceGBFS,
			Hooks:   opts.Hooks,
		}, osm.DefaultTimeout)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = core.DefaultRetryOptions
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Source{
		url:      opts.URL,
		clientID: opts.ClientIdentifier,
		client:   opts.Client,
		retry:    opts.Retry,
		hooks:    opts.Hooks,
		logger:   opts.Logger.With("component", "gbfs"),
		cache:    cache.NewTTLCache[string, []match.Station](),
	}
}

// FetchStations downloads the station list. Stations with invalid
// coordinates are skipped. The result is reused for the feed's ttl, so a
// watch cycle shorter than the ttl does not refetch the feed.
func (s *Source) FetchStations(ctx context.Context) (stations []match.Station, err error) {
	ctx, span := tracing.StartSpan(ctx, "gbfs.fetch")
	defer func() { tracing.EndSpan(span, err) }()

	if cached, ok := s.cache.Get(s.url); ok {
		s.hooks.CacheHit(tracing.CacheTypeFeed)
		span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeFeed, true, s.url)...)
		return cached, nil
	}
	s.hooks.CacheMiss(tracing.CacheTypeFeed)
	span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeFeed, false, s.url)...)

	resp, err := core.WithRetryFactory(ctx, tracing.ServiceGBFS, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Client-Identifier", s.clientID)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, s.client, s.retry)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var doc feed
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, core.NewError(core.ErrParseError, "failed to decode station feed").
			WithGuidance("Check that the feed URL points to station_information.json").
			WithCause(err)
	}

	stations = s.convert(doc.Data.Stations)
	s.cache.Set(s.url, stations, time.Duration(doc.TTL)*time.Second)

	span.SetAttributes(attribute.Int(tracing.AttrStations, len(stations)))
	s.logger.Info("fetched stations",
		"stations", len(stations),
		"skipped", len(doc.Data.Stations)-len(stations),
		"ttl", doc.TTL,
	)
	return stations, nil
}

func (s *Source) convert(in []feedStation) []match.Station {
	out := make([]match.Station, 0, len(in))
	for _, fs := range in {
		if err := core.ValidateCoords(fs.Lat, fs.Lon); err != nil {
			s.logger.Warn("skipping station with invalid coordinates",
				"station_id", fs.StationID,
				"name", fs.Name,
				"error", err,
			)
			continue
		}
		capacity := fs.Capacity
		if capacity < 0 {
			capacity = 0
		}
		out = append(out, match.Station{
			Name:     fs.Name,
			Ref:      fs.StationID,
			Lat:      fs.Lat,
			Lon:      fs.Lon,
			Capacity: capacity,
		})
	}
	return out
}
