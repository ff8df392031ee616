// Package overpass fetches bicycle rental candidates from the Overpass API.
package overpass

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	goverpass "github.com/serjvanilla/go-overpass"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/mevoosm/pkg/core"
	"github.com/NERVsystems/mevoosm/pkg/geo"
	"github.com/NERVsystems/mevoosm/pkg/osm"
	"github.com/NERVsystems/mevoosm/pkg/tracing"
)

const (
	// DefaultQueryTimeout is the server-side timeout put into the query
	DefaultQueryTimeout = 60 * time.Second
	DefaultMaxParallel  = 2
	DefaultCacheSize    = 16
	// DefaultCacheTTL bounds how stale a reused element result may be
	DefaultCacheTTL = 10 * time.Minute
	DefaultRPS      = 1
)

// Result is the outcome of one element fetch. Nodes and Ways count every
// element Overpass returned, including untagged way members, and tell an
// empty area apart from a failed fetch.
type Result struct {
	Elements []osm.Element
	Nodes    int
	Ways     int
}

// Options configures a Source
type Options struct {
	URL          string
	QueryTimeout time.Duration
	MaxParallel  int
	CacheSize    int
	// CacheTTL is how long a result is reused for the same area and bbox.
	// Zero means DefaultCacheTTL; a negative value disables reuse.
	CacheTTL time.Duration
	// Client carries rate limiting and monitoring; see osm.NewHTTPClient
	Client *http.Client
	Hooks  *osm.MonitoringHooks
	Logger *slog.Logger
}

// Source is the map element source backed by Overpass
type Source struct {
	client       goverpass.Client
	queryTimeout time.Duration
	hooks        *osm.MonitoringHooks
	logger       *slog.Logger
	cache        *expirable.LRU[string, Result]
}

// NewSource creates an Overpass element source
func NewSource(opts Options) *Source {
	if opts.URL == "" {
		opts.URL = osm.OverpassBaseURL
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Client == nil {
		opts.Client = osm.NewHTTPClient(osm.TransportOptions{
			Service: tracing.ServiceOverpass,
			RPS:     DefaultRPS,
			Burst:   1,
			Hooks:   opts.Hooks,
		}, opts.QueryTimeout+10*time.Second)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var cache *expirable.LRU[string, Result]
	if opts.CacheTTL > 0 {
		cache = expirable.NewLRU[string, Result](opts.CacheSize, nil, opts.CacheTTL)
	}

	return &Source{
		client:       goverpass.NewWithSettings(opts.URL, opts.MaxParallel, opts.Client),
		queryTimeout: opts.QueryTimeout,
		hooks:        opts.Hooks,
		logger:       opts.Logger.With("component", "overpass"),
		cache:        cache,
	}
}

// Query returns the Overpass QL used to fetch candidates inside bbox
func Query(bbox geo.BoundingBox, timeout time.Duration) string {
	amenities := core.Tag("amenity", "bicycle_rental", "bicycle_parking")
	return core.NewOverpassBuilder().
		WithTimeout(int(timeout.Seconds())).
		WithBoundingBox(bbox).
		WithNode(amenities).
		WithWay(amenities).
		Build()
}

func cacheKey(area string, bbox geo.BoundingBox) string {
	return fmt.Sprintf("%s|%.6f,%.6f,%.6f,%.6f", area, bbox.MinLat, bbox.MinLon, bbox.MaxLat, bbox.MaxLon)
}

type queryResult struct {
	result goverpass.Result
	err    error
}

// FetchElements returns the candidate elements inside bbox. The area is
// only used to label logs, traces and the cache key. A result is reused
// until the cache TTL passes, so watch cycles refresh map data less often
// than stations.
func (s *Source) FetchElements(ctx context.Context, area string, bbox geo.BoundingBox) (result Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "overpass.fetch")
	defer func() { tracing.EndSpan(span, err) }()
	span.SetAttributes(attribute.String(tracing.AttrArea, area))

	key := cacheKey(area, bbox)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.hooks.CacheHit(tracing.CacheTypeOverpass)
			span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeOverpass, true, key)...)
			return cached, nil
		}
		s.hooks.CacheMiss(tracing.CacheTypeOverpass)
	}

	query := Query(bbox, s.queryTimeout)
	s.logger.Debug("querying overpass", "area", area, "query", query)

	// The client has no context support; its HTTP timeout bounds the call
	done := make(chan queryResult, 1)
	go func() {
		r, err := s.client.Query(query)
		done <- queryResult{result: r, err: err}
	}()

	var qr queryResult
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case qr = <-done:
	}
	if qr.err != nil {
		return Result{}, core.NewError(core.ErrServiceUnavailable, "overpass query failed").
			WithGuidance("Overpass may be overloaded. Re-run later").
			WithCause(qr.err)
	}

	result = Convert(qr.result)
	if s.cache != nil {
		s.cache.Add(key, result)
	}

	span.SetAttributes(
		attribute.Int("overpass.nodes", result.Nodes),
		attribute.Int("overpass.ways", result.Ways),
	)
	s.logger.Info("fetched elements",
		"area", area,
		"elements", len(result.Elements),
		"nodes", result.Nodes,
		"ways", result.Ways,
	)
	return result, nil
}

// Convert resolves every tagged node and way into an osm.Element.
// Elements are ordered by id, nodes before ways. Ways without any
// resolvable position are dropped.
func Convert(r goverpass.Result) Result {
	out := Result{
		Nodes: len(r.Nodes),
		Ways:  len(r.Ways),
	}

	nodes := make([]*goverpass.Node, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		if len(n.Tags) > 0 {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	ways := make([]*goverpass.Way, 0, len(r.Ways))
	for _, w := range r.Ways {
		ways = append(ways, w)
	}
	sort.Slice(ways, func(i, j int) bool { return ways[i].ID < ways[j].ID })

	out.Elements = make([]osm.Element, 0, len(nodes)+len(ways))
	for _, n := range nodes {
		out.Elements = append(out.Elements, osm.NewNode(n.ID, n.Lat, n.Lon, n.Tags))
	}
	for _, w := range ways {
		loc, ok := wayLocation(w)
		if !ok {
			continue
		}
		out.Elements = append(out.Elements, osm.NewWay(w.ID, loc, w.Tags))
	}
	return out
}

// wayLocation is the centroid of the member nodes, or the centre of the
// way bounds when no member position is known
func wayLocation(w *goverpass.Way) (geo.Location, bool) {
	locations := make([]geo.Location, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		// Members missing from the response stay at the zero position
		if n == nil || (n.Lat == 0 && n.Lon == 0) {
			continue
		}
		locations = append(locations, geo.Location{Latitude: n.Lat, Longitude: n.Lon})
	}
	// A closed way repeats its first node
	if n := len(locations); n > 1 && locations[0] == locations[n-1] {
		locations = locations[:n-1]
	}
	if c, ok := geo.Centroid(locations); ok {
		return c, true
	}

	if w.Bounds != nil {
		return geo.Location{
			Latitude:  (w.Bounds.Min.Lat + w.Bounds.Max.Lat) / 2,
			Longitude: (w.Bounds.Min.Lon + w.Bounds.Max.Lon) / 2,
		}, true
	}
	return geo.Location{}, false
}
