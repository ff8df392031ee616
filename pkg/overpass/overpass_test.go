package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/mevoosm/pkg/core"
	"github.com/NERVsystems/mevoosm/pkg/geo"
	"github.com/NERVsystems/mevoosm/pkg/osm"
)

const overpassResponse = `{
  "version": 0.6,
  "generator": "Overpass API",
  "osm3s": {"timestamp_osm_base": "2024-03-04T12:00:00Z"},
  "elements": [
    {"type": "node", "id": 30, "lat": 54.36, "lon": 18.66, "tags": {"amenity": "bicycle_rental", "name": "Stacja B"}},
    {"type": "node", "id": 10, "lat": 54.35, "lon": 18.65, "tags": {"amenity": "bicycle_rental", "name": "Stacja A"}},
    {"type": "way", "id": 7, "nodes": [1, 2, 3, 4, 1], "tags": {"amenity": "bicycle_parking", "disused:amenity": "bicycle_rental"}},
    {"type": "node", "id": 1, "lat": 54.0, "lon": 18.0},
    {"type": "node", "id": 2, "lat": 54.0, "lon": 18.2},
    {"type": "node", "id": 3, "lat": 54.2, "lon": 18.2},
    {"type": "node", "id": 4, "lat": 54.2, "lon": 18.0}
  ]
}`

var testBox = geo.BoundingBox{MinLat: 53.9, MinLon: 17.9, MaxLat: 54.5, MaxLon: 18.8}

func newOverpassServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if err := r.ParseForm(); err != nil || !strings.Contains(r.PostForm.Get("data"), `"amenity"~"^(bicycle_rental|bicycle_parking)$"`) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestQuery(t *testing.T) {
	q := Query(geo.BoundingBox{MinLat: 54.3, MinLon: 18.5, MaxLat: 54.4, MaxLon: 18.7}, 60*time.Second)
	assert.Equal(t, `[out:json][timeout:60];(`+
		`node(54.300000,18.500000,54.400000,18.700000)["amenity"~"^(bicycle_rental|bicycle_parking)$"];`+
		`way(54.300000,18.500000,54.400000,18.700000)["amenity"~"^(bicycle_rental|bicycle_parking)$"];`+
		`);out body;>;out skel qt;`, q)
}

func TestFetchElements(t *testing.T) {
	var calls int32
	server := newOverpassServer(t, http.StatusOK, overpassResponse, &calls)

	source := NewSource(Options{URL: server.URL, Client: server.Client()})

	result, err := source.FetchElements(context.Background(), "pomorskie", testBox)
	require.NoError(t, err)

	assert.Equal(t, 6, result.Nodes)
	assert.Equal(t, 1, result.Ways)
	require.Len(t, result.Elements, 3)

	// Tagged nodes by id, then ways
	assert.Equal(t, int64(10), result.Elements[0].ID)
	assert.Equal(t, osm.KindNode, result.Elements[0].Kind)
	assert.Equal(t, int64(30), result.Elements[1].ID)

	way := result.Elements[2]
	assert.Equal(t, int64(7), way.ID)
	assert.Equal(t, osm.KindWay, way.Kind)
	assert.InDelta(t, 54.1, way.Location.Latitude, 1e-9)
	assert.InDelta(t, 18.1, way.Location.Longitude, 1e-9)
	assert.Equal(t, "bicycle_rental", way.Tags["disused:amenity"])
}

func TestFetchElementsCached(t *testing.T) {
	var calls int32
	server := newOverpassServer(t, http.StatusOK, overpassResponse, &calls)

	var hits, misses int32
	hooks := &osm.MonitoringHooks{
		OnCacheHit:  func(string) { atomic.AddInt32(&hits, 1) },
		OnCacheMiss: func(string) { atomic.AddInt32(&misses, 1) },
	}
	source := NewSource(Options{URL: server.URL, Client: server.Client(), Hooks: hooks})

	for i := 0; i < 3; i++ {
		_, err := source.FetchElements(context.Background(), "pomorskie", testBox)
		require.NoError(t, err)
	}
	_, err := source.FetchElements(context.Background(), "other", testBox)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(2), atomic.LoadInt32(&misses))
}

func TestFetchElementsCacheExpires(t *testing.T) {
	var calls int32
	server := newOverpassServer(t, http.StatusOK, overpassResponse, &calls)

	source := NewSource(Options{URL: server.URL, Client: server.Client(), CacheTTL: 20 * time.Millisecond})

	_, err := source.FetchElements(context.Background(), "pomorskie", testBox)
	require.NoError(t, err)
	_, err = source.FetchElements(context.Background(), "pomorskie", testBox)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	time.Sleep(50 * time.Millisecond)

	_, err = source.FetchElements(context.Background(), "pomorskie", testBox)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchElementsCacheDisabled(t *testing.T) {
	var calls int32
	server := newOverpassServer(t, http.StatusOK, overpassResponse, &calls)

	var misses int32
	hooks := &osm.MonitoringHooks{OnCacheMiss: func(string) { atomic.AddInt32(&misses, 1) }}
	source := NewSource(Options{URL: server.URL, Client: server.Client(), CacheTTL: -1, Hooks: hooks})

	for i := 0; i < 2; i++ {
		_, err := source.FetchElements(context.Background(), "pomorskie", testBox)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Zero(t, atomic.LoadInt32(&misses))
}

func TestFetchElementsEmpty(t *testing.T) {
	var calls int32
	server := newOverpassServer(t, http.StatusOK, `{"version":0.6,"elements":[]}`, &calls)

	source := NewSource(Options{URL: server.URL, Client: server.Client()})

	result, err := source.FetchElements(context.Background(), "pomorskie", geo.BoundingBox{})
	require.NoError(t, err)
	assert.Zero(t, result.Nodes)
	assert.Zero(t, result.Ways)
	assert.Empty(t, result.Elements)
}

func TestFetchElementsServerError(t *testing.T) {
	var calls int32
	server := newOverpassServer(t, http.StatusGatewayTimeout, `timeout`, &calls)

	source := NewSource(Options{URL: server.URL, Client: server.Client()})

	_, err := source.FetchElements(context.Background(), "pomorskie", testBox)
	require.Error(t, err)
	assert.Equal(t, core.ErrServiceUnavailable, core.CodeOf(err))
}

func TestFetchElementsCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	source := NewSource(Options{URL: server.URL, Client: server.Client()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := source.FetchElements(ctx, "pomorskie", testBox)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
