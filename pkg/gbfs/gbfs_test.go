package gbfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/mevoosm/pkg/core"
	"github.com/NERVsystems/mevoosm/pkg/match"
	"github.com/NERVsystems/mevoosm/pkg/osm"
)

const stationInformation = `{
  "last_updated": 1700000000,
  "ttl": 60,
  "data": {
    "stations": [
      {"station_id": "1", "name": "Stacja A", "lat": 54.35, "lon": 18.65, "capacity": 10},
      {"station_id": "2", "name": "Broken", "lat": 154.0, "lon": 18.6, "capacity": 4},
      {"station_id": "3", "name": "Stacja C", "lat": 54.4, "lon": 18.57, "capacity": 8}
    ]
  }
}`

var fastRetry = core.RetryOptions{
	MaxAttempts:  2,
	InitialDelay: time.Millisecond,
	MaxDelay:     time.Millisecond,
	Multiplier:   2,
}

func newFeedServer(t *testing.T, body string, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.Header.Get("Client-Identifier") != DefaultClientIdentifier {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchStations(t *testing.T) {
	var calls int32
	server := newFeedServer(t, stationInformation, &calls)
	source := NewSource(Options{URL: server.URL, Retry: fastRetry})

	stations, err := source.FetchStations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []match.Station{
		{Name: "Stacja A", Ref: "1", Lat: 54.35, Lon: 18.65, Capacity: 10},
		{Name: "Stacja C", Ref: "3", Lat: 54.4, Lon: 18.57, Capacity: 8},
	}, stations)
}

func TestFetchStationsHonoursTTL(t *testing.T) {
	var calls int32
	server := newFeedServer(t, stationInformation, &calls)

	var hits, misses int32
	hooks := &osm.MonitoringHooks{
		OnCacheHit:  func(string) { atomic.AddInt32(&hits, 1) },
		OnCacheMiss: func(string) { atomic.AddInt32(&misses, 1) },
	}
	source := NewSource(Options{URL: server.URL, Retry: fastRetry, Hooks: hooks})

	first, err := source.FetchStations(context.Background())
	require.NoError(t, err)
	second, err := source.FetchStations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&misses))
}

func TestFetchStationsZeroTTLIsNotCached(t *testing.T) {
	var calls int32
	server := newFeedServer(t, `{"ttl":0,"data":{"stations":[]}}`, &calls)
	source := NewSource(Options{URL: server.URL, Retry: fastRetry})

	for i := 0; i < 2; i++ {
		stations, err := source.FetchStations(context.Background())
		require.NoError(t, err)
		assert.Empty(t, stations)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchStationsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewSource(Options{URL: server.URL, Retry: fastRetry})
	_, err := source.FetchStations(context.Background())

	require.Error(t, err)
	assert.Equal(t, core.ErrServiceUnavailable, core.CodeOf(err))
}

func TestFetchStationsMalformed(t *testing.T) {
	var calls int32
	server := newFeedServer(t, `{"data": [`, &calls)
	source := NewSource(Options{URL: server.URL, Retry: fastRetry})

	_, err := source.FetchStations(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.ErrParseError, core.CodeOf(err))
}

func TestFetchStationsSendsUserAgent(t *testing.T) {
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		w.Write([]byte(`{"data":{"stations":[]}}`))
	}))
	defer server.Close()

	source := NewSource(Options{URL: server.URL, Retry: fastRetry})
	_, err := source.FetchStations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, osm.DefaultUserAgent, userAgent.Load())
}
