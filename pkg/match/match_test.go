package match

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/mevoosm/pkg/geo"
	"github.com/NERVsystems/mevoosm/pkg/osm"
)

// metersNorth moves a point north along its meridian
func metersNorth(lat, lon, meters float64) (float64, float64) {
	return lat + meters/(geo.EarthRadius*math.Pi/180), lon
}

func rental(id int64, lat, lon float64) osm.Element {
	return osm.NewNode(id, lat, lon, map[string]string{"amenity": "bicycle_rental"})
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{"rental", map[string]string{"amenity": "bicycle_rental"}, true},
		{"disused rental parking", map[string]string{"amenity": "bicycle_parking", "disused:amenity": "bicycle_rental"}, true},
		{"plain parking", map[string]string{"amenity": "bicycle_parking"}, false},
		{"parking disused other", map[string]string{"amenity": "bicycle_parking", "disused:amenity": "fuel"}, false},
		{"other amenity", map[string]string{"amenity": "cafe"}, false},
		{"disused only", map[string]string{"disused:amenity": "bicycle_rental"}, false},
		{"no tags", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCandidate(tt.tags))
		})
	}
}

func TestPairOneMatchPerStationInOrder(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	stations := []Station{
		{Name: "C", Ref: "3", Lat: 54.40, Lon: 18.60},
		{Name: "A", Ref: "1", Lat: 54.35, Lon: 18.65},
		{Name: "B", Ref: "2", Lat: 54.38, Lon: 18.62},
	}
	elements := []osm.Element{
		rental(10, 54.35, 18.65),
		rental(11, 54.40, 18.60),
	}

	matches := engine.Pair(context.Background(), stations, elements)

	require.Len(t, matches, len(stations))
	for i, m := range matches {
		assert.Equal(t, stations[i], m.Station)
	}
	assert.Equal(t, int64(11), matches[0].Element.ID)
	assert.Equal(t, int64(10), matches[1].Element.ID)
}

func TestPairNearestNeighbour(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	station := Station{Name: "S", Ref: "1", Lat: 54.35, Lon: 18.65}

	far1, far2 := metersNorth(station.Lat, station.Lon, 400)
	near1, near2 := metersNorth(station.Lat, station.Lon, 40)
	mid1, mid2 := metersNorth(station.Lat, station.Lon, -120)
	elements := []osm.Element{
		rental(1, far1, far2),
		osm.NewWay(2, geo.Location{Latitude: near1, Longitude: near2}, map[string]string{"amenity": "bicycle_rental"}),
		rental(3, mid1, mid2),
	}

	matches := engine.Pair(context.Background(), []Station{station}, elements)
	require.Len(t, matches, 1)

	m := matches[0]
	require.True(t, m.HasElement())
	assert.Equal(t, int64(2), m.Element.ID)
	assert.Equal(t, osm.KindWay, m.ElementKind)
	for _, e := range elements {
		assert.LessOrEqual(t, m.Distance, geo.Distance(station.Location(), e.Location))
	}
}

func TestPairIgnoresNonCandidates(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	station := Station{Name: "S", Lat: 54.35, Lon: 18.65}
	lat, lon := metersNorth(station.Lat, station.Lon, 300)

	elements := []osm.Element{
		osm.NewNode(1, station.Lat, station.Lon, map[string]string{"amenity": "bicycle_parking"}),
		osm.NewNode(2, lat, lon, map[string]string{"amenity": "bicycle_parking", "disused:amenity": "bicycle_rental"}),
	}

	matches := engine.Pair(context.Background(), []Station{station}, elements)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].Element.ID)
	assert.InDelta(t, 300, matches[0].Distance, 0.01)
}

func TestPairWithoutCandidates(t *testing.T) {
	cfg := DefaultConfig()
	engine := NewEngine(cfg, nil)
	stations := []Station{{Name: "A", Lat: 54.35, Lon: 18.65}, {Name: "B", Lat: 54.36, Lon: 18.66}}
	elements := []osm.Element{osm.NewNode(1, 54.35, 18.65, map[string]string{"amenity": "bench"})}

	for _, input := range [][]osm.Element{nil, elements} {
		matches := engine.Pair(context.Background(), stations, input)
		require.Len(t, matches, 2)
		for _, m := range matches {
			assert.Nil(t, m.Element)
			assert.Equal(t, float64(DefaultMaxDistance), m.Distance)
			assert.True(t, cfg.IsMismatch(m))
		}
	}
}

func TestPairEmptyStations(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	matches := engine.Pair(context.Background(), nil, []osm.Element{rental(1, 54.35, 18.65)})
	assert.Empty(t, matches)
}

func TestPairDoesNotModifyElements(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	elements := []osm.Element{rental(1, 54.35, 18.65)}
	matches := engine.Pair(context.Background(), []Station{{Name: "A", Lat: 54.35, Lon: 18.65}}, elements)

	require.Len(t, matches, 1)
	assert.Same(t, &elements[0], matches[0].Element)
	assert.Equal(t, map[string]string{"amenity": "bicycle_rental"}, elements[0].Tags)
}

func TestIsMismatchThreshold(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		distance float64
		want     bool
	}{
		{0, false},
		{99.99, false},
		{100, false},
		{100.0001, true},
		{DefaultMaxDistance, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.IsMismatch(Match{Distance: tt.distance}), "distance %v", tt.distance)
	}
}

func TestSummarize(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	way := osm.NewWay(5, geo.Location{Latitude: 1, Longitude: 1}, nil)
	node := rental(6, 1, 1)

	summary := engine.Summarize([]Match{
		{Distance: 10, Element: &node},
		{Distance: 150, Element: &way},
		{Distance: DefaultMaxDistance},
	})
	assert.Equal(t, Summary{Total: 3, Mismatches: 2, WithoutElement: 1, Ways: 1}, summary)

	mismatches := engine.Config().Mismatches([]Match{{Distance: 10}, {Distance: 101}})
	require.Len(t, mismatches, 1)
	assert.Equal(t, float64(101), mismatches[0].Distance)
}

func TestBoundingBox(t *testing.T) {
	cfg := DefaultConfig()

	box := cfg.BoundingBox([]Station{{Lat: 54.0, Lon: 18.0}})
	assert.InDelta(t, 53.998, box.MinLat, 1e-9)
	assert.InDelta(t, 17.998, box.MinLon, 1e-9)
	assert.InDelta(t, 54.002, box.MaxLat, 1e-9)
	assert.InDelta(t, 18.002, box.MaxLon, 1e-9)

	assert.True(t, cfg.BoundingBox(nil).IsZero())
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Dworzec Główny", "Dworzec Główny", 1.0},
		{"", "", 1.0},
		{"abcd", "bcde", 0.75},
		{"abc", "xyz", 0},
		// Diacritics compare as single characters
		{"Łódź", "Lodz", 0.25},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9, "%q vs %q", tt.a, tt.b)
	}
}

func TestEnrich(t *testing.T) {
	named := osm.NewNode(1, 0, 0, map[string]string{"amenity": "bicycle_rental", "name": "Stacja A"})
	unnamed := rental(2, 0, 0)

	matches := []Match{
		{Station: Station{Name: "Stacja A"}, Element: &named},
		{Station: Station{Name: "Stacja A"}, Element: &unnamed},
		{Station: Station{Name: "Stacja A"}},
	}
	Enrich(matches)

	assert.Equal(t, 1.0, matches[0].Ratio)
	assert.Equal(t, 0.0, matches[1].Ratio)
	assert.Equal(t, 0.0, matches[2].Ratio)
}

func TestEndToEndMismatch(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	station := Station{Name: "Stacja A", Ref: "1", Lat: 54.35, Lon: 18.65, Capacity: 10}
	lat, lon := metersNorth(station.Lat, station.Lon, 150)

	matches := engine.Pair(context.Background(), []Station{station}, []osm.Element{rental(1, lat, lon)})
	require.Len(t, matches, 1)
	assert.InDelta(t, 150, matches[0].Distance, 0.01)
	assert.True(t, engine.Config().IsMismatch(matches[0]))
}
