package geo

import (
	"encoding/json"
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name      string
		from      Location
		to        Location
		expected  float64
		tolerance float64
	}{
		{
			name:      "Same point",
			from:      Location{Latitude: 54.35, Longitude: 18.65},
			to:        Location{Latitude: 54.35, Longitude: 18.65},
			expected:  0,
			tolerance: 1e-9,
		},
		{
			name:      "New York to Los Angeles",
			from:      Location{Latitude: 40.7128, Longitude: -74.0060},
			to:        Location{Latitude: 34.0522, Longitude: -118.2437},
			expected:  3935740.0,
			tolerance: 1000,
		},
		{
			name:      "One thousandth of a degree of latitude",
			from:      Location{Latitude: 54.0, Longitude: 18.0},
			to:        Location{Latitude: 54.001, Longitude: 18.0},
			expected:  111.19,
			tolerance: 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.from, tt.to)
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("Distance() = %v, want %v (±%v)", got, tt.expected, tt.tolerance)
			}
			if back := Distance(tt.to, tt.from); math.Abs(back-got) > 1e-6 {
				t.Errorf("Distance is not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestEnvelope(t *testing.T) {
	t.Run("single station", func(t *testing.T) {
		box := Envelope([]Location{{Latitude: 54.0, Longitude: 18.0}}, DefaultEnvelopeEpsilon)
		want := BoundingBox{MinLat: 53.998, MinLon: 17.998, MaxLat: 54.002, MaxLon: 18.002}
		assertBoxNear(t, box, want)
	})

	t.Run("several stations", func(t *testing.T) {
		box := Envelope([]Location{
			{Latitude: 54.35, Longitude: 18.65},
			{Latitude: 54.52, Longitude: 18.53},
			{Latitude: 54.40, Longitude: 18.70},
		}, DefaultEnvelopeEpsilon)
		want := BoundingBox{MinLat: 54.348, MinLon: 18.528, MaxLat: 54.522, MaxLon: 18.702}
		assertBoxNear(t, box, want)
	})

	t.Run("no stations", func(t *testing.T) {
		box := Envelope(nil, DefaultEnvelopeEpsilon)
		if !box.IsZero() {
			t.Errorf("expected zero box, got %+v", box)
		}
	})
}

func TestCentroid(t *testing.T) {
	c, ok := Centroid([]Location{
		{Latitude: 54.0, Longitude: 18.0},
		{Latitude: 54.0, Longitude: 18.002},
		{Latitude: 54.002, Longitude: 18.002},
		{Latitude: 54.002, Longitude: 18.0},
	})
	if !ok {
		t.Fatal("expected centroid")
	}
	if math.Abs(c.Latitude-54.001) > 1e-9 || math.Abs(c.Longitude-18.001) > 1e-9 {
		t.Errorf("unexpected centroid %+v", c)
	}

	if _, ok := Centroid(nil); ok {
		t.Error("expected no centroid for empty input")
	}
}

func TestBoundingBoxJSON(t *testing.T) {
	data, err := json.Marshal(BoundingBox{MinLat: 1, MinLon: 2, MaxLat: 3, MaxLon: 4})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"min_lat":1,"min_lon":2,"max_lat":3,"max_lon":4}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func assertBoxNear(t *testing.T, got, want BoundingBox) {
	t.Helper()
	const eps = 1e-9
	if math.Abs(got.MinLat-want.MinLat) > eps ||
		math.Abs(got.MinLon-want.MinLon) > eps ||
		math.Abs(got.MaxLat-want.MaxLat) > eps ||
		math.Abs(got.MaxLon-want.MaxLon) > eps {
		t.Errorf("bounding box = %+v, want %+v", got, want)
	}
}
