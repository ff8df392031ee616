// Package geo provides geographic primitives shared by the station sources,
// the matching engine and the report generator.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// EarthRadius is the mean Earth radius in meters
const EarthRadius = 6371000.0

// DefaultEnvelopeEpsilon pads the station envelope so that map features
// mapped slightly outside the outermost stations are still fetched.
const DefaultEnvelopeEpsilon = 0.002

// Location is a point in decimal degrees (WGS84)
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point converts the location to an orb point (lon, lat order)
func (l Location) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

// BoundingBox is a latitude/longitude rectangle
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// IsZero reports whether the box is the degenerate (0,0,0,0) box
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Distance returns the great-circle distance between two locations in meters
func Distance(a, b Location) float64 {
	return HaversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// Envelope returns the bounding box of the given locations padded by epsilon
// degrees on every side. An empty input yields the zero box.
func Envelope(locations []Location, epsilon float64) BoundingBox {
	if len(locations) == 0 {
		return BoundingBox{}
	}

	mp := make(orb.MultiPoint, 0, len(locations))
	for _, l := range locations {
		mp = append(mp, l.Point())
	}
	bound := mp.Bound().Pad(epsilon)

	return BoundingBox{
		MinLat: bound.Min.Lat(),
		MinLon: bound.Min.Lon(),
		MaxLat: bound.Max.Lat(),
		MaxLon: bound.Max.Lon(),
	}
}

// Centroid returns the mean position of the given locations.
// The second return value is false when there are no locations.
func Centroid(locations []Location) (Location, bool) {
	if len(locations) == 0 {
		return Location{}, false
	}

	mp := make(orb.MultiPoint, 0, len(locations))
	for _, l := range locations {
		mp = append(mp, l.Point())
	}
	c, _ := planar.CentroidArea(mp)

	return Location{Latitude: c.Lat(), Longitude: c.Lon()}, true
}
