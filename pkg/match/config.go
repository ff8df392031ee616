package match

import "github.com/NERVsystems/mevoosm/pkg/geo"

const (
	// DefaultMismatchThreshold is the distance in meters above which a
	// station is considered not mapped (inclusive for matches)
	DefaultMismatchThreshold = 100

	// DefaultMaxDistance is recorded when no candidate element qualifies
	DefaultMaxDistance = 1000000

	DefaultOSMURL  = "https://osm.org"
	DefaultJOSMURL = "http://localhost:8111"

	// DefaultMapZoom is the zoom level of map viewer deep links
	DefaultMapZoom = 19
)

// Tag is a single OSM key=value pair
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Config holds the immutable settings shared by the engine and the report
// generator. Build it with DefaultConfig and adjust fields before use.
type Config struct {
	MismatchThreshold float64
	MaxDistance       float64
	EnvelopeEpsilon   float64

	OSMURL  string
	JOSMURL string
	MapZoom int

	// NetworkTags identify the operator's network and are applied to every
	// station in the order given
	NetworkTags []Tag
}

// DefaultConfig returns the settings for the MEVO network
func DefaultConfig() Config {
	return Config{
		MismatchThreshold: DefaultMismatchThreshold,
		MaxDistance:       DefaultMaxDistance,
		EnvelopeEpsilon:   geo.DefaultEnvelopeEpsilon,
		OSMURL:            DefaultOSMURL,
		JOSMURL:           DefaultJOSMURL,
		MapZoom:           DefaultMapZoom,
		NetworkTags:       MevoNetworkTags(),
	}
}

// MevoNetworkTags returns the tags every MEVO station should carry.
// They follow the name-suggestion-index entry for the brand.
func MevoNetworkTags() []Tag {
	return []Tag{
		{Key: "amenity", Value: "bicycle_rental"},
		{Key: "brand", Value: "MEVO"},
		{Key: "network", Value: "MEVO"},
		{Key: "operator", Value: "CityBike Global"},
		{Key: "opening_hours", Value: "24/7"},
		{Key: "brand:wikidata", Value: "Q60860236"},
		{Key: "network:wikidata", Value: "Q60860236"},
	}
}

// IsMismatch reports whether the match is too far from its station.
// A distance equal to the threshold still counts as a match.
func (c Config) IsMismatch(m Match) bool {
	return m.Distance > c.MismatchThreshold
}
