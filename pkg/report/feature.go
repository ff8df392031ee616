package report

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/NERVsystems/mevoosm/pkg/match"
)

// MapFeature is a proposed corrective point for a mismatched station
type MapFeature struct {
	Lat  float64
	Lon  float64
	Name string
	Tags TagSet
}

// NewMapFeature builds the feature proposed for a match
func NewMapFeature(cfg match.Config, m match.Match) MapFeature {
	return MapFeature{
		Lat:  m.Station.Lat,
		Lon:  m.Station.Lon,
		Name: m.Station.Name,
		Tags: StationTags(cfg, m.Station),
	}
}

// Features returns one feature per mismatch, in match order
func Features(cfg match.Config, matches []match.Match) []MapFeature {
	mismatches := cfg.Mismatches(matches)
	features := make([]MapFeature, 0, len(mismatches))
	for _, m := range mismatches {
		features = append(features, NewMapFeature(cfg, m))
	}
	return features
}

// AllTags returns the name tag followed by the feature tags
func (f MapFeature) AllTags() TagSet {
	tags := make(TagSet, 0, len(f.Tags)+1)
	tags = append(tags, match.Tag{Key: "name", Value: f.Name})
	return append(tags, f.Tags...)
}

// CSV returns the batch edit directive for the feature:
// lat,lon,addNode,name=...,key=value,...
func (f MapFeature) CSV() string {
	var b strings.Builder
	b.WriteString(formatFloat(f.Lat))
	b.WriteByte(',')
	b.WriteString(formatFloat(f.Lon))
	b.WriteString(",addNode,")
	b.WriteString(f.AllTags().Join(","))
	return b.String()
}

// Description returns the key=value lines shown in GIS tools
func (f MapFeature) Description() string {
	return f.AllTags().Join("\n")
}

// FeatureCollection converts the features into GeoJSON points with the
// tags as properties
func FeatureCollection(features []MapFeature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		feature := geojson.NewFeature(orb.Point{f.Lon, f.Lat})
		for _, t := range f.AllTags() {
			feature.Properties[t.Key] = t.Value
		}
		feature.Properties["description"] = f.Description()
		fc.Append(feature)
	}
	return fc
}
