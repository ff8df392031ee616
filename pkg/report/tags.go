package report

import (
	"strconv"
	"strings"

	"github.com/NERVsystems/mevoosm/pkg/match"
)

// TagSet is an ordered list of OSM tags. Order is preserved in every
// artifact so that generated links and CSV lines are stable.
type TagSet []match.Tag

// StationTags returns the tags a correctly mapped station should carry:
// the network identity tags followed by the per-station references.
func StationTags(cfg match.Config, station match.Station) TagSet {
	tags := make(TagSet, 0, len(cfg.NetworkTags)+3)
	tags = append(tags, cfg.NetworkTags...)
	return append(tags,
		match.Tag{Key: "ref:mevo", Value: station.Ref},
		match.Tag{Key: "ref", Value: station.Name},
		match.Tag{Key: "capacity", Value: strconv.Itoa(station.Capacity)},
	)
}

// KeyValues returns the tags as key=value strings
func (ts TagSet) KeyValues() []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Key+"="+t.Value)
	}
	return out
}

// Join joins the key=value strings with sep
func (ts TagSet) Join(sep string) string {
	return strings.Join(ts.KeyValues(), sep)
}

// formatFloat writes the shortest decimal that round-trips, so whole
// degrees print without a fractional part (54, not 54.0)
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
