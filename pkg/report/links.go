package report

import (
	"fmt"
	"net/url"

	"github.com/NERVsystems/mevoosm/pkg/match"
)

// Links holds the deep links rendered next to a match
type Links struct {
	OSMMark    string
	JOSMArea   string
	OSM        string
	JOSM       string
	AddJOSM    string
	UpdateJOSM string
}

// LinksFor derives every link of a match
func LinksFor(cfg match.Config, m match.Match) Links {
	return Links{
		OSMMark:    OSMMarkLink(cfg, m),
		JOSMArea:   JOSMAreaLink(cfg, m),
		OSM:        OSMLink(cfg, m),
		JOSM:       JOSMLink(cfg, m),
		AddJOSM:    AddJOSMLink(cfg, m),
		UpdateJOSM: UpdateJOSMLink(cfg, m),
	}
}

// OSMMarkLink opens the map viewer with a marker on the station
func OSMMarkLink(cfg match.Config, m match.Match) string {
	lat, lon := formatFloat(m.Station.Lat), formatFloat(m.Station.Lon)
	return fmt.Sprintf("%s?mlat=%s&mlon=%s#map=%d/%s/%s", cfg.OSMURL, lat, lon, cfg.MapZoom, lat, lon)
}

// JOSMAreaLink asks the editor to download and zoom to the station position
func JOSMAreaLink(cfg match.Config, m match.Match) string {
	lat, lon := formatFloat(m.Station.Lat), formatFloat(m.Station.Lon)
	return fmt.Sprintf("%s/load_and_zoom?top=%s&bottom=%s&left=%s&right=%s", cfg.JOSMURL, lat, lat, lon, lon)
}

// OSMLink points the map viewer at the matched element.
// It is empty when the match has no element.
func OSMLink(cfg match.Config, m match.Match) string {
	if !m.HasElement() {
		return ""
	}
	return fmt.Sprintf("%s/%s/%d", cfg.OSMURL, m.ElementKind, m.Element.ID)
}

// JOSMLink loads the matched element into the editor.
// It is empty when the match has no element.
func JOSMLink(cfg match.Config, m match.Match) string {
	if !m.HasElement() {
		return ""
	}
	return fmt.Sprintf("%s/load_object?objects=%s%d", cfg.JOSMURL, m.ElementKind.Letter(), m.Element.ID)
}

// JOSMTags returns the station tags in the form the editor remote control
// expects: key=value pairs joined by "|" and query-escaped.
func JOSMTags(cfg match.Config, m match.Match) string {
	return url.QueryEscape(StationTags(cfg, m.Station).Join("|"))
}

// AddJOSMLink creates a new node at the station position with all tags
func AddJOSMLink(cfg match.Config, m match.Match) string {
	return fmt.Sprintf("%s/add_node?lon=%s&lat=%s&addtags=%s",
		cfg.JOSMURL, formatFloat(m.Station.Lon), formatFloat(m.Station.Lat), JOSMTags(cfg, m))
}

// UpdateJOSMLink loads the matched element, moves it to the station position
// and applies the station tags. A disused:amenity tag on the element is
// cleared as part of the same edit. It is empty when the match has no element.
func UpdateJOSMLink(cfg match.Config, m match.Match) string {
	if !m.HasElement() {
		return ""
	}
	link := fmt.Sprintf("%s/load_object?objects=%s%d&lon=%s&lat=%s&addtags=%s",
		cfg.JOSMURL, m.ElementKind.Letter(), m.Element.ID,
		formatFloat(m.Station.Lon), formatFloat(m.Station.Lat), JOSMTags(cfg, m))
	if m.Element.HasTag("disused:amenity") {
		link += "%7Cdisused:amenity="
	}
	return link
}
