// Package osm provides the OpenStreetMap element model and the HTTP plumbing
// used to talk to OpenStreetMap services.
package osm

import (
	"github.com/NERVsystems/mevoosm/pkg/geo"
)

// Kind distinguishes the OSM element variants the reconciler works with
type Kind string

const (
	KindNode Kind = "node"
	KindWay  Kind = "way"
)

// Letter returns the single-letter prefix JOSM uses for object ids (n, w)
func (k Kind) Letter() string {
	if k == "" {
		return ""
	}
	return string(k[0])
}

// Element is a map feature fetched from OSM. Kind and Location are resolved
// once when the element is ingested, so consumers never inspect the
// underlying Overpass types.
type Element struct {
	ID       int64             `json:"id"`
	Kind     Kind              `json:"type"`
	Location geo.Location      `json:"location"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// Tag returns the value of a tag and whether it is present
func (e *Element) Tag(key string) (string, bool) {
	if e == nil || e.Tags == nil {
		return "", false
	}
	v, ok := e.Tags[key]
	return v, ok
}

// HasTag reports whether the element carries the given key
func (e *Element) HasTag(key string) bool {
	_, ok := e.Tag(key)
	return ok
}

// NewNode creates a node element
func NewNode(id int64, lat, lon float64, tags map[string]string) Element {
	return Element{
		ID:       id,
		Kind:     KindNode,
		Location: geo.Location{Latitude: lat, Longitude: lon},
		Tags:     tags,
	}
}

// NewWay creates a way element positioned at the given representative point
func NewWay(id int64, location geo.Location, tags map[string]string) Element {
	return Element{
		ID:       id,
		Kind:     KindWay,
		Location: location,
		Tags:     tags,
	}
}
