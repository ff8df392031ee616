package core

import (
	"fmt"
	"strings"

	"github.com/NERVsystems/mevoosm/pkg/geo"
)

// OverpassBuilder provides a fluent interface for building Overpass API queries
type OverpassBuilder struct {
	outFormat      string
	timeout        int
	bbox           *geo.BoundingBox
	elementFilters []ElementFilter
}

// TagFilter represents a tag filter for Overpass queries
type TagFilter struct {
	Key    string
	Values []string
}

// ElementFilter represents a filter with tags for a specific element type
type ElementFilter struct {
	ElementType string // "node", "way", "relation"
	Tags        []TagFilter
	BBox        *geo.BoundingBox
}

// NewOverpassBuilder creates a new builder with default settings
func NewOverpassBuilder() *OverpassBuilder {
	return &OverpassBuilder{
		outFormat: "json",
		timeout:   25, // seconds
	}
}

// WithTimeout sets the query timeout
func (b *OverpassBuilder) WithTimeout(seconds int) *OverpassBuilder {
	b.timeout = seconds
	return b
}

// WithBoundingBox sets a bounding box filter for subsequently added elements
func (b *OverpassBuilder) WithBoundingBox(box geo.BoundingBox) *OverpassBuilder {
	b.bbox = &box
	return b
}

// WithNode adds a node filter
func (b *OverpassBuilder) WithNode(tags ...TagFilter) *OverpassBuilder {
	return b.withElement("node", tags)
}

// WithWay adds a way filter
func (b *OverpassBuilder) WithWay(tags ...TagFilter) *OverpassBuilder {
	return b.withElement("way", tags)
}

func (b *OverpassBuilder) withElement(elementType string, tags []TagFilter) *OverpassBuilder {
	b.elementFilters = append(b.elementFilters, ElementFilter{
		ElementType: elementType,
		Tags:        tags,
		BBox:        b.bbox,
	})
	return b
}

// Tag creates a TagFilter for a key with optional values
func Tag(key string, values ...string) TagFilter {
	return TagFilter{
		Key:    key,
		Values: values,
	}
}

// Build generates the Overpass query string
func (b *OverpassBuilder) Build() string {
	var query strings.Builder

	query.WriteString(fmt.Sprintf("[out:%s][timeout:%d];", b.outFormat, b.timeout))
	query.WriteString("(")

	for _, filter := range b.elementFilters {
		query.WriteString(b.buildElementFilter(filter))
	}

	// Way members are needed to place ways
	query.WriteString(");out body;>;out skel qt;")

	return query.String()
}

// buildElementFilter generates the query part for a specific element filter
func (b *OverpassBuilder) buildElementFilter(filter ElementFilter) string {
	var elementQuery strings.Builder

	elementQuery.WriteString(filter.ElementType)

	if filter.BBox != nil {
		elementQuery.WriteString(fmt.Sprintf("(%.6f,%.6f,%.6f,%.6f)",
			filter.BBox.MinLat, filter.BBox.MinLon, filter.BBox.MaxLat, filter.BBox.MaxLon))
	}

	for _, tag := range filter.Tags {
		elementQuery.WriteString(buildTagFilter(tag))
	}

	elementQuery.WriteString(";")
	return elementQuery.String()
}

// buildTagFilter generates the query part for a tag filter
func buildTagFilter(filter TagFilter) string {
	if len(filter.Values) == 0 || (len(filter.Values) == 1 && filter.Values[0] == "*") {
		return fmt.Sprintf("[%q]", filter.Key)
	}

	if len(filter.Values) == 1 {
		return fmt.Sprintf("[%q=%q]", filter.Key, filter.Values[0])
	}

	// Multiple values use an anchored regex
	values := "^(" + strings.Join(filter.Values, "|") + ")$"
	return fmt.Sprintf("[%q~%q]", filter.Key, values)
}
