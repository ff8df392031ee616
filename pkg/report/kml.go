package report

import (
	"encoding/xml"
	"fmt"
	"io"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	Xmlns    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string   `xml:"name"`
	Description string   `xml:"description"`
	Point       kmlPoint `xml:"Point"`
}

type kmlPoint struct {
	// lon,lat order
	Coordinates string `xml:"coordinates"`
}

// WriteKML writes one placemark per feature
func WriteKML(w io.Writer, name string, features []MapFeature) error {
	root := kmlRoot{
		Xmlns: kmlNamespace,
		Document: kmlDocument{
			Name:       name,
			Placemarks: make([]kmlPlacemark, 0, len(features)),
		},
	}
	for _, f := range features {
		root.Document.Placemarks = append(root.Document.Placemarks, kmlPlacemark{
			Name:        f.Name,
			Description: f.Description(),
			Point:       kmlPoint{Coordinates: formatFloat(f.Lon) + "," + formatFloat(f.Lat)},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode kml: %w", err)
	}
	return enc.Close()
}
