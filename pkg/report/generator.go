// Package report renders matching results as an HTML report, an interactive
// map, a CSV batch edit list and a KML overlay.
package report

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/mevoosm/pkg/match"
	"github.com/NERVsystems/mevoosm/pkg/tracing"
)

// TimestampLayout is the layout of the generation time shown in reports
const TimestampLayout = "Mon, 02 Jan @ 15:04:05"

//go:embed templates/*.html
var templateFS embed.FS

// Paths are the artifact locations of one run. CSV and KML files are
// written next to Output with the extension replaced.
type Paths struct {
	Output string
	Map    string
}

// CSV returns the path of the batch edit file
func (p Paths) CSV() string {
	return withExt(p.Output, ".csv")
}

// KML returns the path of the overlay file
func (p Paths) KML() string {
	return withExt(p.Output, ".kml")
}

// MapPath returns the default map location for an area slug
func MapPath(dir, slug string) string {
	return filepath.Join(dir, "map-"+slug+".html")
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// ContainsData reports whether the map element source returned anything.
// With no nodes and no ways the upstream fetch most likely failed.
func ContainsData(nodes, ways int) bool {
	return nodes > 0 || ways > 0
}

// Generator writes report artifacts
type Generator struct {
	cfg       match.Config
	logger    *slog.Logger
	templates *template.Template
	now       func() time.Time
}

// NewGenerator parses the embedded templates
func NewGenerator(cfg match.Config, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"meters": formatMeters,
		"ratio":  func(r float64) string { return fmt.Sprintf("%.2f", r) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Generator{
		cfg:       cfg,
		logger:    logger.With("component", "report"),
		templates: tmpl,
		now:       time.Now,
	}, nil
}

func formatMeters(d float64) string {
	return fmt.Sprintf("%.0f", d)
}

type emptyPage struct {
	Last string
}

// WriteEmpty writes the page shown when no OSM data could be fetched
func (g *Generator) WriteEmpty(path string) error {
	err := writeFile(path, func(w io.Writer) error {
		return g.templates.ExecuteTemplate(w, "empty.html", emptyPage{
			Last: g.now().Format(TimestampLayout),
		})
	})
	if err != nil {
		return err
	}
	g.logger.Warn("OSM data not found", "path", path)
	return nil
}

type row struct {
	match.Match
	Mismatch bool
	Links    Links
}

type indexPage struct {
	Rows              []row
	Timestamp         string
	CountMismatches   int
	DistanceThreshold float64
	Area              string
	MapLink           string
	CSVLink           string
	KMLLink           string
}

type mapPage struct {
	Area     string
	Features template.JS
}

// Generate enriches the matches and writes the HTML report, the map,
// the CSV and the KML, in that order.
func (g *Generator) Generate(ctx context.Context, matches []match.Match, paths Paths, area string) (err error) {
	_, span := tracing.StartSpan(ctx, "report.generate")
	defer func() { tracing.EndSpan(span, err) }()

	if paths.Map == "" {
		paths.Map = MapPath(filepath.Dir(paths.Output), "mevo")
	}

	match.Enrich(matches)
	features := Features(g.cfg, matches)
	span.SetAttributes(
		attribute.String(tracing.AttrArea, area),
		attribute.Int(tracing.AttrMismatches, len(features)),
		attribute.String(tracing.AttrOutputPath, paths.Output),
	)

	page := indexPage{
		Rows:              make([]row, 0, len(matches)),
		Timestamp:         g.now().Format(TimestampLayout),
		CountMismatches:   len(features),
		DistanceThreshold: g.cfg.MismatchThreshold,
		Area:              area,
		MapLink:           filepath.Base(paths.Map),
		CSVLink:           filepath.Base(paths.CSV()),
		KMLLink:           filepath.Base(paths.KML()),
	}
	for _, m := range matches {
		page.Rows = append(page.Rows, row{
			Match:    m,
			Mismatch: g.cfg.IsMismatch(m),
			Links:    LinksFor(g.cfg, m),
		})
	}

	if err := writeFile(paths.Output, func(w io.Writer) error {
		return g.templates.ExecuteTemplate(w, "index.html", page)
	}); err != nil {
		return err
	}
	if err := g.writeMap(paths.Map, features, area); err != nil {
		return err
	}
	if err := writeFile(paths.CSV(), func(w io.Writer) error {
		return WriteCSV(w, features)
	}); err != nil {
		return err
	}
	if err := writeFile(paths.KML(), func(w io.Writer) error {
		return WriteKML(w, area, features)
	}); err != nil {
		return err
	}

	g.logger.Info("report generated",
		"path", paths.Output,
		"matches", len(matches),
		"mismatches", len(features),
	)
	return nil
}

func (g *Generator) writeMap(path string, features []MapFeature, area string) error {
	data, err := FeatureCollection(features).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	return writeFile(path, func(w io.Writer) error {
		return g.templates.ExecuteTemplate(w, "map.html", mapPage{
			Area:     area,
			Features: template.JS(data),
		})
	})
}

// WriteCSV writes one batch edit line per feature
func WriteCSV(w io.Writer, features []MapFeature) error {
	for _, f := range features {
		if _, err := io.WriteString(w, f.CSV()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, render func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := render(bw); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
