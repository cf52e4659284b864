// Package footprint loads building footprints and zone polygons from
// GeoJSON and aggregates them per zone.
package footprint

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Footprint is one building outline reduced to what scheme building needs.
type Footprint struct {
	ID     string
	Zone   string
	Area   float64 // m²
	Height float64 // storeys
}

// Zone is a named zone polygon.
type Zone struct {
	Name     string
	Geometry orb.Geometry
	bound    orb.Bound
}

// Contains reports whether p lies inside the zone.
func (z Zone) Contains(p orb.Point) bool {
	if !z.bound.Contains(p) {
		return false
	}
	switch g := z.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// Options controls how features are read.
type Options struct {
	// ZoneProperty names the feature property holding a zone name.
	ZoneProperty string
	// HeightProperty names the footprint property holding the storey count.
	HeightProperty string
	// IDProperty names the footprint property used as ID.
	IDProperty string
	// Projected means coordinates are planar metres rather than lon/lat.
	Projected bool
}

// DefaultOptions returns the property names used by the bundled exports.
func DefaultOptions() Options {
	return Options{
		ZoneProperty:   "zone",
		HeightProperty: "height",
		IDProperty:     "id",
	}
}

// Report summarizes a footprint load.
type Report struct {
	Loaded     int
	Unassigned int
	Skipped    []*FeatureError
}

// FeatureError marks a GeoJSON feature that could not be used.
type FeatureError struct {
	Index  int
	Reason string
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %d: %s", e.Index, e.Reason)
}

// Reader loads zones and footprints.
type Reader struct {
	opts   Options
	logger *slog.Logger
}

// NewReader creates a Reader. A nil logger uses the default logger.
func NewReader(opts Options, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{opts: opts, logger: logger.With(slog.String("component", "footprint"))}
}

// ReadZones reads a feature collection of zone polygons. Every feature must
// carry a polygon geometry and a zone name.
func (rd *Reader) ReadZones(r io.Reader) ([]Zone, error) {
	fc, err := readCollection(r)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(fc.Features))
	zones := make([]Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		name := f.Properties.MustString(rd.opts.ZoneProperty, "")
		if name == "" {
			return nil, &FeatureError{Index: i, Reason: fmt.Sprintf("missing %q property", rd.opts.ZoneProperty)}
		}
		if seen[name] {
			return nil, &FeatureError{Index: i, Reason: fmt.Sprintf("duplicate zone %q", name)}
		}
		seen[name] = true
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, &FeatureError{Index: i, Reason: fmt.Sprintf("zone %q is not a polygon", name)}
		}
		zones = append(zones, Zone{Name: name, Geometry: f.Geometry, bound: f.Geometry.Bound()})
	}
	return zones, nil
}

// ReadFootprints reads building footprints. A footprint without a zone
// property is placed in the first zone containing its centroid; one that
// falls in no zone keeps an empty zone and is counted as unassigned.
// Features without a polygon geometry are skipped.
func (rd *Reader) ReadFootprints(r io.Reader, zones []Zone) ([]Footprint, Report, error) {
	fc, err := readCollection(r)
	if err != nil {
		return nil, Report{}, err
	}

	var (
		out []Footprint
		rep Report
	)
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			fe := &FeatureError{Index: i, Reason: "footprint is not a polygon"}
			rd.logger.Warn("skipping footprint", slog.Int("index", i), slog.String("reason", fe.Reason))
			rep.Skipped = append(rep.Skipped, fe)
			continue
		}

		fp := Footprint{
			ID:     f.Properties.MustString(rd.opts.IDProperty, ""),
			Zone:   f.Properties.MustString(rd.opts.ZoneProperty, ""),
			Area:   rd.area(f.Geometry),
			Height: f.Properties.MustFloat64(rd.opts.HeightProperty, 0),
		}
		if fp.Zone == "" {
			fp.Zone = Locate(zones, f.Geometry)
		}
		if fp.Zone == "" {
			rep.Unassigned++
		}
		out = append(out, fp)
	}
	rep.Loaded = len(out)
	rd.logger.Debug("footprints loaded",
		slog.Int("footprints", rep.Loaded),
		slog.Int("unassigned", rep.Unassigned),
		slog.Int("skipped", len(rep.Skipped)))
	return out, rep, nil
}

func (rd *Reader) area(g orb.Geometry) float64 {
	if rd.opts.Projected {
		return planar.Area(g)
	}
	return geo.Area(g)
}

// Locate returns the name of the first zone containing the centroid of g,
// or "" when none does.
func Locate(zones []Zone, g orb.Geometry) string {
	c, _ := planar.CentroidArea(g)
	for _, z := range zones {
		if z.Contains(c) {
			return z.Name
		}
	}
	return ""
}

func readCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	return fc, nil
}

// Summary is the footprint-derived ground truth for one zone.
type Summary struct {
	Area       float64
	Count      int
	MeanHeight float64
}

// Summarize aggregates footprints by zone. Footprints without a height do
// not contribute to the mean height.
func Summarize(fps []Footprint) map[string]Summary {
	areas := make(map[string][]float64)
	heights := make(map[string][]float64)
	for _, fp := range fps {
		areas[fp.Zone] = append(areas[fp.Zone], fp.Area)
		if fp.Height > 0 {
			heights[fp.Zone] = append(heights[fp.Zone], fp.Height)
		}
	}

	out := make(map[string]Summary, len(areas))
	for zone, a := range areas {
		s := Summary{Area: floats.Sum(a), Count: len(a)}
		if h := heights[zone]; len(h) > 0 {
			s.MeanHeight = stat.Mean(h, nil)
		}
		out[zone] = s
	}
	return out
}
