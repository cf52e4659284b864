// Package stratified builds a mapping scheme from a height-stratified
// survey, scaled to footprint ground truth.
//
// Each zone's survey must consist of exactly three sampling groups of equal
// size. Groups are ranked by mean height and weighted low/mid/high; the
// weighted expectations per building type are scaled by the zone's
// footprint area (or count when area is degenerate) and fed back into
// ordinary case accumulation at a fixed precision.
package stratified

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/abhisek/sidd/internal/footprint"
	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/survey"
	"github.com/abhisek/sidd/internal/taxonomy"
)

// Strata is the number of sampling groups a stratified survey must have.
const Strata = 3

// Config holds the stratification parameters.
type Config struct {
	// StrataWeights weight the groups ranked by mean height, low to high.
	StrataWeights [Strata]float64
	// Precision is the number of synthetic cases a fraction of 1 becomes.
	Precision int
}

// DefaultConfig returns weights 0.3/0.4/0.3 at a precision of 1/1000.
func DefaultConfig() Config {
	return Config{
		StrataWeights: [Strata]float64{0.3, 0.4, 0.3},
		Precision:     1000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []string
	for i, w := range c.StrataWeights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("strata weight %d is negative: %v", i, w))
		}
	}
	if floats.Sum(c.StrataWeights[:]) <= 0 {
		errs = append(errs, "strata weights sum to zero")
	}
	if c.Precision <= 0 {
		errs = append(errs, fmt.Sprintf("precision must be positive, got %d", c.Precision))
	}
	if len(errs) > 0 {
		return fmt.Errorf("stratified config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Mode records how a zone's survey fractions were scaled.
type Mode string

const (
	ModeArea  Mode = "area"
	ModeCount Mode = "count"
)

// TypeEstimate is the stratified estimate for one building type in a zone.
type TypeEstimate struct {
	Taxonomy string
	N        float64 // E[N], expected share of buildings
	P        float64 // E[P], expected floor area (area × storeys)
	A        float64 // E[A], expected footprint area
	Count    float64 // estimated buildings in the zone
	Fraction float64
	Cases    int // synthetic cases added
}

// ZoneReport describes one zone of the build.
type ZoneReport struct {
	Zone      string
	Mode      Mode
	Footprint footprint.Summary
	Types     []TypeEstimate
}

// SkippedRecord is a survey record dropped for missing data.
type SkippedRecord struct {
	Index  int
	Reason string
}

// Report summarizes a build.
type Report struct {
	Zones   []ZoneReport
	Skipped []SkippedRecord
}

// Creator builds stratified mapping schemes.
type Creator struct {
	tax       taxonomy.Taxonomy
	cfg       Config
	statsOpts []ms.Option
	logger    *slog.Logger
}

// Option configures a Creator.
type Option func(*Creator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Creator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStatisticsOptions passes options to every zone tree.
func WithStatisticsOptions(opts ...ms.Option) Option {
	return func(c *Creator) {
		c.statsOpts = append(c.statsOpts, opts...)
	}
}

// New creates a Creator. The config is validated.
func New(tax taxonomy.Taxonomy, cfg Config, opts ...Option) (*Creator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Creator{
		tax:    tax,
		cfg:    cfg,
		logger: slog.Default().With(slog.String("component", "stratified")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type entry struct {
	index int
	rec   survey.Record
}

// Build creates one finalized zone tree per zone. When zones is empty the
// zones are taken from the survey in first-seen order. A zone whose survey
// is not a valid three-group stratification aborts the build with a
// *PreconditionError.
func (c *Creator) Build(ctx context.Context, footprints []footprint.Footprint, zones []string, records []survey.Record) (*ms.MappingScheme, Report, error) {
	var rep Report

	byZone := make(map[string][]entry)
	var seen []string
	for i, r := range records {
		if reason := c.check(r); reason != "" {
			c.logger.Warn("skipping survey record",
				slog.Int("index", i),
				slog.String("reason", reason))
			rep.Skipped = append(rep.Skipped, SkippedRecord{Index: i, Reason: reason})
			continue
		}
		if _, ok := byZone[r.Zone]; !ok {
			seen = append(seen, r.Zone)
		}
		byZone[r.Zone] = append(byZone[r.Zone], entry{index: i, rec: r})
	}
	if len(zones) == 0 {
		zones = seen
	}

	truth := footprint.Summarize(footprints)
	scheme := ms.NewScheme(c.tax)
	for _, zone := range zones {
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}
		stats, zr, err := c.buildZone(zone, byZone[zone], truth[zone])
		if err != nil {
			return nil, rep, err
		}
		name := zone
		if name == "" {
			name = ms.AllZones
		}
		if err := scheme.Assign(ms.Zone{Name: name}, stats); err != nil {
			return nil, rep, err
		}
		zr.Zone = name
		rep.Zones = append(rep.Zones, zr)
	}
	return scheme, rep, nil
}

// check returns why r cannot take part in a stratified build, or "".
func (c *Creator) check(r survey.Record) string {
	switch {
	case strings.TrimSpace(r.Taxonomy) == "":
		return "missing taxonomy"
	case r.Group == "":
		return "missing sampling group"
	case r.Height <= 0:
		return "missing height"
	}
	if _, err := c.tax.Parse(r.Taxonomy); err != nil {
		return err.Error()
	}
	return ""
}

func (c *Creator) buildZone(zone string, entries []entry, fp footprint.Summary) (*ms.Statistics, ZoneReport, error) {
	zr := ZoneReport{Zone: zone, Footprint: fp}

	groups, err := c.rankGroups(zone, entries)
	if err != nil {
		return nil, zr, err
	}

	estimates := c.expectations(groups)
	zr.Mode = c.scale(estimates, fp)

	stats := ms.New(c.tax, c.statsOpts...)
	for i := range estimates {
		e := &estimates[i]
		e.Cases = int(e.Fraction * float64(c.cfg.Precision))
		var size float64
		if e.N > 0 {
			size = e.P / e.N
		}
		for n := 0; n < e.Cases; n++ {
			if err := stats.AddCase(ms.Case{Taxonomy: e.Taxonomy, Size: size}); err != nil {
				return nil, zr, fmt.Errorf("zone %q type %q: %w", zone, e.Taxonomy, err)
			}
		}
		if e.Cases == 0 {
			c.logger.Debug("building type below precision",
				slog.String("zone", zone),
				slog.String("taxonomy", e.Taxonomy),
				slog.Float64("fraction", e.Fraction))
		}
	}
	stats.Finalize()
	zr.Types = estimates

	c.logger.Debug("zone built",
		slog.String("zone", zone),
		slog.String("mode", string(zr.Mode)),
		slog.Int("types", len(estimates)))
	return stats, zr, nil
}

// rankGroups checks the three-group precondition and returns the groups
// ordered by mean height, lowest first.
func (c *Creator) rankGroups(zone string, entries []entry) ([][]survey.Record, error) {
	byGroup := make(map[string][]survey.Record)
	var names []string
	for _, e := range entries {
		if _, ok := byGroup[e.rec.Group]; !ok {
			names = append(names, e.rec.Group)
		}
		byGroup[e.rec.Group] = append(byGroup[e.rec.Group], e.rec)
	}

	if len(names) != Strata {
		return nil, &PreconditionError{Zone: zone, Reason: fmt.Sprintf("found %d sampling groups, need %d", len(names), Strata)}
	}
	n := len(byGroup[names[0]])
	for _, name := range names[1:] {
		if len(byGroup[name]) != n {
			return nil, &PreconditionError{
				Zone:   zone,
				Reason: fmt.Sprintf("sampling groups differ in size: %q has %d records, %q has %d", names[0], n, name, len(byGroup[name])),
			}
		}
	}

	means := make(map[string]float64, len(names))
	for _, name := range names {
		h := make([]float64, len(byGroup[name]))
		for i, r := range byGroup[name] {
			h[i] = r.Height
		}
		means[name] = stat.Mean(h, nil)
	}
	slices.SortStableFunc(names, func(a, b string) int {
		switch {
		case means[a] < means[b]:
			return -1
		case means[a] > means[b]:
			return 1
		}
		return strings.Compare(a, b)
	})

	out := make([][]survey.Record, len(names))
	for i, name := range names {
		out[i] = byGroup[name]
	}
	return out, nil
}

// expectations computes E[N], E[P] and E[A] per building type across the
// ranked groups, in first-seen type order.
func (c *Creator) expectations(groups [][]survey.Record) []TypeEstimate {
	index := make(map[string]int)
	var out []TypeEstimate
	for s, recs := range groups {
		w := c.cfg.StrataWeights[s]
		size := float64(len(recs))
		for _, r := range recs {
			key := strings.TrimSpace(r.Taxonomy)
			i, ok := index[key]
			if !ok {
				i = len(out)
				index[key] = i
				out = append(out, TypeEstimate{Taxonomy: key})
			}
			e := &out[i]
			e.N += w / size
			e.P += w * r.Area * r.Height / size
			e.A += w * r.Area / size
		}
	}
	return out
}

// scale converts expectations into zone building counts and fractions.
func (c *Creator) scale(estimates []TypeEstimate, fp footprint.Summary) Mode {
	var sumN, sumA float64
	for _, e := range estimates {
		sumN += e.N
		sumA += e.A
	}

	mode := ModeArea
	if fp.Area <= 0 || sumA <= 0 {
		mode = ModeCount
	}
	for i := range estimates {
		e := &estimates[i]
		switch {
		case mode == ModeArea:
			e.Count = fp.Area * e.N / sumA
		case sumN <= 0:
			e.Count = 0
		case fp.Count > 0:
			e.Count = float64(fp.Count) * e.N / sumN
		default:
			e.Count = e.N / sumN
		}
	}

	var total float64
	for _, e := range estimates {
		total += e.Count
	}
	for i := range estimates {
		if total > 0 {
			estimates[i].Fraction = estimates[i].Count / total
		}
	}
	return mode
}
