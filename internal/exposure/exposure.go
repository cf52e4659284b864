// Package exposure applies a mapping scheme to building counts per zone
// or grid cell, producing synthetic exposure records.
package exposure

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/abhisek/sidd/internal/footprint"
	"github.com/abhisek/sidd/internal/metrics"
	"github.com/abhisek/sidd/internal/ms"
)

// ZoneCount is the number of buildings in one zone, or one cell of a zone.
type ZoneCount struct {
	Zone  string `json:"zone"`
	Cell  string `json:"cell,omitempty"`
	Count int    `json:"count"`
}

// Record is the exposure of one building type in one zone or cell.
type Record struct {
	Zone     string  `json:"zone"`
	Cell     string  `json:"cell,omitempty"`
	Taxonomy string  `json:"taxonomy"`
	Count    float64 `json:"count"`
	Area     float64 `json:"area"` // Count × average floor area
	Cost     float64 `json:"cost"` // Area × unit cost
}

// Options controls sampling.
type Options struct {
	Policy ms.Policy
	// Source seeds RandomWalk. Nil uses a time-seeded source per call.
	Source  rand.Source
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// Progress, if set, is called after each input with the number done.
	Progress func(done int)
}

// Apply samples every input against the zone's statistics. An input whose
// zone has no assignment falls back to the ALL assignment when the scheme
// has one, and fails with *ZoneError otherwise. Building types sampled to
// zero buildings are omitted.
func Apply(ctx context.Context, scheme *ms.MappingScheme, counts []ZoneCount, opts Options) ([]Record, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "exposure"))

	var out []Record
	for i, zc := range counts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats, err := lookup(scheme, zc.Zone, opts.Metrics)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		samples, err := stats.Samples(ctx, zc.Count, opts.Policy, opts.Source)
		if err != nil {
			return nil, fmt.Errorf("zone %q cell %q: %w", zc.Zone, zc.Cell, err)
		}
		opts.Metrics.ObserveSamples(opts.Policy, float64(zc.Count), time.Since(start))

		for _, s := range samples {
			if s.Count == 0 {
				continue
			}
			area := s.Count * s.AvgSize
			out = append(out, Record{
				Zone:     zc.Zone,
				Cell:     zc.Cell,
				Taxonomy: s.Taxonomy,
				Count:    s.Count,
				Area:     area,
				Cost:     area * s.AvgCost,
			})
		}
		logger.Debug("sampled",
			slog.String("zone", zc.Zone),
			slog.String("cell", zc.Cell),
			slog.Int("buildings", zc.Count),
			slog.Int("types", len(samples)))
		if opts.Progress != nil {
			opts.Progress(i + 1)
		}
	}
	return out, nil
}

func lookup(scheme *ms.MappingScheme, zone string, m *metrics.Metrics) (*ms.Statistics, error) {
	if s, ok := scheme.Assignment(zone); ok {
		return s, nil
	}
	if s, ok := scheme.Assignment(ms.AllZones); ok {
		m.ObserveZoneFallback()
		return s, nil
	}
	return nil, &ZoneError{Zone: zone}
}

// CountFootprints turns footprints into one ZoneCount per zone, in first-seen
// order. Footprints outside every zone are counted under the empty zone.
func CountFootprints(fps []footprint.Footprint) []ZoneCount {
	var (
		out   []ZoneCount
		index = make(map[string]int)
	)
	for _, fp := range fps {
		i, ok := index[fp.Zone]
		if !ok {
			i = len(out)
			index[fp.Zone] = i
			out = append(out, ZoneCount{Zone: fp.Zone})
		}
		out[i].Count++
	}
	return out
}

// Totals sums counts, areas and costs over records.
func Totals(records []Record) (count, area, cost float64) {
	for _, r := range records {
		count += r.Count
		area += r.Area
		cost += r.Cost
	}
	return count, area, cost
}
