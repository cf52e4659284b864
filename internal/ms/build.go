package ms

import (
	"context"
	"fmt"

	"github.com/abhisek/sidd/internal/taxonomy"
)

// ZonedCase is a case tagged with the zone it was observed in. An empty
// zone means the scheme is not split by zone.
type ZonedCase struct {
	Zone string
	Case
}

// BuildFromCases aggregates cases into one finalized tree per zone, in
// first-seen zone order. Data-quality failures are skipped and reported
// with their index into cases; structural errors abort the build.
func BuildFromCases(ctx context.Context, tax taxonomy.Taxonomy, cases []ZonedCase, opts ...Option) (*MappingScheme, Report, error) {
	type batch struct {
		cases   []Case
		indexes []int
	}
	var (
		order   []string
		batches = make(map[string]*batch)
	)
	for i, c := range cases {
		zone := c.Zone
		if zone == "" {
			zone = AllZones
		}
		b, ok := batches[zone]
		if !ok {
			b = &batch{}
			batches[zone] = b
			order = append(order, zone)
		}
		b.cases = append(b.cases, c.Case)
		b.indexes = append(b.indexes, i)
	}

	scheme := NewScheme(tax)
	var total Report
	for _, zone := range order {
		b := batches[zone]
		s := New(tax, opts...)
		rep, err := s.AddCases(ctx, b.cases)
		total.Added += rep.Added
		for _, sk := range rep.Skipped {
			sk.Index = b.indexes[sk.Index]
			total.Skipped = append(total.Skipped, sk)
		}
		if err != nil {
			return nil, total, fmt.Errorf("zone %q: %w", zone, err)
		}
		s.Finalize()
		if err := scheme.Assign(Zone{Name: zone}, s); err != nil {
			return nil, total, err
		}
	}
	return scheme, total, nil
}
