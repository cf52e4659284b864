package ms

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamples_RandomWalkConservesTotal(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{
		"A1+X/B1/C1", "A1/B1/C2", "A1/B2/C1", "A2/B1/C1", "A2/B2/C2", "A2/B2/C2",
	})

	for _, total := range []int{0, 1, 2, 7, 100, 1013} {
		samples, err := s.Samples(context.Background(), total, RandomWalk, NewSource(uint64(total)))
		if err != nil {
			t.Fatalf("Samples(%d): %v", total, err)
		}
		var sum float64
		for _, smp := range samples {
			if smp.Count != math.Trunc(smp.Count) {
				t.Errorf("total %d: non-integer count %v for %s", total, smp.Count, smp.Taxonomy)
			}
			sum += smp.Count
		}
		if int(sum) != total {
			t.Errorf("total %d: samples sum to %v", total, sum)
		}
	}
}

func TestSamples_RandomWalkDeterministic(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1/B1", "A1/B2", "A2/B1", "A2/B2", "A2/B2"})

	a, err := s.Samples(context.Background(), 500, RandomWalk, NewSource(42))
	require.NoError(t, err)
	b, err := s.Samples(context.Background(), 500, RandomWalk, NewSource(42))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSamples_Fraction(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1/B1", "A1/B2", "A2/B1", "A2/B2", "A2/B2", "A2/B2", "A1/B1"})
	leaves, err := s.Leaves(LeafOptions{WithModifiers: true})
	require.NoError(t, err)

	const total = 13
	frac, err := s.Samples(context.Background(), total, Fraction, nil)
	require.NoError(t, err)
	rounded, err := s.Samples(context.Background(), total, FractionRounded, nil)
	require.NoError(t, err)

	require.Len(t, frac, len(leaves))
	for i, l := range leaves {
		assert.InDelta(t, l.Probability*total, frac[i].Count, 1e-12, l.Taxonomy)
		assert.Equal(t, math.Round(l.Probability*total), rounded[i].Count, l.Taxonomy)
		assert.Equal(t, l.Taxonomy, frac[i].Taxonomy)
	}
}

func TestSamples_Annotations(t *testing.T) {
	s := New(testTaxonomy(t), WithAttributeOrder(attrA))
	require.NoError(t, s.AddCase(Case{Taxonomy: "A1", Size: 80, Cost: 500}))
	s.Finalize()

	samples, err := s.Samples(context.Background(), 4, Fraction, nil)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, Sample{Taxonomy: "A1", Count: 4, AvgSize: 80, AvgCost: 500}, samples[0])
}

func TestSamples_Errors(t *testing.T) {
	tax := testTaxonomy(t)

	acc := New(tax)
	require.NoError(t, acc.AddCase(Case{Taxonomy: "A1"}))
	if _, err := acc.Samples(context.Background(), 5, RandomWalk, nil); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("accumulating: got %v, want ErrNotFinalized", err)
	}

	empty := New(tax)
	empty.Finalize()
	if _, err := empty.Samples(context.Background(), 5, RandomWalk, nil); !errors.Is(err, ErrNoLeaves) {
		t.Errorf("empty: got %v, want ErrNoLeaves", err)
	}

	s := build(t, tax, []string{"A1"})
	if _, err := s.Samples(context.Background(), -1, Fraction, nil); err == nil {
		t.Error("negative total: expected error")
	}
	if _, err := s.Samples(context.Background(), 1, Policy(9), nil); err == nil {
		t.Error("unknown policy: expected error")
	}
}

func TestSamples_RandomWalkCancelled(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1", "A2"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Samples(ctx, 10, RandomWalk, NewSource(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
		err  bool
	}{
		{"random-walk", RandomWalk, false},
		{"RandomWalk", RandomWalk, false},
		{"", RandomWalk, false},
		{"fraction", Fraction, false},
		{"Fraction_Rounded", FractionRounded, false},
		{"monte-carlo", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("ParsePolicy(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if back, _ := ParsePolicy(got.String()); back != got {
			t.Errorf("%v does not round-trip through String", got)
		}
	}
}
