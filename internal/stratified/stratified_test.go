package stratified

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sidd/internal/footprint"
	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/survey"
	"github.com/abhisek/sidd/internal/taxonomy"
)

func stratifiedSurvey(zone string) []survey.Record {
	return []survey.Record{
		{Zone: zone, Group: "g1", Taxonomy: "MUR/LWAL/H:1", Height: 1, Area: 50},
		{Zone: zone, Group: "g1", Taxonomy: "MUR/LWAL/H:1", Height: 1, Area: 50},
		{Zone: zone, Group: "g2", Taxonomy: "CR/LFM/H:3", Height: 3, Area: 200},
		{Zone: zone, Group: "g2", Taxonomy: "CR/LFM/H:3", Height: 3, Area: 200},
		{Zone: zone, Group: "g3", Taxonomy: "MR/LWAL/H:2", Height: 2, Area: 100},
		{Zone: zone, Group: "g3", Taxonomy: "MR/LWAL/H:2", Height: 2, Area: 100},
	}
}

func newCreator(t *testing.T) *Creator {
	t.Helper()
	c, err := New(taxonomy.GEM(), DefaultConfig())
	require.NoError(t, err)
	return c
}

func probabilities(t *testing.T, s *ms.Statistics) map[string]ms.Leaf {
	t.Helper()
	leaves, err := s.Leaves(ms.LeafOptions{})
	require.NoError(t, err)
	out := make(map[string]ms.Leaf, len(leaves))
	for _, l := range leaves {
		out[l.Taxonomy] = l
	}
	return out
}

func TestBuild_AreaProportioning(t *testing.T) {
	fps := []footprint.Footprint{
		{Zone: "z", Area: 1000, Height: 2},
		{Zone: "z", Area: 1300, Height: 1},
	}
	scheme, rep, err := newCreator(t).Build(context.Background(), fps, nil, stratifiedSurvey("z"))
	require.NoError(t, err)
	require.Len(t, rep.Zones, 1)

	zr := rep.Zones[0]
	assert.Equal(t, ModeArea, zr.Mode)
	assert.Equal(t, footprint.Summary{Area: 2300, Count: 2, MeanHeight: 1.5}, zr.Footprint)

	byType := make(map[string]TypeEstimate)
	for _, e := range zr.Types {
		byType[e.Taxonomy] = e
	}
	// g1 low (0.3), g3 mid (0.4), g2 high (0.3).
	assert.InDelta(t, 0.3, byType["MUR/LWAL/H:1"].N, 1e-12)
	assert.InDelta(t, 0.4, byType["MR/LWAL/H:2"].N, 1e-12)
	assert.InDelta(t, 60, byType["CR/LFM/H:3"].A, 1e-9)
	assert.InDelta(t, 180, byType["CR/LFM/H:3"].P, 1e-9)
	assert.InDelta(t, 6, byType["MUR/LWAL/H:1"].Count, 1e-9)
	assert.InDelta(t, 8, byType["MR/LWAL/H:2"].Count, 1e-9)
	assert.InDelta(t, 400, byType["MR/LWAL/H:2"].Cases, 1)

	stats, ok := scheme.Assignment("z")
	require.True(t, ok)
	assert.True(t, stats.Finalized())
	require.NoError(t, stats.Validate())

	leaves := probabilities(t, stats)
	require.Len(t, leaves, 3)
	assert.InDelta(t, 0.3, leaves["MUR/LWAL/H:1"].Probability, 2e-3)
	assert.InDelta(t, 0.4, leaves["MR/LWAL/H:2"].Probability, 2e-3)
	assert.InDelta(t, 50, leaves["MUR/LWAL/H:1"].AvgSize, 1e-9)
	assert.InDelta(t, 600, leaves["CR/LFM/H:3"].AvgSize, 1e-9)
}

func TestBuild_CountFallback(t *testing.T) {
	tests := []struct {
		name string
		fps  []footprint.Footprint
	}{
		{"zero area", []footprint.Footprint{{Zone: "z"}, {Zone: "z"}, {Zone: "z"}}},
		{"no footprints", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, rep, err := newCreator(t).Build(context.Background(), tt.fps, []string{"z"}, stratifiedSurvey("z"))
			require.NoError(t, err)
			assert.Equal(t, ModeCount, rep.Zones[0].Mode)

			stats, _ := scheme.Assignment("z")
			leaves := probabilities(t, stats)
			assert.InDelta(t, 0.3, leaves["CR/LFM/H:3"].Probability, 2e-3)
			assert.InDelta(t, 0.4, leaves["MR/LWAL/H:2"].Probability, 2e-3)
		})
	}
}

func TestBuild_CustomWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StrataWeights = [Strata]float64{1, 1, 1}
	c, err := New(taxonomy.GEM(), cfg)
	require.NoError(t, err)

	scheme, _, err := c.Build(context.Background(), nil, nil, stratifiedSurvey(""))
	require.NoError(t, err)
	stats, ok := scheme.Assignment(ms.AllZones)
	require.True(t, ok)
	for _, l := range probabilities(t, stats) {
		assert.InDelta(t, 1.0/3, l.Probability, 2e-3, l.Taxonomy)
	}
}

func TestBuild_Preconditions(t *testing.T) {
	two := stratifiedSurvey("z")[:4]
	uneven := append(stratifiedSurvey("z"), survey.Record{Zone: "z", Group: "g3", Taxonomy: "W", Height: 1})

	tests := []struct {
		name    string
		records []survey.Record
		zones   []string
	}{
		{"two groups", two, nil},
		{"uneven groups", uneven, nil},
		{"zone without survey", stratifiedSurvey("z"), []string{"z", "empty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := newCreator(t).Build(context.Background(), nil, tt.zones, tt.records)
			var pe *PreconditionError
			if !errors.As(err, &pe) {
				t.Fatalf("got %v, want *PreconditionError", err)
			}
		})
	}
}

func TestBuild_SkipsIncompleteRecords(t *testing.T) {
	records := append(stratifiedSurvey("z"),
		survey.Record{Zone: "z", Taxonomy: "W", Height: 1},
		survey.Record{Zone: "z", Group: "g1", Taxonomy: "W"},
		survey.Record{Zone: "z", Group: "g1", Taxonomy: "NOPE", Height: 1},
		survey.Record{Zone: "z", Group: "g1", Height: 1},
	)
	_, rep, err := newCreator(t).Build(context.Background(), nil, nil, records)
	require.NoError(t, err)
	require.Len(t, rep.Skipped, 4)
	assert.Equal(t, 6, rep.Skipped[0].Index)
	assert.Equal(t, "missing sampling group", rep.Skipped[0].Reason)
	assert.Equal(t, "missing height", rep.Skipped[1].Reason)
	assert.Equal(t, "missing taxonomy", rep.Skipped[3].Reason)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.StrataWeights = [Strata]float64{0, 0, 0}
	bad.Precision = 0
	_, err := New(taxonomy.GEM(), bad)
	assert.ErrorContains(t, err, "strata weights sum to zero")
	assert.ErrorContains(t, err, "precision")
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newCreator(t).Build(ctx, nil, nil, stratifiedSurvey("z"))
	assert.ErrorIs(t, err, context.Canceled)
}
