package ms

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sidd/internal/taxonomy"
)

func testScheme(t *testing.T) *MappingScheme {
	t.Helper()
	tax := testTaxonomy(t)
	scheme := NewScheme(tax)

	north := build(t, tax, []string{"A1+X/B1/C1", "A1/B1", "A2/B2/C2", "A2/B2"}, WithAttributeOrder(attrA, attrB))
	b2, _ := north.Find("A2", "B2")
	require.NoError(t, north.SetModifier(b2, int(attrC), Modifier{Name: "C", Values: map[string]float64{"C1": 40, "C2": 60}}))
	require.NoError(t, north.SetAnnotations(b2, 120, 900))

	south := build(t, tax, []string{"A1/B1/C1", "A1/B2/C2"}, WithSkip(attrB))

	require.NoError(t, scheme.Assign(Zone{Name: "north"}, north))
	require.NoError(t, scheme.Assign(Zone{Name: "south"}, south))
	return scheme
}

func TestXML_RoundTrip(t *testing.T) {
	scheme := testScheme(t)

	var buf bytes.Buffer
	require.NoError(t, scheme.WriteXML(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "<?xml"))
	assert.Contains(t, buf.String(), `version="1.0.0"`)

	back, err := ReadXML(&buf, scheme.Taxonomy())
	require.NoError(t, err)
	require.Equal(t, scheme.Zones(), back.Zones())
	require.NoError(t, back.Validate())

	for _, z := range scheme.Zones() {
		orig, _ := scheme.Assignment(z.Name)
		got, ok := back.Assignment(z.Name)
		require.True(t, ok, z.Name)
		assert.Equal(t, orig.State(), got.State())
		assert.Equal(t, orig.SkippedAttributes(), got.SkippedAttributes())
		assert.Equal(t, orig.AttributeOrder(), got.AttributeOrder())

		for _, opts := range []LeafOptions{{}, {WithModifiers: true}} {
			want, err := orig.Leaves(opts)
			require.NoError(t, err)
			have, err := got.Leaves(opts)
			require.NoError(t, err)
			require.Len(t, have, len(want))
			for i := range want {
				assert.Equal(t, want[i].Taxonomy, have[i].Taxonomy)
				assert.InDelta(t, want[i].Probability, have[i].Probability, 1e-9)
				assert.InDelta(t, want[i].AvgSize, have[i].AvgSize, 1e-9)
				assert.InDelta(t, want[i].UnitCost, have[i].UnitCost, 1e-9)
			}
		}
	}
}

func TestXML_RoundTripAccumulating(t *testing.T) {
	tax := testTaxonomy(t)
	s := New(tax)
	require.NoError(t, s.AddCase(Case{Taxonomy: "A1+Q/B1"}))
	require.NoError(t, s.AddCase(Case{Taxonomy: "A1/B2"}))
	scheme := NewScheme(tax)
	require.NoError(t, scheme.Assign(Zone{Name: AllZones}, s))

	var buf bytes.Buffer
	require.NoError(t, scheme.WriteXML(&buf))
	if _, err := ReadXML(&buf, nil); err == nil {
		t.Fatal("TEST taxonomy is not registered; expected lookup error")
	}

	buf.Reset()
	require.NoError(t, scheme.WriteXML(&buf))
	back, err := ReadXML(&buf, tax)
	require.NoError(t, err)
	got, _ := back.Assignment(AllZones)
	assert.Equal(t, StateAccumulating, got.State())

	// Finalizing the restored tree must give the same result as the original.
	s.Finalize()
	got.Finalize()
	want, _ := s.Leaves(LeafOptions{WithModifiers: true})
	have, _ := got.Leaves(LeafOptions{WithModifiers: true})
	assert.Equal(t, leafMap(want), leafMap(have))
}

func TestReadXML_Errors(t *testing.T) {
	tax := testTaxonomy(t)
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "future major version",
			doc:  `<mappingscheme version="2.0.0" taxonomy="TEST"></mappingscheme>`,
			want: ErrUnsupportedVersion,
		},
		{
			name: "missing version",
			doc:  `<mappingscheme taxonomy="TEST"></mappingscheme>`,
			want: ErrUnsupportedVersion,
		},
		{
			name: "mixed sibling attributes",
			doc: `<mappingscheme version="1.0.0" taxonomy="TEST"><zone name="z" state="finalized">
				<node value="z" weight="100" count="2">
					<node value="A1" attribute="A" weight="50" count="1"></node>
					<node value="B1" attribute="B" weight="50" count="1"></node>
				</node></zone></mappingscheme>`,
			want: ErrAttributeMismatch,
		},
		{
			name: "bad modifier index",
			doc: `<mappingscheme version="1.0.0" taxonomy="TEST"><zone name="z" state="finalized">
				<node value="z" weight="100" count="1"><modifier index="9" name="Q"></modifier></node>
				</zone></mappingscheme>`,
			want: ErrInvalidModifier,
		},
		{
			name: "modifier on an attribute the tree splits by",
			doc: `<mappingscheme version="1.0.0" taxonomy="TEST"><zone name="z" state="finalized">
				<node value="z" weight="100" count="2"><modifier index="0" name="A"></modifier>
					<node value="A1" attribute="A" weight="50" count="1"></node>
					<node value="A2" attribute="A" weight="50" count="1"></node>
				</node></zone></mappingscheme>`,
			want: ErrInvalidModifier,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadXML(strings.NewReader(tt.doc), tax)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	_, err := ReadXML(strings.NewReader(`<mappingscheme version="1.2.0" taxonomy="GEM"></mappingscheme>`), tax)
	assert.Error(t, err, "taxonomy mismatch")

	ok, err := ReadXML(strings.NewReader(`<mappingscheme version="1.4.2" taxonomy="GEM"></mappingscheme>`), nil)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.GEMName, ok.Taxonomy().Name())
}

func TestMappingScheme(t *testing.T) {
	tax := testTaxonomy(t)
	scheme := NewScheme(tax)
	a := build(t, tax, []string{"A1"})
	b := build(t, tax, []string{"A2"})

	require.NoError(t, scheme.Assign(Zone{Name: "a"}, a))
	require.NoError(t, scheme.Assign(Zone{Name: "b"}, b))
	require.NoError(t, scheme.Assign(Zone{Name: "a"}, b))
	assert.Equal(t, 2, scheme.Len())
	assert.Equal(t, []Zone{{Name: "a"}, {Name: "b"}}, scheme.Zones())

	got, ok := scheme.Assignment("a")
	require.True(t, ok)
	assert.Same(t, b, got)

	assert.True(t, scheme.Remove("a"))
	assert.False(t, scheme.Remove("a"))
	_, ok = scheme.Assignment("a")
	assert.False(t, ok)

	assert.Error(t, scheme.Assign(Zone{}, a))
	assert.Error(t, scheme.Assign(Zone{Name: "x"}, nil))
	assert.Error(t, scheme.Assign(Zone{Name: "x"}, New(taxonomy.GEM())))
}

func TestBuildFromCases(t *testing.T) {
	tax := testTaxonomy(t)
	scheme, rep, err := BuildFromCases(context.Background(), tax, []ZonedCase{
		{Zone: "z1", Case: Case{Taxonomy: "A1/B1"}},
		{Zone: "z2", Case: Case{Taxonomy: "A2/B2"}},
		{Zone: "z1", Case: Case{Taxonomy: "bogus"}},
		{Zone: "z1", Case: Case{Taxonomy: "A2/B1"}},
		{Case: Case{Taxonomy: "A1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Added)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, 2, rep.Skipped[0].Index)

	assert.Equal(t, []Zone{{Name: "z1"}, {Name: "z2"}, {Name: AllZones}}, scheme.Zones())
	z1, _ := scheme.Assignment("z1")
	assert.True(t, z1.Finalized())
	assert.Equal(t, "z1", z1.RootValue())
	leaves, err := z1.Leaves(LeafOptions{})
	require.NoError(t, err)
	assert.Len(t, leaves, 2)
}
