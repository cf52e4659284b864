package ms

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sidd/internal/taxonomy"
)

func TestAddBranch_Compatible(t *testing.T) {
	tax := testTaxonomy(t)
	dst := build(t, tax, []string{"A1/B1", "A1/B2"}, WithAttributeOrder(attrA, attrB))
	src := build(t, tax, []string{"A1/B1", "A2/B2"}, WithAttributeOrder(attrA, attrB))

	require.NoError(t, dst.Merge(src))
	require.NoError(t, dst.Validate())

	leaves, err := dst.Leaves(LeafOptions{})
	require.NoError(t, err)
	got := leafMap(leaves)
	require.Len(t, got, 3)
	// A1 now holds 3 of 4 buildings, B1 two of its three.
	assert.InDelta(t, 0.5, got["A1/B1"], 1e-9)
	assert.InDelta(t, 0.25, got["A1/B2"], 1e-9)
	assert.InDelta(t, 0.25, got["A2/B2"], 1e-9)
	assert.InDelta(t, 1.0, sumProbabilities(leaves), 1e-9)
}

func TestAddBranch_AttributeMismatch(t *testing.T) {
	tax := testTaxonomy(t)
	dst := build(t, tax, []string{"A1/B1"}, WithAttributeOrder(attrA, attrB))
	src := build(t, tax, []string{"A1/B1"}, WithAttributeOrder(attrB, attrA))
	before := dst.Len()

	err := dst.AddBranch(dst.Root(), src, src.Root())
	if !errors.Is(err, ErrAttributeMismatch) {
		t.Fatalf("got %v, want ErrAttributeMismatch", err)
	}
	var ne *NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "add_branch", ne.Op)
	assert.Equal(t, before, dst.Len(), "tree must be unchanged")
}

func TestAddBranch_IntoLeafExpectsNextAttribute(t *testing.T) {
	tax := testTaxonomy(t)
	dst := build(t, tax, []string{"A1"}, WithAttributeOrder(attrA, attrB))
	// A1 has an empty B child; graft C values below it.
	empty, ok := dst.Find("A1", "")
	require.True(t, ok)

	src := build(t, tax, []string{"C1"}, WithAttributeOrder(attrC))
	err := dst.AddBranch(empty, src, src.Root())
	assert.ErrorIs(t, err, ErrAttributeMismatch, "B is the last level of dst")

	src2 := build(t, tax, []string{"A1/B1/C2"}, WithAttributeOrder(attrA, attrB, attrC))
	b1, _ := src2.Find("A1", "B1")
	dst3 := build(t, tax, []string{"A1/B1"}, WithAttributeOrder(attrA, attrB, attrC))
	leaf, _ := dst3.Find("A1", "B1")
	// dst3's B1 node already has an empty C child, source splits by C too.
	require.NoError(t, dst3.AddBranch(leaf, src2, b1))
	leaves, err := dst3.Leaves(LeafOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sumProbabilities(leaves), 1e-9)
	assert.Contains(t, leafMap(leaves), "A1/B1/C2")
}

func TestAddBranch_TaxonomyMismatch(t *testing.T) {
	other, err := taxonomy.New("OTHER", taxonomy.Attribute{Name: "A", Codes: []taxonomy.Code{{Prefix: "A1"}}})
	require.NoError(t, err)
	dst := build(t, testTaxonomy(t), []string{"A1"})
	src := build(t, other, []string{"A1"})
	assert.ErrorIs(t, dst.AddBranch(dst.Root(), src, src.Root()), ErrAttributeMismatch)
}

func TestAddBranch_Self(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1/B1", "A2/B2"}, WithAttributeOrder(attrA, attrB))
	require.NoError(t, s.Merge(s))
	leaves, err := s.Leaves(LeafOptions{})
	require.NoError(t, err)
	got := leafMap(leaves)
	assert.InDelta(t, 0.5, got["A1/B1"], 1e-9)
	assert.InDelta(t, 0.5, got["A2/B2"], 1e-9)
}

func TestDeleteBranch(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1/B1", "A1/B2", "A2/B1"}, WithAttributeOrder(attrA, attrB))
	a2, _ := s.Find("A2")
	require.NoError(t, s.DeleteBranch(a2))

	assert.InDelta(t, 100, weightOf(t, s, "A1"), 1e-9)
	if _, err := s.Node(a2); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("deleted node still reachable: %v", err)
	}
	assert.Error(t, s.DeleteBranch(s.Root()))
	assert.ErrorIs(t, s.DeleteBranch(a2), ErrUnknownNode)
}

func TestUpdateChildren(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1/B1", "A2/B1"}, WithAttributeOrder(attrA, attrB))
	a1, _ := s.Find("A1")
	require.NoError(t, s.UpdateChildren(a1, attrB, []string{"B1", "B2"}, []float64{30, 70}))

	assert.InDelta(t, 30, weightOf(t, s, "A1", "B1"), 1e-9)
	assert.InDelta(t, 70, weightOf(t, s, "A1", "B2"), 1e-9)

	leaves, err := s.Leaves(LeafOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.15, leafMap(leaves)["A1/B1"], 1e-9)

	tests := []struct {
		name    string
		attr    taxonomy.AttributeID
		values  []string
		weights []float64
	}{
		{"length mismatch", attrB, []string{"B1"}, []float64{50, 50}},
		{"duplicate value", attrB, []string{"B1", "B1"}, []float64{50, 50}},
		{"negative weight", attrB, []string{"B1", "B2"}, []float64{-10, 110}},
		{"unknown attribute", taxonomy.AttributeID(42), []string{"B1"}, []float64{100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateChildren(a1, tt.attr, tt.values, tt.weights)
			assert.True(t, IsStructural(err), "got %v", err)
		})
	}
}

func TestModifiers(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1/B1", "A2/B1"}, WithAttributeOrder(attrA, attrB))
	b1, _ := s.Find("A1", "B1")

	require.NoError(t, s.SetModifier(b1, int(attrC), Modifier{Values: map[string]float64{"C1": 1, "C2": 3}}))
	n, err := s.Node(b1)
	require.NoError(t, err)
	m := n.Modifiers[int(attrC)]
	assert.Equal(t, "C", m.Name)
	assert.InDelta(t, 25, m.Values["C1"], 1e-9)
	assert.InDelta(t, 75, m.Values["C2"], 1e-9)
	assert.Equal(t, []string{"C1", "C2"}, m.SortedValues())

	leaves, err := s.Leaves(LeafOptions{WithModifiers: true})
	require.NoError(t, err)
	got := leafMap(leaves)
	assert.InDelta(t, 0.125, got["A1/B1/C1"], 1e-9)
	assert.InDelta(t, 0.375, got["A1/B1/C2"], 1e-9)
	assert.InDelta(t, 1.0, sumProbabilities(leaves), 1e-9)

	err = s.SetModifier(b1, 17, Modifier{Values: map[string]float64{"X": 1}})
	assert.ErrorIs(t, err, ErrInvalidModifier)

	require.NoError(t, s.RemoveModifier(b1, int(attrC)))
	assert.ErrorIs(t, s.RemoveModifier(b1, int(attrC)), ErrInvalidModifier)
	leaves, err = s.Leaves(LeafOptions{WithModifiers: true})
	require.NoError(t, err)
	assert.Len(t, leaves, 2)
}

func TestSetModifier_AttributeOnPath(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1/B1", "A1/B2"}, WithAttributeOrder(attrA, attrB))
	a1, _ := s.Find("A1")
	b1, _ := s.Find("A1", "B1")

	err := s.SetModifier(a1, int(attrB), Modifier{Values: map[string]float64{"B1": 50, "B2": 50}})
	assert.ErrorIs(t, err, ErrInvalidModifier, "B splits the tree below A1")
	err = s.SetModifier(b1, int(attrA), Modifier{Values: map[string]float64{"A2": 100}})
	assert.ErrorIs(t, err, ErrInvalidModifier, "A splits the tree above B1")

	n, err := s.Node(a1)
	require.NoError(t, err)
	assert.Empty(t, n.Modifiers)

	require.NoError(t, s.SetModifier(a1, int(attrA), Modifier{Values: map[string]float64{"X": 100}}))
	require.NoError(t, s.SetModifier(a1, int(attrC), Modifier{Values: map[string]float64{"C1": 100}}))
	require.NoError(t, s.Validate())
}

func TestAddBranch_MergesModifierCounts(t *testing.T) {
	tax := testTaxonomy(t)
	src := build(t, tax, slices.Repeat([]string{"A1+Y/B1"}, 50), WithAttributeOrder(attrA, attrB))

	t.Run("explicit target", func(t *testing.T) {
		dst := build(t, tax, []string{"A1/B1"}, WithAttributeOrder(attrA, attrB))
		a1, _ := dst.Find("A1")
		require.NoError(t, dst.SetModifier(a1, int(attrA), Modifier{Values: map[string]float64{"X": 10, NoModifier: 90}}))

		require.NoError(t, dst.Merge(src))
		require.NoError(t, dst.Validate())

		n, err := dst.Node(a1)
		require.NoError(t, err)
		got := n.Modifiers[int(attrA)].Values
		// One building split 10/90 plus fifty recorded Y.
		assert.InDelta(t, 100*50.0/51, got["Y"], 1e-9)
		assert.InDelta(t, 100*0.1/51, got["X"], 1e-9)
		assert.InDelta(t, 100*0.9/51, got[NoModifier], 1e-9)
	})

	t.Run("target without modifier", func(t *testing.T) {
		dst := build(t, tax, slices.Repeat([]string{"A1/B1"}, 50), WithAttributeOrder(attrA, attrB))
		a1, _ := dst.Find("A1")

		require.NoError(t, dst.Merge(src))

		n, err := dst.Node(a1)
		require.NoError(t, err)
		got := n.Modifiers[int(attrA)].Values
		assert.InDelta(t, 50, got["Y"], 1e-9)
		assert.InDelta(t, 50, got[NoModifier], 1e-9)
	})
}

func TestClone_Independent(t *testing.T) {
	s := build(t, testTaxonomy(t), []string{"A1/B1", "A2/B1"}, WithAttributeOrder(attrA, attrB))
	c := s.Clone()
	a2, _ := c.Find("A2")
	require.NoError(t, c.DeleteBranch(a2))

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 3, c.Len())
}
