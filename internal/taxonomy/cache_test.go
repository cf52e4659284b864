package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTaxonomy struct {
	Taxonomy
	calls int
}

func (c *countingTaxonomy) Parse(s string) ([]Value, error) {
	c.calls++
	return c.Taxonomy.Parse(s)
}

func TestCachedTaxonomy_Hits(t *testing.T) {
	inner := &countingTaxonomy{Taxonomy: GEM()}
	cached, err := NewCached(inner, 8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		vals, err := cached.Parse("MUR/H:2/RES")
		require.NoError(t, err)
		require.Len(t, vals, 3)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, cached.Len())
}

func TestCachedTaxonomy_CachesErrors(t *testing.T) {
	inner := &countingTaxonomy{Taxonomy: GEM()}
	cached, err := NewCached(inner, 8)
	require.NoError(t, err)

	_, err1 := cached.Parse("NOPE")
	_, err2 := cached.Parse("NOPE")
	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedTaxonomy_ReturnsCopies(t *testing.T) {
	cached, err := NewCached(GEM(), 0)
	require.NoError(t, err)

	vals, err := cached.Parse("MR+CIP/RES")
	require.NoError(t, err)
	vals[0].Qualifiers[0] = "MUTATED"
	vals[0].Code = "X"

	again, err := cached.Parse("MR+CIP/RES")
	require.NoError(t, err)
	assert.Equal(t, "MR", again[0].Code)
	assert.Equal(t, []string{"CIP"}, again[0].Qualifiers)
}
