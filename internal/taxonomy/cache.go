package taxonomy

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of distinct strings kept by NewCached when
// size is not positive.
const DefaultCacheSize = 4096

// CachedTaxonomy is a decorator that memoizes Parse results. Survey
// datasets repeat the same taxonomy strings for many buildings, so the
// cache avoids re-tokenizing them.
type CachedTaxonomy struct {
	Taxonomy
	cache *lru.Cache[string, parseResult]
}

type parseResult struct {
	vals []Value
	err  error
}

// NewCached wraps t with an LRU parse cache holding up to size entries.
func NewCached(t Taxonomy, size int) (*CachedTaxonomy, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, parseResult](size)
	if err != nil {
		return nil, fmt.Errorf("create parse cache: %w", err)
	}
	return &CachedTaxonomy{Taxonomy: t, cache: cache}, nil
}

// Parse returns the cached parse of s, parsing and caching on a miss.
// Callers receive their own copy of the values.
func (c *CachedTaxonomy) Parse(s string) ([]Value, error) {
	if r, ok := c.cache.Get(s); ok {
		return CloneValues(r.vals), r.err
	}
	vals, err := c.Taxonomy.Parse(s)
	c.cache.Add(s, parseResult{vals: CloneValues(vals), err: err})
	return vals, err
}

// Len reports the number of cached entries.
func (c *CachedTaxonomy) Len() int {
	return c.cache.Len()
}
