package ms

import (
	"slices"
	"strings"

	"github.com/abhisek/sidd/internal/taxonomy"
)

// LeafOptions controls leaf collection. The zero value collects leaves
// without modifiers, composed in taxonomy attribute order.
type LeafOptions struct {
	// Refresh forces recomputation even when a cached list exists.
	Refresh bool
	// WithModifiers splits each leaf into one entry per combination of the
	// modifier values attached along its path.
	WithModifiers bool
	// KeepTreeOrder composes leaf strings in tree level order instead of
	// taxonomy attribute order.
	KeepTreeOrder bool
	// FillMissing adds a leaf with the attribute's unknown code wherever a
	// sibling group carries less than 100% weight, so probabilities still
	// sum to one.
	FillMissing bool
}

// Leaf is one building type with its probability within the tree.
type Leaf struct {
	Taxonomy    string
	Probability float64
	Values      []taxonomy.Value
	Node        NodeID
	AvgSize     float64
	UnitCost    float64
}

// Leaves returns the flattened leaf list of a finalized tree. Results are
// cached per option set until the tree is mutated. Leaves whose path
// carries zero weight are omitted.
func (s *Statistics) Leaves(opts LeafOptions) ([]Leaf, error) {
	if s.state != StateFinalized {
		return nil, ErrNotFinalized
	}

	key := opts
	key.Refresh = false

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.leaves[key]; ok && !opts.Refresh {
		return cloneLeaves(cached), nil
	}

	leaves := s.collectLeaves(key)
	if s.leaves == nil {
		s.leaves = make(map[LeafOptions][]Leaf)
	}
	s.leaves[key] = leaves
	return cloneLeaves(leaves), nil
}

// RefreshLeaves recomputes the leaf list for opts, replacing the cache.
func (s *Statistics) RefreshLeaves(opts LeafOptions) ([]Leaf, error) {
	opts.Refresh = true
	return s.Leaves(opts)
}

func (s *Statistics) collectLeaves(opts LeafOptions) []Leaf {
	var (
		out  []Leaf
		path []NodeID
	)

	var walk func(id NodeID, p float64)
	walk = func(id NodeID, p float64) {
		n := &s.nodes[id]
		if id != rootID {
			path = append(path, id)
			defer func() { path = path[:len(path)-1] }()
		}

		if len(n.children) == 0 {
			if id != rootID {
				out = s.appendLeaf(out, path, p, opts)
			}
			return
		}

		var sum float64
		for _, c := range n.children {
			child := &s.nodes[c]
			sum += child.weight
			if cp := p * child.weight / 100; cp > 0 {
				walk(c, cp)
			}
		}

		if opts.FillMissing && sum < 100-weightTolerance {
			attr := s.nodes[n.children[0]].attribute
			var unknown string
			if a, ok := s.tax.Attribute(attr); ok {
				unknown = a.Unknown
			}
			vals := append(s.pathValues(path), taxonomy.Value{Attribute: attr, Code: unknown})
			out = append(out, Leaf{
				Taxonomy:    s.compose(vals, opts),
				Probability: p * (100 - sum) / 100,
				Values:      vals,
				Node:        id,
			})
		}
	}
	walk(rootID, 1)
	return out
}

func (s *Statistics) appendLeaf(out []Leaf, path []NodeID, p float64, opts LeafOptions) []Leaf {
	leafID := path[len(path)-1]
	leaf := &s.nodes[leafID]
	base := s.pathValues(path)

	emit := func(vals []taxonomy.Value, prob float64) {
		out = append(out, Leaf{
			Taxonomy:    s.compose(vals, opts),
			Probability: prob,
			Values:      vals,
			Node:        leafID,
			AvgSize:     leaf.size.mean(),
			UnitCost:    leaf.cost.mean(),
		})
	}

	if !opts.WithModifiers {
		emit(base, p)
		return out
	}

	var mods []*modifier
	for _, id := range path {
		n := &s.nodes[id]
		for _, idx := range sortedModifierIndexes(n.modifiers) {
			mods = append(mods, n.modifiers[idx])
		}
	}

	var expand func(i int, vals []taxonomy.Value, prob float64)
	expand = func(i int, vals []taxonomy.Value, prob float64) {
		if i == len(mods) {
			emit(vals, prob)
			return
		}
		m := mods[i]
		for _, v := range sortedKeys(m.weights) {
			w := m.weights[v]
			if w <= 0 {
				continue
			}
			expand(i+1, applyModifier(vals, m.attr, v), prob*w/100)
		}
	}
	expand(0, base, p)
	return out
}

// applyModifier folds modifier value v into vals: qualifiers of an
// attribute already on the path, or a new attribute value otherwise.
func applyModifier(vals []taxonomy.Value, attr taxonomy.AttributeID, v string) []taxonomy.Value {
	out := taxonomy.CloneValues(vals)
	if v == NoModifier {
		return out
	}
	for i := range out {
		if out[i].Attribute != attr {
			continue
		}
		if out[i].Code == "" {
			out[i].Code = v
		} else {
			out[i].Qualifiers = append(out[i].Qualifiers, strings.Split(v, taxonomy.QualifierSeparator)...)
		}
		return out
	}
	return append(out, taxonomy.Value{Attribute: attr, Code: v})
}

func (s *Statistics) pathValues(path []NodeID) []taxonomy.Value {
	vals := make([]taxonomy.Value, 0, len(path))
	for _, id := range path {
		n := &s.nodes[id]
		vals = append(vals, taxonomy.Value{Attribute: n.attribute, Code: n.value})
	}
	return vals
}

func (s *Statistics) compose(vals []taxonomy.Value, opts LeafOptions) string {
	if !opts.KeepTreeOrder {
		vals = taxonomy.CloneValues(vals)
		taxonomy.SortValues(vals)
	}
	return s.tax.Compose(vals)
}

func cloneLeaves(leaves []Leaf) []Leaf {
	out := slices.Clone(leaves)
	for i := range out {
		out[i].Values = taxonomy.CloneValues(out[i].Values)
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
