package ms

import (
	"maps"
	"slices"

	"github.com/abhisek/sidd/internal/taxonomy"
)

// NoModifier is the modifier value recorded for buildings that carry no
// secondary breakdown.
const NoModifier = ""

// Modifier is a secondary weighted distribution attached to a node. Its
// slot index is the attribute it breaks down: when that is the node's own
// attribute the values are qualifier tails of the node's code (MR + CIP),
// otherwise each value is a code of a further attribute.
type Modifier struct {
	Name      string
	Attribute taxonomy.AttributeID
	Values    map[string]float64 // percentage weights after Finalize
}

// SortedValues returns the modifier value keys in lexical order.
func (m Modifier) SortedValues() []string {
	return slices.Sorted(maps.Keys(m.Values))
}

type modifier struct {
	name    string
	attr    taxonomy.AttributeID
	counts  map[string]float64
	weights map[string]float64
	// explicit modifiers were set as complete distributions and do not
	// receive the unrecorded remainder of their node.
	explicit bool
}

func newModifier(name string, attr taxonomy.AttributeID) *modifier {
	return &modifier{
		name:    name,
		attr:    attr,
		counts:  make(map[string]float64),
		weights: make(map[string]float64),
	}
}

func (m *modifier) add(value string, w float64) {
	m.counts[value] += w
}

// finalize converts counts into percentages. Buildings of the node that
// never recorded a value for this modifier are counted under NoModifier.
func (m *modifier) finalize(nodeCount float64) {
	counts := maps.Clone(m.counts)
	var total float64
	for _, c := range counts {
		total += c
	}
	if !m.explicit && nodeCount-total > weightTolerance {
		counts[NoModifier] += nodeCount - total
		total = nodeCount
	}

	m.weights = make(map[string]float64, len(counts))
	for v, c := range counts {
		if total > 0 {
			m.weights[v] = 100 * c / total
		} else {
			m.weights[v] = 0
		}
	}
}

// toCounts rescales an explicit distribution into building counts for a
// node of nodeCount buildings, so it can be merged with recorded counts.
func (m *modifier) toCounts(nodeCount float64) {
	if !m.explicit {
		return
	}
	var total float64
	for _, c := range m.counts {
		total += c
	}
	counts := make(map[string]float64, len(m.counts))
	for v, c := range m.counts {
		if total > 0 {
			counts[v] = c * nodeCount / total
		}
	}
	m.counts = counts
	m.explicit = false
}

// asCounts returns m with counts in buildings for a node of nodeCount.
func (m *modifier) asCounts(nodeCount float64) *modifier {
	c := m.clone()
	c.toCounts(nodeCount)
	return c
}

func (m *modifier) merge(o *modifier) {
	for v, c := range o.counts {
		m.counts[v] += c
	}
}

func (m *modifier) clone() *modifier {
	return &modifier{
		name:     m.name,
		attr:     m.attr,
		counts:   maps.Clone(m.counts),
		weights:  maps.Clone(m.weights),
		explicit: m.explicit,
	}
}

func (m *modifier) view(finalized bool) Modifier {
	src := m.counts
	if finalized {
		src = m.weights
	}
	return Modifier{Name: m.name, Attribute: m.attr, Values: maps.Clone(src)}
}
