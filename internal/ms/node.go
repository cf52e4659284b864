package ms

import (
	"maps"
	"slices"

	"github.com/abhisek/sidd/internal/taxonomy"
)

// NodeID is a handle to a node in a Statistics arena.
type NodeID int

// NoNode is the parent handle of the root.
const NoNode NodeID = -1

const rootID NodeID = 0

// Node is a read-only view of one tree node.
type Node struct {
	ID        NodeID
	Value     string
	Attribute taxonomy.AttributeID
	Weight    float64 // raw count before Finalize, percentage among siblings after
	Count     float64
	Level     int
	Parent    NodeID
	Children  []NodeID
	Modifiers map[int]Modifier
	AvgSize   float64
	UnitCost  float64
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return len(n.Children) == 0 }

type node struct {
	value     string
	attribute taxonomy.AttributeID
	count     float64
	weight    float64
	level     int
	parent    NodeID
	children  []NodeID
	modifiers map[int]*modifier
	size      annotation
	cost      annotation
	deleted   bool
}

// annotation accumulates a count-weighted mean of an auxiliary per-building
// quantity such as floor area or replacement cost.
type annotation struct {
	sum float64
	n   float64
}

func (a *annotation) add(v, w float64) {
	if v <= 0 || w <= 0 {
		return
	}
	a.sum += v * w
	a.n += w
}

func (a *annotation) merge(o annotation) {
	a.sum += o.sum
	a.n += o.n
}

func (a annotation) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / a.n
}

func setAnnotation(v float64) annotation {
	if v <= 0 {
		return annotation{}
	}
	return annotation{sum: v, n: 1}
}

func (n *node) view(id NodeID, finalized bool) Node {
	v := Node{
		ID:        id,
		Value:     n.value,
		Attribute: n.attribute,
		Weight:    n.weight,
		Count:     n.count,
		Level:     n.level,
		Parent:    n.parent,
		Children:  slices.Clone(n.children),
		AvgSize:   n.size.mean(),
		UnitCost:  n.cost.mean(),
	}
	if len(n.modifiers) > 0 {
		v.Modifiers = make(map[int]Modifier, len(n.modifiers))
		for idx, m := range n.modifiers {
			v.Modifiers[idx] = m.view(finalized)
		}
	}
	return v
}

func (n *node) modifier(idx int, name string, attr taxonomy.AttributeID) *modifier {
	if n.modifiers == nil {
		n.modifiers = make(map[int]*modifier)
	}
	m, ok := n.modifiers[idx]
	if !ok {
		m = newModifier(name, attr)
		n.modifiers[idx] = m
	}
	return m
}

func cloneModifiers(src map[int]*modifier) map[int]*modifier {
	if len(src) == 0 {
		return nil
	}
	out := make(map[int]*modifier, len(src))
	for idx, m := range src {
		out[idx] = m.clone()
	}
	return out
}

func sortedModifierIndexes(m map[int]*modifier) []int {
	return slices.Sorted(maps.Keys(m))
}
