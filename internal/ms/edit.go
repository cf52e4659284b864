package ms

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/abhisek/sidd/internal/taxonomy"
)

// AddBranch grafts a deep copy of the children of srcNode (in src) under
// target. Children whose value already exists under target are merged
// recursively. The grafted attribute must be the one expected below target;
// otherwise a *NodeError wrapping ErrAttributeMismatch is returned and the
// tree is unchanged. When the tree is finalized the affected sibling groups
// are renormalized from counts.
func (s *Statistics) AddBranch(target NodeID, src *Statistics, srcNode NodeID) error {
	if _, err := s.get(target); err != nil {
		return &NodeError{Op: "add_branch", Err: err}
	}
	if src == s {
		src = s.Clone()
	}
	if _, err := src.get(srcNode); err != nil {
		return &NodeError{Op: "add_branch", Err: fmt.Errorf("source: %w", err)}
	}
	if src.tax.Name() != s.tax.Name() {
		return &NodeError{
			Op:   "add_branch",
			Path: s.path(target),
			Err:  fmt.Errorf("%w: source taxonomy %s, target taxonomy %s", ErrAttributeMismatch, src.tax.Name(), s.tax.Name()),
		}
	}
	if err := s.checkGraft(target, src, srcNode); err != nil {
		return err
	}
	if len(src.nodes[srcNode].children) == 0 {
		return nil
	}

	if s.state == StateEmpty {
		s.state = StateAccumulating
	}
	s.graft(target, src, srcNode)
	if s.Finalized() {
		s.finalizeNode(target)
	}
	s.invalidate()
	return nil
}

// Merge grafts every first-level branch of other into s.
func (s *Statistics) Merge(other *Statistics) error {
	return s.AddBranch(rootID, other, other.Root())
}

func (s *Statistics) checkGraft(dst NodeID, src *Statistics, srcID NodeID) error {
	sn := &src.nodes[srcID]
	if len(sn.children) == 0 {
		return nil
	}
	attr := src.nodes[sn.children[0]].attribute

	want, constrained, err := s.expectedChild(dst)
	if err != nil {
		return &NodeError{Op: "add_branch", Path: s.path(dst), Err: err}
	}
	if constrained && want != attr {
		return &NodeError{
			Op:   "add_branch",
			Path: s.path(dst),
			Err:  fmt.Errorf("%w: expected %s below, source splits by %s", ErrAttributeMismatch, s.attrName(want), s.attrName(attr)),
		}
	}

	for _, c := range sn.children {
		if d := s.childByValue(dst, src.nodes[c].value); d != NoNode {
			if err := s.checkGraft(d, src, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// expectedChild returns the attribute children of id must carry. It is
// unconstrained when id was built from an order the tree does not know.
func (s *Statistics) expectedChild(id NodeID) (taxonomy.AttributeID, bool, error) {
	n := &s.nodes[id]
	if len(n.children) > 0 {
		return s.nodes[n.children[0]].attribute, true, nil
	}

	eff := s.effectiveOrder()
	if id == rootID {
		if len(eff) == 0 {
			return taxonomy.NoAttribute, false, nil
		}
		return eff[0], true, nil
	}
	i := slices.Index(eff, n.attribute)
	switch {
	case i < 0:
		return taxonomy.NoAttribute, false, nil
	case i == len(eff)-1:
		return taxonomy.NoAttribute, false, fmt.Errorf("%w: %s is the last level of the tree", ErrAttributeMismatch, s.attrName(n.attribute))
	default:
		return eff[i+1], true, nil
	}
}

func (s *Statistics) effectiveOrder() []taxonomy.AttributeID {
	out := make([]taxonomy.AttributeID, 0, len(s.order))
	for _, id := range s.order {
		if !s.skip[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Statistics) graft(dst NodeID, src *Statistics, srcID NodeID) {
	for _, c := range src.nodes[srcID].children {
		sc := &src.nodes[c]
		d := s.childByValue(dst, sc.value)
		if d == NoNode {
			d = s.newNode(dst, sc.attribute, sc.value)
		}

		dn := &s.nodes[d]
		prev := dn.count
		dn.count += sc.count
		dn.weight = dn.count
		dn.size.merge(sc.size)
		dn.cost.merge(sc.cost)
		for idx, m := range sc.modifiers {
			existing, ok := dn.modifiers[idx]
			if !ok {
				if dn.modifiers == nil {
					dn.modifiers = make(map[int]*modifier)
				}
				if prev == 0 {
					dn.modifiers[idx] = m.clone()
					continue
				}
				existing = newModifier(m.name, m.attr)
				dn.modifiers[idx] = existing
			}
			existing.toCounts(prev)
			existing.merge(m.asCounts(sc.count))
		}

		s.graft(d, src, c)
	}
}

// DeleteBranch removes id and its subtree. The root cannot be deleted.
// On a finalized tree the remaining siblings are renormalized.
func (s *Statistics) DeleteBranch(id NodeID) error {
	if id == rootID {
		return &NodeError{Op: "delete_branch", Err: fmt.Errorf("%w: the root cannot be deleted", ErrUnknownNode)}
	}
	n, err := s.get(id)
	if err != nil {
		return &NodeError{Op: "delete_branch", Err: err}
	}
	parent := n.parent

	p := &s.nodes[parent]
	p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == id })
	s.markDeleted(id)

	if s.Finalized() {
		s.normalizeChildren(parent)
	}
	s.invalidate()
	return nil
}

func (s *Statistics) markDeleted(id NodeID) {
	n := &s.nodes[id]
	n.deleted = true
	for _, c := range n.children {
		s.markDeleted(c)
	}
}

func (s *Statistics) normalizeChildren(id NodeID) {
	n := &s.nodes[id]
	var total float64
	for _, c := range n.children {
		total += s.nodes[c].count
	}
	for _, c := range n.children {
		child := &s.nodes[c]
		if total > 0 {
			child.weight = 100 * child.count / total
		} else {
			child.weight = 0
		}
	}
}

// UpdateChildren replaces the children of id with one leaf per
// (value, weight) pair for attribute attr. Weights are expected to sum to
// 100 already; they are stored as given and not renormalized.
func (s *Statistics) UpdateChildren(id NodeID, attr taxonomy.AttributeID, values []string, weights []float64) error {
	n, err := s.get(id)
	if err != nil {
		return &NodeError{Op: "update_children", Err: err}
	}
	path := s.path(id)
	if len(values) != len(weights) {
		return &NodeError{Op: "update_children", Path: path, Err: fmt.Errorf("%d values but %d weights", len(values), len(weights))}
	}
	if _, ok := s.tax.Attribute(attr); !ok {
		return &NodeError{Op: "update_children", Path: path, Err: fmt.Errorf("%w: attribute %d not in taxonomy %s", ErrAttributeMismatch, attr, s.tax.Name())}
	}
	seen := make(map[string]bool, len(values))
	for i, v := range values {
		if seen[v] {
			return &NodeError{Op: "update_children", Path: path, Err: fmt.Errorf("duplicate value %q", v)}
		}
		seen[v] = true
		if w := weights[i]; w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return &NodeError{Op: "update_children", Path: path, Err: fmt.Errorf("%w: %v for %q", ErrInvalidWeight, w, v)}
		}
	}

	for _, c := range n.children {
		s.markDeleted(c)
	}
	s.nodes[id].children = nil

	scale := s.nodes[id].count / 100
	if scale <= 0 {
		scale = 1
	}
	for i, v := range values {
		c := s.newNode(id, attr, v)
		child := &s.nodes[c]
		child.count = weights[i] * scale
		if s.Finalized() {
			child.weight = weights[i]
		} else {
			child.weight = child.count
		}
	}

	if s.state == StateEmpty {
		s.state = StateAccumulating
	}
	s.invalidate()
	return nil
}

// SetModifier attaches m to node id at slot index, replacing any modifier
// already there. The index must name an attribute of the taxonomy that is
// either the node's own attribute (qualifiers) or one the tree does not
// split by on the node's path or below it. The values form a complete
// distribution and are normalized to 100.
func (s *Statistics) SetModifier(id NodeID, index int, m Modifier) error {
	n, err := s.get(id)
	if err != nil {
		return &NodeError{Op: "set_modifier", Err: err}
	}
	attr := taxonomy.AttributeID(index)
	a, ok := s.tax.Attribute(attr)
	if !ok {
		return &NodeError{Op: "set_modifier", Path: s.path(id), Err: fmt.Errorf("%w: %d", ErrInvalidModifier, index)}
	}
	if err := s.checkModifierSlot(id, attr); err != nil {
		return &NodeError{Op: "set_modifier", Path: s.path(id), Err: err}
	}
	for v, w := range m.Values {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return &NodeError{Op: "set_modifier", Path: s.path(id), Err: fmt.Errorf("%w: %v for %q", ErrInvalidWeight, w, v)}
		}
	}

	name := m.Name
	if name == "" {
		name = a.Name
	}
	mod := newModifier(name, attr)
	mod.explicit = true
	mod.counts = maps.Clone(m.Values)
	if mod.counts == nil {
		mod.counts = make(map[string]float64)
	}
	mod.finalize(n.count)

	if n.modifiers == nil {
		n.modifiers = make(map[int]*modifier)
	}
	n.modifiers[index] = mod
	s.invalidate()
	return nil
}

// checkModifierSlot rejects a modifier for attr on id when attr already
// splits the tree above or below id.
func (s *Statistics) checkModifierSlot(id NodeID, attr taxonomy.AttributeID) error {
	n := &s.nodes[id]
	if id != rootID && n.attribute == attr {
		return nil
	}
	for cur := n.parent; cur != NoNode && cur != rootID; cur = s.nodes[cur].parent {
		if s.nodes[cur].attribute == attr {
			return fmt.Errorf("%w: %s splits the tree above this node", ErrInvalidModifier, s.attrName(attr))
		}
	}
	if s.splitsBelow(id, attr) {
		return fmt.Errorf("%w: %s splits the tree below this node", ErrInvalidModifier, s.attrName(attr))
	}
	return nil
}

func (s *Statistics) splitsBelow(id NodeID, attr taxonomy.AttributeID) bool {
	for _, c := range s.nodes[id].children {
		child := &s.nodes[c]
		if child.deleted {
			continue
		}
		if child.attribute == attr || s.splitsBelow(c, attr) {
			return true
		}
	}
	return false
}

// RemoveModifier detaches the modifier at slot index from node id.
func (s *Statistics) RemoveModifier(id NodeID, index int) error {
	n, err := s.get(id)
	if err != nil {
		return &NodeError{Op: "remove_modifier", Err: err}
	}
	if _, ok := n.modifiers[index]; !ok {
		return &NodeError{Op: "remove_modifier", Path: s.path(id), Err: fmt.Errorf("%w: no modifier at %d", ErrInvalidModifier, index)}
	}
	delete(n.modifiers, index)
	s.invalidate()
	return nil
}

// SetAnnotations overrides the average floor area and unit cost of id.
func (s *Statistics) SetAnnotations(id NodeID, avgSize, unitCost float64) error {
	n, err := s.get(id)
	if err != nil {
		return &NodeError{Op: "set_annotations", Err: err}
	}
	n.size = setAnnotation(avgSize)
	n.cost = setAnnotation(unitCost)
	s.invalidate()
	return nil
}

// SetRootValue names the root, typically after the zone it describes.
func (s *Statistics) SetRootValue(v string) {
	s.nodes[rootID].value = v
}

// RootValue returns the root name.
func (s *Statistics) RootValue() string {
	return s.nodes[rootID].value
}

// Clone returns a deep copy. Node handles stay valid in the copy.
func (s *Statistics) Clone() *Statistics {
	c := &Statistics{
		tax:    s.tax,
		nodes:  make([]node, len(s.nodes)),
		order:  slices.Clone(s.order),
		skip:   maps.Clone(s.skip),
		state:  s.state,
		logger: s.logger,
	}
	for i, n := range s.nodes {
		n.children = slices.Clone(n.children)
		n.modifiers = cloneModifiers(n.modifiers)
		c.nodes[i] = n
	}
	return c
}
