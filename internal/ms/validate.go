package ms

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Validate checks the structural invariants of the tree and returns one
// error describing every problem found, or nil. Weight sums are checked
// only on a finalized tree.
func (s *Statistics) Validate() error {
	var errs []string

	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := &s.nodes[id]
		where := "root"
		if id != rootID {
			where = strings.Join(s.path(id), "/")
		}

		for idx, m := range n.modifiers {
			if _, ok := s.tax.Attribute(m.attr); !ok || int(m.attr) != idx {
				errs = append(errs, fmt.Sprintf("%s: modifier slot %d names attribute %d", where, idx, m.attr))
			} else if err := s.checkModifierSlot(id, m.attr); err != nil {
				errs = append(errs, fmt.Sprintf("%s: modifier %q: %v", where, m.name, err))
			}
			if s.Finalized() && len(m.weights) > 0 {
				ws := make([]float64, 0, len(m.weights))
				for _, w := range m.weights {
					ws = append(ws, w)
				}
				if sum := floats.Sum(ws); sum != 0 && math.Abs(sum-100) > weightTolerance {
					errs = append(errs, fmt.Sprintf("%s: modifier %q weights sum to %.6f", where, m.name, sum))
				}
			}
		}

		if len(n.children) == 0 {
			return
		}

		attr := s.nodes[n.children[0]].attribute
		seen := make(map[string]bool, len(n.children))
		ws := make([]float64, 0, len(n.children))
		for _, c := range n.children {
			child := &s.nodes[c]
			if child.deleted {
				errs = append(errs, fmt.Sprintf("%s: deleted child %d still linked", where, c))
				continue
			}
			if child.parent != id {
				errs = append(errs, fmt.Sprintf("%s: child %q has parent %d", where, child.value, child.parent))
			}
			if child.level != n.level+1 {
				errs = append(errs, fmt.Sprintf("%s: child %q at level %d", where, child.value, child.level))
			}
			if child.attribute != attr {
				errs = append(errs, fmt.Sprintf("%s: children split by both %s and %s", where, s.attrName(attr), s.attrName(child.attribute)))
			}
			if seen[child.value] {
				errs = append(errs, fmt.Sprintf("%s: duplicate child %q", where, child.value))
			}
			seen[child.value] = true
			ws = append(ws, child.weight)
		}

		if s.Finalized() {
			if sum := floats.Sum(ws); sum != 0 && math.Abs(sum-100) > weightTolerance {
				errs = append(errs, fmt.Sprintf("%s: child weights sum to %.6f", where, sum))
			}
		}

		for _, c := range n.children {
			if !s.nodes[c].deleted {
				walk(c)
			}
		}
	}
	walk(rootID)

	if len(errs) > 0 {
		return fmt.Errorf("statistics validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
