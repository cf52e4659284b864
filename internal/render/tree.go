package render

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"charm.land/lipgloss/v2/tree"

	"github.com/abhisek/sidd/internal/ms"
)

// TreeOptions controls tree rendering.
type TreeOptions struct {
	Theme Theme
	// MaxDepth stops descending below this level. Zero draws every level.
	MaxDepth int
	// HideModifiers omits modifier distributions from node labels.
	HideModifiers bool
}

// Tree draws the classification tree of s, rooted at its zone name.
func Tree(s *ms.Statistics, opts TreeOptions) (string, error) {
	root, err := s.Node(s.Root())
	if err != nil {
		return "", err
	}
	label := root.Value
	if label == "" {
		label = ms.AllZones
	}
	t := tree.Root(opts.Theme.Root.Render(fmt.Sprintf("%s (%s, %d nodes)", label, s.State(), s.Len()))).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(opts.Theme.Enumerator)
	if err := addChildren(t, s, root, opts); err != nil {
		return "", err
	}
	return t.String(), nil
}

func addChildren(t *tree.Tree, s *ms.Statistics, parent ms.Node, opts TreeOptions) error {
	if opts.MaxDepth > 0 && parent.Level >= opts.MaxDepth {
		return nil
	}
	for _, id := range parent.Children {
		n, err := s.Node(id)
		if err != nil {
			return err
		}
		label := nodeLabel(s, n, opts)
		if n.IsLeaf() || (opts.MaxDepth > 0 && n.Level >= opts.MaxDepth) {
			t.Child(label)
			continue
		}
		sub := tree.Root(label).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(opts.Theme.Enumerator)
		if err := addChildren(sub, s, n, opts); err != nil {
			return err
		}
		t.Child(sub)
	}
	return nil
}

func nodeLabel(s *ms.Statistics, n ms.Node, opts TreeOptions) string {
	th := opts.Theme
	parts := []string{
		th.Value.Render(n.Value),
		th.Attribute.Render("(" + attrName(s, n) + ")"),
		th.Weight.Render(weight(s, n.Weight)),
	}
	if !opts.HideModifiers && len(n.Modifiers) > 0 {
		parts = append(parts, th.Modifier.Render(modifiers(s, n)))
	}
	if ann := annotations(n); ann != "" {
		parts = append(parts, th.Annotation.Render(ann))
	}
	return strings.Join(parts, " ")
}

func attrName(s *ms.Statistics, n ms.Node) string {
	if a, ok := s.Taxonomy().Attribute(n.Attribute); ok {
		return a.Name
	}
	return "?"
}

func weight(s *ms.Statistics, w float64) string {
	if s.Finalized() {
		return fmt.Sprintf("%.1f%%", w)
	}
	return fmt.Sprintf("n=%g", w)
}

func modifiers(s *ms.Statistics, n ms.Node) string {
	var groups []string
	for _, idx := range slices.Sorted(maps.Keys(n.Modifiers)) {
		m := n.Modifiers[idx]
		var vals []string
		for _, v := range m.SortedValues() {
			name := v
			if name == ms.NoModifier {
				name = "none"
			}
			vals = append(vals, name+" "+weight(s, m.Values[v]))
		}
		groups = append(groups, m.Name+": "+strings.Join(vals, ", "))
	}
	return "[" + strings.Join(groups, "; ") + "]"
}

func annotations(n ms.Node) string {
	var parts []string
	if n.AvgSize > 0 {
		parts = append(parts, fmt.Sprintf("size %.1f", n.AvgSize))
	}
	if n.UnitCost > 0 {
		parts = append(parts, fmt.Sprintf("cost %.1f", n.UnitCost))
	}
	return strings.Join(parts, " ")
}
