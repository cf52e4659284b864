package ms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/abhisek/sidd/internal/taxonomy"
)

// weightTolerance bounds floating-point drift when comparing weight sums.
const weightTolerance = 1e-6

// State is the lifecycle state of a Statistics tree.
type State int

const (
	// StateEmpty: no case has been added.
	StateEmpty State = iota
	// StateAccumulating: node weights hold raw counts.
	StateAccumulating
	// StateFinalized: node weights are percentages among siblings.
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func parseState(s string) (State, error) {
	switch s {
	case "empty":
		return StateEmpty, nil
	case "accumulating":
		return StateAccumulating, nil
	case "finalized":
		return StateFinalized, nil
	default:
		return 0, fmt.Errorf("unknown statistics state %q", s)
	}
}

// Statistics is a weighted classification tree over taxonomy attributes.
//
// A Statistics is owned by a single goroutine while cases are added. Once
// finalized it may be read concurrently through Leaves and Samples.
type Statistics struct {
	tax    taxonomy.Taxonomy
	nodes  []node
	order  []taxonomy.AttributeID
	skip   map[taxonomy.AttributeID]bool
	state  State
	logger *slog.Logger

	mu     sync.Mutex
	leaves map[LeafOptions][]Leaf
}

// Option configures a Statistics.
type Option func(*Statistics)

// WithAttributeOrder sets the attribute order used for tree levels when a
// case does not carry its own order. The default is the taxonomy order.
func WithAttributeOrder(ids ...taxonomy.AttributeID) Option {
	return func(s *Statistics) {
		s.order = slices.Clone(ids)
	}
}

// WithSkip marks attributes that do not split the tree.
func WithSkip(ids ...taxonomy.AttributeID) Option {
	return func(s *Statistics) {
		for _, id := range ids {
			s.skip[id] = true
		}
	}
}

// WithLogger sets the logger used for data-quality warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Statistics) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty Statistics over tax.
func New(tax taxonomy.Taxonomy, opts ...Option) *Statistics {
	s := &Statistics{
		tax:    tax,
		nodes:  []node{{attribute: taxonomy.NoAttribute, parent: NoNode}},
		skip:   make(map[taxonomy.AttributeID]bool),
		logger: slog.Default().With(slog.String("component", "statistics")),
	}
	for _, a := range tax.Attributes() {
		s.order = append(s.order, a.ID)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Taxonomy returns the taxonomy the tree is keyed by.
func (s *Statistics) Taxonomy() taxonomy.Taxonomy { return s.tax }

// State returns the lifecycle state.
func (s *Statistics) State() State { return s.state }

// Finalized reports whether weights are percentages.
func (s *Statistics) Finalized() bool { return s.state == StateFinalized }

// AttributeOrder returns the default attribute order.
func (s *Statistics) AttributeOrder() []taxonomy.AttributeID { return slices.Clone(s.order) }

// Root returns the root handle.
func (s *Statistics) Root() NodeID { return rootID }

// SetAttributeSkip marks or unmarks an attribute as excluded from tree
// construction. It affects subsequent AddCase calls only.
func (s *Statistics) SetAttributeSkip(id taxonomy.AttributeID, skip bool) {
	if skip {
		s.skip[id] = true
	} else {
		delete(s.skip, id)
	}
}

// Skipped reports whether id is excluded from tree construction.
func (s *Statistics) Skipped(id taxonomy.AttributeID) bool { return s.skip[id] }

// SkippedAttributes returns the skipped attribute IDs in ascending order.
func (s *Statistics) SkippedAttributes() []taxonomy.AttributeID {
	out := make([]taxonomy.AttributeID, 0, len(s.skip))
	for id := range s.skip {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Case is one observed building (or a sampling-weighted share of one).
type Case struct {
	Taxonomy string
	// Weight is the building-count increment; zero counts as one building.
	// Stratified sampling passes fractional sampling weights.
	Weight float64
	// Order overrides the statistics' attribute order for this case.
	Order []taxonomy.AttributeID
	// SkipModifiers drops qualifier tails and attributes outside the order
	// instead of recording them as modifiers.
	SkipModifiers bool
	// Size and Cost are optional per-building floor area and unit cost.
	Size float64
	Cost float64
}

type level struct {
	attr  taxonomy.AttributeID
	value taxonomy.Value
	has   bool
}

// AddCase parses c.Taxonomy and walks the tree from the root, one level per
// retained attribute, creating nodes as needed. Parse failures return a
// *taxonomy.ParseError and leave the tree untouched; attribute conflicts
// with existing siblings return a *NodeError. Adding to a finalized tree
// returns it to the accumulating state.
func (s *Statistics) AddCase(c Case) error {
	w := c.Weight
	if w == 0 {
		w = 1
	}
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("case %q: %w: %v", c.Taxonomy, ErrInvalidWeight, c.Weight)
	}

	vals, err := s.tax.Parse(c.Taxonomy)
	if err != nil {
		return err
	}

	order := c.Order
	if order == nil {
		order = s.order
	}
	levels, remainder, err := s.plan(vals, order)
	if err != nil {
		return err
	}
	if err := s.checkPath(levels); err != nil {
		return err
	}

	if s.state == StateFinalized {
		s.unfinalize()
	}

	cur := rootID
	s.nodes[rootID].count += w
	s.nodes[rootID].weight += w
	for _, lv := range levels {
		code := ""
		if lv.has {
			code = lv.value.Code
		}
		cur = s.addChild(cur, lv.attr, code, w)
		if lv.has && !c.SkipModifiers && len(lv.value.Qualifiers) > 0 {
			s.addModifierCase(cur, lv.attr, strings.Join(lv.value.Qualifiers, taxonomy.QualifierSeparator), w)
		}
	}
	if !c.SkipModifiers {
		for _, v := range remainder {
			s.addModifierCase(cur, v.Attribute, v.String(), w)
		}
	}

	leaf := &s.nodes[cur]
	leaf.size.add(c.Size, w)
	leaf.cost.add(c.Cost, w)

	s.state = StateAccumulating
	s.invalidate()
	return nil
}

// plan maps parsed values onto the tree levels given by order. Values of
// attributes outside order are returned as the remainder.
func (s *Statistics) plan(vals []taxonomy.Value, order []taxonomy.AttributeID) ([]level, []taxonomy.Value, error) {
	byAttr := make(map[taxonomy.AttributeID]taxonomy.Value, len(vals))
	for _, v := range vals {
		byAttr[v.Attribute] = v
	}

	levels := make([]level, 0, len(order))
	used := make(map[taxonomy.AttributeID]bool, len(order))
	for _, id := range order {
		if _, ok := s.tax.Attribute(id); !ok {
			return nil, nil, &NodeError{Op: "add_case", Err: fmt.Errorf("%w: attribute %d not in taxonomy %s", ErrAttributeMismatch, id, s.tax.Name())}
		}
		if used[id] {
			return nil, nil, &NodeError{Op: "add_case", Err: fmt.Errorf("%w: attribute %d repeated in order", ErrAttributeMismatch, id)}
		}
		used[id] = true
		if s.skip[id] {
			continue
		}
		v, ok := byAttr[id]
		levels = append(levels, level{attr: id, value: v, has: ok})
	}

	var remainder []taxonomy.Value
	for _, v := range vals {
		if !used[v.Attribute] && !s.skip[v.Attribute] {
			remainder = append(remainder, v)
		}
	}
	return levels, remainder, nil
}

// checkPath verifies the case can be added without violating the sibling
// attribute invariant, before anything is mutated.
func (s *Statistics) checkPath(levels []level) error {
	cur := rootID
	for _, lv := range levels {
		n := &s.nodes[cur]
		if len(n.children) > 0 {
			if got := s.nodes[n.children[0]].attribute; got != lv.attr {
				return &NodeError{
					Op:   "add_case",
					Path: s.path(cur),
					Err:  fmt.Errorf("%w: children split by %s, case continues with %s", ErrAttributeMismatch, s.attrName(got), s.attrName(lv.attr)),
				}
			}
		}
		code := ""
		if lv.has {
			code = lv.value.Code
		}
		next := s.childByValue(cur, code)
		if next == NoNode {
			return nil
		}
		cur = next
	}
	return nil
}

// addChild finds or creates the child of parent holding value and adds w
// to its count.
func (s *Statistics) addChild(parent NodeID, attr taxonomy.AttributeID, value string, w float64) NodeID {
	id := s.childByValue(parent, value)
	if id == NoNode {
		id = s.newNode(parent, attr, value)
	}
	n := &s.nodes[id]
	n.count += w
	n.weight += w
	return id
}

func (s *Statistics) addModifierCase(id NodeID, attr taxonomy.AttributeID, value string, w float64) {
	n := &s.nodes[id]
	n.modifier(int(attr), s.attrName(attr), attr).add(value, w)
}

func (s *Statistics) newNode(parent NodeID, attr taxonomy.AttributeID, value string) NodeID {
	id := NodeID(len(s.nodes))
	s.nodes = append(s.nodes, node{
		value:     value,
		attribute: attr,
		level:     s.nodes[parent].level + 1,
		parent:    parent,
	})
	s.nodes[parent].children = append(s.nodes[parent].children, id)
	return id
}

func (s *Statistics) childByValue(parent NodeID, value string) NodeID {
	for _, c := range s.nodes[parent].children {
		if s.nodes[c].value == value {
			return c
		}
	}
	return NoNode
}

// Report summarizes a batch of AddCases.
type Report struct {
	Added   int
	Skipped []SkippedCase
}

// SkippedCase records a case dropped for a data-quality problem.
type SkippedCase struct {
	Index    int
	Taxonomy string
	Err      error
}

// AddCases adds a batch of cases. Cases with unparseable taxonomy strings
// or invalid weights are logged and skipped; structural errors abort the
// batch and are returned with the report so far.
func (s *Statistics) AddCases(ctx context.Context, cases []Case) (Report, error) {
	var rep Report
	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		err := s.AddCase(c)
		switch {
		case err == nil:
			rep.Added++
		case isDataQuality(err):
			s.logger.Warn("skipping case",
				slog.Int("index", i),
				slog.String("taxonomy", c.Taxonomy),
				slog.String("error", err.Error()))
			rep.Skipped = append(rep.Skipped, SkippedCase{Index: i, Taxonomy: c.Taxonomy, Err: err})
		default:
			return rep, fmt.Errorf("case %d (%q): %w", i, c.Taxonomy, err)
		}
	}
	return rep, nil
}

func isDataQuality(err error) bool {
	var pe *taxonomy.ParseError
	return errors.As(err, &pe) || errors.Is(err, ErrInvalidWeight)
}

// Finalize converts raw counts into percentage weights at every level.
// Sibling groups whose total count is zero get zero weights.
func (s *Statistics) Finalize() {
	s.finalizeNode(rootID)
	s.nodes[rootID].weight = 100
	s.state = StateFinalized
	s.invalidate()
}

func (s *Statistics) finalizeNode(id NodeID) {
	n := &s.nodes[id]
	for _, m := range n.modifiers {
		m.finalize(n.count)
	}
	if len(n.children) == 0 {
		return
	}
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
	for _, c := range n.children {
		s.finalizeNode(c)
	}
}

// unfinalize restores raw counts into the weight fields.
func (s *Statistics) unfinalize() {
	for i := range s.nodes {
		n := &s.nodes[i]
		if n.deleted {
			continue
		}
		n.weight = n.count
	}
	s.state = StateAccumulating
}

func (s *Statistics) invalidate() {
	s.mu.Lock()
	s.leaves = nil
	s.mu.Unlock()
}

// Node returns a view of node id.
func (s *Statistics) Node(id NodeID) (Node, error) {
	n, err := s.get(id)
	if err != nil {
		return Node{}, err
	}
	return n.view(id, s.Finalized()), nil
}

// Children returns the child handles of id.
func (s *Statistics) Children(id NodeID) []NodeID {
	n, err := s.get(id)
	if err != nil {
		return nil
	}
	return slices.Clone(n.children)
}

// Parent returns the parent of id, or NoNode for the root.
func (s *Statistics) Parent(id NodeID) NodeID {
	n, err := s.get(id)
	if err != nil {
		return NoNode
	}
	return n.parent
}

// IsLeaf reports whether id has no children.
func (s *Statistics) IsLeaf(id NodeID) bool {
	n, err := s.get(id)
	return err == nil && len(n.children) == 0
}

// Find follows values from the root and returns the node reached.
func (s *Statistics) Find(values ...string) (NodeID, bool) {
	cur := rootID
	for _, v := range values {
		cur = s.childByValue(cur, v)
		if cur == NoNode {
			return NoNode, false
		}
	}
	return cur, true
}

// AncestorNames returns the values from the first level down to the parent
// of id. The root value is not included.
func (s *Statistics) AncestorNames(id NodeID) []string {
	n, err := s.get(id)
	if err != nil {
		return nil
	}
	return s.path(n.parent)
}

// DescendantNames returns the values of all nodes below id in depth-first
// order.
func (s *Statistics) DescendantNames(id NodeID) []string {
	if _, err := s.get(id); err != nil {
		return nil
	}
	var out []string
	var walk func(NodeID)
	walk = func(cur NodeID) {
		for _, c := range s.nodes[cur].children {
			out = append(out, s.nodes[c].value)
			walk(c)
		}
	}
	walk(id)
	return out
}

// Len returns the number of live nodes including the root.
func (s *Statistics) Len() int {
	var n int
	for i := range s.nodes {
		if !s.nodes[i].deleted {
			n++
		}
	}
	return n
}

func (s *Statistics) get(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(s.nodes) || s.nodes[id].deleted {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return &s.nodes[id], nil
}

// path returns node values from the first level down to id.
func (s *Statistics) path(id NodeID) []string {
	var out []string
	for cur := id; cur != NoNode && cur != rootID; cur = s.nodes[cur].parent {
		out = append(out, s.nodes[cur].value)
	}
	slices.Reverse(out)
	return out
}

func (s *Statistics) attrName(id taxonomy.AttributeID) string {
	if a, ok := s.tax.Attribute(id); ok {
		return a.Name
	}
	return fmt.Sprintf("attribute(%d)", id)
}
