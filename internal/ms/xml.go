package ms

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/abhisek/sidd/internal/taxonomy"
)

// FormatVersion is the version written into serialized schemes. Documents
// with the same major version can be read back.
const FormatVersion = "1.0.0"

type xmlScheme struct {
	XMLName  xml.Name  `xml:"mappingscheme"`
	Version  string    `xml:"version,attr"`
	Taxonomy string    `xml:"taxonomy,attr"`
	Zones    []xmlZone `xml:"zone"`
}

type xmlZone struct {
	Name  string  `xml:"name,attr"`
	State string  `xml:"state,attr"`
	Order string  `xml:"order,attr,omitempty"`
	Skip  string  `xml:"skip,attr,omitempty"`
	Root  xmlNode `xml:"node"`
}

type xmlNode struct {
	Value      string        `xml:"value,attr"`
	Attribute  string        `xml:"attribute,attr,omitempty"`
	Weight     float64       `xml:"weight,attr"`
	Count      float64       `xml:"count,attr"`
	Size       float64       `xml:"size,attr,omitempty"`
	SizeWeight float64       `xml:"size_weight,attr,omitempty"`
	Cost       float64       `xml:"cost,attr,omitempty"`
	CostWeight float64       `xml:"cost_weight,attr,omitempty"`
	Modifiers  []xmlModifier `xml:"modifier"`
	Children   []xmlNode     `xml:"node"`
}

type xmlModifier struct {
	Index    int        `xml:"index,attr"`
	Name     string     `xml:"name,attr"`
	Explicit bool       `xml:"explicit,attr,omitempty"`
	Values   []xmlValue `xml:"value"`
}

type xmlValue struct {
	Code   string  `xml:"code,attr"`
	Count  float64 `xml:"count,attr"`
	Weight float64 `xml:"weight,attr"`
}

// WriteXML serializes the scheme as an indented XML document.
func (m *MappingScheme) WriteXML(w io.Writer) error {
	doc := xmlScheme{Version: FormatVersion, Taxonomy: m.tax.Name()}
	for _, z := range m.zones {
		s := m.stats[z.Name]
		doc.Zones = append(doc.Zones, xmlZone{
			Name:  z.Name,
			State: s.state.String(),
			Order: s.joinAttrs(s.order),
			Skip:  s.joinAttrs(s.SkippedAttributes()),
			Root:  s.encodeNode(rootID),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode mapping scheme: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return nil
}

func (s *Statistics) encodeNode(id NodeID) xmlNode {
	n := &s.nodes[id]
	out := xmlNode{
		Value:      n.value,
		Weight:     n.weight,
		Count:      n.count,
		Size:       n.size.mean(),
		SizeWeight: n.size.n,
		Cost:       n.cost.mean(),
		CostWeight: n.cost.n,
	}
	if id != rootID {
		out.Attribute = s.attrName(n.attribute)
	}
	for _, idx := range sortedModifierIndexes(n.modifiers) {
		mod := n.modifiers[idx]
		xm := xmlModifier{Index: idx, Name: mod.name, Explicit: mod.explicit}
		codes := sortedKeys(mod.counts)
		for _, k := range sortedKeys(mod.weights) {
			if _, ok := mod.counts[k]; !ok {
				codes = append(codes, k)
			}
		}
		for _, code := range codes {
			xm.Values = append(xm.Values, xmlValue{Code: code, Count: mod.counts[code], Weight: mod.weights[code]})
		}
		out.Modifiers = append(out.Modifiers, xm)
	}
	for _, c := range n.children {
		out.Children = append(out.Children, s.encodeNode(c))
	}
	return out
}

func (s *Statistics) joinAttrs(ids []taxonomy.AttributeID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = s.attrName(id)
	}
	return strings.Join(names, ",")
}

// ReadXML parses a scheme written by WriteXML. When tax is nil the taxonomy
// named in the document is looked up in the registry.
func ReadXML(r io.Reader, tax taxonomy.Taxonomy) (*MappingScheme, error) {
	var doc xmlScheme
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode mapping scheme: %w", err)
	}

	v := "v" + doc.Version
	if !semver.IsValid(v) || semver.Major(v) != semver.Major("v"+FormatVersion) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, doc.Version)
	}

	if tax == nil {
		t, err := taxonomy.Lookup(doc.Taxonomy)
		if err != nil {
			return nil, err
		}
		tax = t
	} else if doc.Taxonomy != tax.Name() {
		return nil, fmt.Errorf("mapping scheme uses taxonomy %q, expected %q", doc.Taxonomy, tax.Name())
	}

	scheme := NewScheme(tax)
	for _, z := range doc.Zones {
		s, err := decodeZone(tax, z)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", z.Name, err)
		}
		if err := scheme.Assign(Zone{Name: z.Name}, s); err != nil {
			return nil, err
		}
	}
	return scheme, nil
}

func decodeZone(tax taxonomy.Taxonomy, z xmlZone) (*Statistics, error) {
	state, err := parseState(z.State)
	if err != nil {
		return nil, err
	}
	order, err := splitAttrs(tax, z.Order)
	if err != nil {
		return nil, fmt.Errorf("order: %w", err)
	}
	skip, err := splitAttrs(tax, z.Skip)
	if err != nil {
		return nil, fmt.Errorf("skip: %w", err)
	}

	opts := []Option{WithSkip(skip...)}
	if len(order) > 0 {
		opts = append(opts, WithAttributeOrder(order...))
	}
	s := New(tax, opts...)
	if err := s.decodeNode(rootID, z.Root); err != nil {
		return nil, err
	}
	s.state = state
	return s, nil
}

func (s *Statistics) decodeNode(id NodeID, x xmlNode) error {
	n := &s.nodes[id]
	n.value = x.Value
	n.weight = x.Weight
	n.count = x.Count
	n.size = annotation{sum: x.Size * x.SizeWeight, n: x.SizeWeight}
	n.cost = annotation{sum: x.Cost * x.CostWeight, n: x.CostWeight}

	for _, xm := range x.Modifiers {
		attr := taxonomy.AttributeID(xm.Index)
		if _, ok := s.tax.Attribute(attr); !ok {
			return &NodeError{Op: "read_xml", Path: s.path(id), Err: fmt.Errorf("%w: %d", ErrInvalidModifier, xm.Index)}
		}
		mod := newModifier(xm.Name, attr)
		mod.explicit = xm.Explicit
		for _, v := range xm.Values {
			mod.counts[v.Code] = v.Count
			mod.weights[v.Code] = v.Weight
		}
		if n.modifiers == nil {
			n.modifiers = make(map[int]*modifier)
		}
		n.modifiers[xm.Index] = mod
	}

	var want taxonomy.AttributeID = taxonomy.NoAttribute
	for i, xc := range x.Children {
		a, ok := s.tax.AttributeByName(xc.Attribute)
		if !ok {
			return &NodeError{Op: "read_xml", Path: s.path(id), Err: fmt.Errorf("%w: unknown attribute %q", ErrAttributeMismatch, xc.Attribute)}
		}
		if i == 0 {
			want = a.ID
		} else if a.ID != want {
			return &NodeError{Op: "read_xml", Path: s.path(id), Err: fmt.Errorf("%w: children split by both %s and %s", ErrAttributeMismatch, s.attrName(want), a.Name)}
		}
		if s.childByValue(id, xc.Value) != NoNode {
			return &NodeError{Op: "read_xml", Path: s.path(id), Err: fmt.Errorf("duplicate child %q", xc.Value)}
		}
		c := s.newNode(id, a.ID, xc.Value)
		if err := s.decodeNode(c, xc); err != nil {
			return err
		}
	}
	for _, idx := range sortedModifierIndexes(s.nodes[id].modifiers) {
		if err := s.checkModifierSlot(id, taxonomy.AttributeID(idx)); err != nil {
			return &NodeError{Op: "read_xml", Path: s.path(id), Err: err}
		}
	}
	return nil
}

func splitAttrs(tax taxonomy.Taxonomy, list string) ([]taxonomy.AttributeID, error) {
	if list == "" {
		return nil, nil
	}
	var out []taxonomy.AttributeID
	for _, name := range strings.Split(list, ",") {
		a, ok := tax.AttributeByName(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", name)
		}
		out = append(out, a.ID)
	}
	return out, nil
}
