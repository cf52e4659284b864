package taxonomy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AttributeID identifies an attribute by its position in a taxonomy's
// attribute ordering.
type AttributeID int

// NoAttribute marks a value that belongs to no attribute, such as the zone
// name held at the root of a classification tree.
const NoAttribute AttributeID = -1

// Separators used by taxonomy strings, e.g. "MR+CIP/LWAL/H:3/RES".
const (
	AttributeSeparator = "/"
	QualifierSeparator = "+"
	NumericSeparator   = ":"
)

// Code is one admissible code of an attribute.
type Code struct {
	Prefix  string
	Label   string
	Numeric bool // code carries a number after ":", e.g. H:3
}

// Attribute is one dimension of a building classification.
type Attribute struct {
	ID      AttributeID
	Name    string
	Codes   []Code
	Unknown string // code standing in for a missing value, e.g. "MAT99"
}

// Value is a single (attribute, code) pair parsed from a taxonomy string.
type Value struct {
	Attribute  AttributeID
	Code       string // primary token, e.g. "MR" or "H:3"
	Qualifiers []string
	Number     float64
	HasNumber  bool
}

// String renders the value token including qualifiers.
func (v Value) String() string {
	if len(v.Qualifiers) == 0 {
		return v.Code
	}
	return v.Code + QualifierSeparator + strings.Join(v.Qualifiers, QualifierSeparator)
}

// Prefix returns the code prefix, i.e. the part before ":" for numeric codes.
func (v Value) Prefix() string {
	p, _, _ := strings.Cut(v.Code, NumericSeparator)
	return p
}

// Taxonomy parses and composes building-class strings.
type Taxonomy interface {
	// Name identifies the taxonomy, e.g. "GEM".
	Name() string

	// Attributes returns the attributes in taxonomy order.
	Attributes() []Attribute

	// Attribute returns the attribute with the given ID.
	Attribute(id AttributeID) (Attribute, bool)

	// AttributeByName returns the attribute with the given name.
	AttributeByName(name string) (Attribute, bool)

	// Parse splits s into values sorted by attribute order.
	// Malformed strings yield a *ParseError.
	Parse(s string) ([]Value, error)

	// Compose renders values in the given order. Values with an empty code
	// are omitted.
	Compose(vals []Value) string
}

// Catalog is a Taxonomy backed by a fixed attribute list.
type Catalog struct {
	name     string
	attrs    []Attribute
	byName   map[string]AttributeID
	byPrefix map[string]prefixEntry
}

type prefixEntry struct {
	attr    AttributeID
	numeric bool
}

// New builds a catalog from attrs. Attribute IDs are assigned from the
// argument order; duplicate names or code prefixes are rejected.
func New(name string, attrs ...Attribute) (*Catalog, error) {
	c := &Catalog{
		name:     name,
		attrs:    make([]Attribute, len(attrs)),
		byName:   make(map[string]AttributeID, len(attrs)),
		byPrefix: make(map[string]prefixEntry),
	}

	var errs []string
	for i, a := range attrs {
		a.ID = AttributeID(i)
		a.Codes = append([]Code(nil), a.Codes...)
		c.attrs[i] = a

		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("attribute %d has no name", i))
		}
		if _, dup := c.byName[a.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate attribute name: %q", a.Name))
		}
		c.byName[a.Name] = a.ID

		for _, code := range a.Codes {
			if code.Prefix == "" || strings.ContainsAny(code.Prefix, AttributeSeparator+QualifierSeparator+NumericSeparator) {
				errs = append(errs, fmt.Sprintf("attribute %q: invalid code prefix %q", a.Name, code.Prefix))
				continue
			}
			if prev, dup := c.byPrefix[code.Prefix]; dup {
				errs = append(errs, fmt.Sprintf("code %q declared by %q and %q", code.Prefix, c.attrs[prev.attr].Name, a.Name))
				continue
			}
			c.byPrefix[code.Prefix] = prefixEntry{attr: a.ID, numeric: code.Numeric}
		}
		if a.Unknown != "" {
			if _, dup := c.byPrefix[a.Unknown]; !dup {
				c.byPrefix[a.Unknown] = prefixEntry{attr: a.ID}
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("taxonomy %q validation failed:\n  %s", name, strings.Join(errs, "\n  "))
	}
	return c, nil
}

// Name returns the taxonomy name.
func (c *Catalog) Name() string { return c.name }

// Attributes returns a copy of the attribute list.
func (c *Catalog) Attributes() []Attribute {
	out := make([]Attribute, len(c.attrs))
	copy(out, c.attrs)
	return out
}

// Attribute returns the attribute with the given ID.
func (c *Catalog) Attribute(id AttributeID) (Attribute, bool) {
	if id < 0 || int(id) >= len(c.attrs) {
		return Attribute{}, false
	}
	return c.attrs[id], true
}

// AttributeByName returns the attribute with the given name.
func (c *Catalog) AttributeByName(name string) (Attribute, bool) {
	id, ok := c.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return c.attrs[id], true
}

// Parse implements Taxonomy.
func (c *Catalog) Parse(s string) ([]Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &ParseError{Input: s, Reason: "empty taxonomy string"}
	}

	tokens := strings.Split(s, AttributeSeparator)
	vals := make([]Value, 0, len(tokens))
	seen := make(map[AttributeID]bool, len(tokens))

	for _, tok := range tokens {
		v, err := c.parseToken(strings.TrimSpace(tok))
		if err != nil {
			err.Input = s
			return nil, err
		}
		if seen[v.Attribute] {
			return nil, &ParseError{Input: s, Token: tok, Reason: fmt.Sprintf("attribute %q given twice", c.attrs[v.Attribute].Name)}
		}
		seen[v.Attribute] = true
		vals = append(vals, v)
	}

	sort.SliceStable(vals, func(i, j int) bool { return vals[i].Attribute < vals[j].Attribute })
	return vals, nil
}

func (c *Catalog) parseToken(tok string) (Value, *ParseError) {
	if tok == "" {
		return Value{}, &ParseError{Token: tok, Reason: "empty attribute token"}
	}

	parts := strings.Split(tok, QualifierSeparator)
	primary := parts[0]
	for _, q := range parts[1:] {
		if q == "" {
			return Value{}, &ParseError{Token: tok, Reason: "empty qualifier"}
		}
	}

	prefix, num, hasNum := strings.Cut(primary, NumericSeparator)
	entry, ok := c.byPrefix[prefix]
	if !ok {
		return Value{}, &ParseError{Token: tok, Reason: fmt.Sprintf("unknown code %q", prefix)}
	}

	v := Value{Attribute: entry.attr, Code: primary}
	if len(parts) > 1 {
		v.Qualifiers = append([]string(nil), parts[1:]...)
	}

	switch {
	case hasNum && !entry.numeric:
		return Value{}, &ParseError{Token: tok, Reason: fmt.Sprintf("code %q does not take a value", prefix)}
	case hasNum:
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return Value{}, &ParseError{Token: tok, Reason: fmt.Sprintf("invalid number %q", num)}
		}
		v.Number = f
		v.HasNumber = true
	case entry.numeric:
		return Value{}, &ParseError{Token: tok, Reason: fmt.Sprintf("code %q requires a value", prefix)}
	}
	return v, nil
}

// Compose implements Taxonomy.
func (c *Catalog) Compose(vals []Value) string {
	tokens := make([]string, 0, len(vals))
	for _, v := range vals {
		if v.Code == "" {
			continue
		}
		tokens = append(tokens, v.String())
	}
	return strings.Join(tokens, AttributeSeparator)
}

// SortValues orders vals by attribute ID, keeping the relative order of
// values that share an attribute.
func SortValues(vals []Value) {
	sort.SliceStable(vals, func(i, j int) bool { return vals[i].Attribute < vals[j].Attribute })
}

// CloneValues returns a deep copy of vals.
func CloneValues(vals []Value) []Value {
	if vals == nil {
		return nil
	}
	out := make([]Value, len(vals))
	for i, v := range vals {
		v.Qualifiers = append([]string(nil), v.Qualifiers...)
		out[i] = v
	}
	return out
}
