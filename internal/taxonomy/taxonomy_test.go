package taxonomy

import (
	"errors"
	"testing"
)

func TestGEM_ParseCompose(t *testing.T) {
	tests := []struct {
		input string
		want  string
		n     int
	}{
		{"MUR/LWAL/H:2/RES", "MUR/LWAL/H:2/RES", 4},
		{"RES/MUR", "MUR/RES", 2},
		{"MR+CIP/LFM/RC/FC/H:3/Y:1990/IRIR/COM", "MR+CIP/LFM/RC/FC/H:3/Y:1990/IRIR/COM", 8},
		{"MAT99/OC99", "MAT99/OC99", 2},
		{" CR / LFINF ", "CR/LFINF", 2},
	}

	gem := GEM()
	for _, tt := range tests {
		vals, err := gem.Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if len(vals) != tt.n {
			t.Errorf("Parse(%q): got %d values, want %d", tt.input, len(vals), tt.n)
		}
		for i := 1; i < len(vals); i++ {
			if vals[i].Attribute < vals[i-1].Attribute {
				t.Errorf("Parse(%q): values not in attribute order: %v", tt.input, vals)
			}
		}
		if got := gem.Compose(vals); got != tt.want {
			t.Errorf("Compose(Parse(%q)) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGEM_ParseValues(t *testing.T) {
	vals, err := GEM().Parse("MR+CIP+RC99/H:3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vals[0].Attribute != Material || vals[0].Code != "MR" {
		t.Errorf("first value = %+v, want Material MR", vals[0])
	}
	if len(vals[0].Qualifiers) != 2 || vals[0].Qualifiers[0] != "CIP" || vals[0].Qualifiers[1] != "RC99" {
		t.Errorf("qualifiers = %v, want [CIP RC99]", vals[0].Qualifiers)
	}
	if vals[1].Attribute != Height || !vals[1].HasNumber || vals[1].Number != 3 {
		t.Errorf("height value = %+v, want H:3", vals[1])
	}
	if vals[1].Prefix() != "H" {
		t.Errorf("Prefix() = %q, want H", vals[1].Prefix())
	}
}

func TestGEM_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"unknown code", "XYZ/RES"},
		{"empty token", "MUR//RES"},
		{"duplicate attribute", "MUR/CR"},
		{"numeric missing value", "MUR/H"},
		{"bad number", "MUR/H:abc"},
		{"value on plain code", "MUR:3"},
		{"empty qualifier", "MUR+/RES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GEM().Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q): expected error", tt.input)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse(%q): error %T is not *ParseError", tt.input, err)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("bad",
		Attribute{Name: "A", Codes: []Code{{Prefix: "X"}}},
		Attribute{Name: "A", Codes: []Code{{Prefix: "X"}}},
	)
	if err == nil {
		t.Fatal("expected validation error for duplicate names and codes")
	}

	_, err = New("bad", Attribute{Name: "A", Codes: []Code{{Prefix: "X/Y"}}})
	if err == nil {
		t.Fatal("expected validation error for prefix containing a separator")
	}
}

func TestCatalog_Attributes(t *testing.T) {
	gem := GEM()
	attrs := gem.Attributes()
	if len(attrs) != 8 {
		t.Fatalf("got %d attributes, want 8", len(attrs))
	}
	for i, a := range attrs {
		if a.ID != AttributeID(i) {
			t.Errorf("attribute %q has ID %d, want %d", a.Name, a.ID, i)
		}
	}

	a, ok := gem.AttributeByName("Occupancy")
	if !ok || a.ID != Occupancy {
		t.Errorf("AttributeByName(Occupancy) = %+v, %v", a, ok)
	}
	if _, ok := gem.Attribute(42); ok {
		t.Error("Attribute(42) should not exist")
	}
	if _, ok := gem.Attribute(NoAttribute); ok {
		t.Error("Attribute(NoAttribute) should not exist")
	}
}

func TestLookup(t *testing.T) {
	if _, err := Lookup("gem"); err != nil {
		t.Errorf("Lookup(gem): %v", err)
	}
	if _, err := Lookup("nope"); err == nil {
		t.Error("Lookup(nope): expected error")
	}
}

func TestCompose_SkipsEmptyCodes(t *testing.T) {
	vals := []Value{
		{Attribute: 0, Code: "MUR"},
		{Attribute: 1, Code: ""},
		{Attribute: 7, Code: "RES", Qualifiers: []string{"RES1"}},
	}
	if got := GEM().Compose(vals); got != "MUR/RES+RES1" {
		t.Errorf("Compose = %q, want MUR/RES+RES1", got)
	}
}
