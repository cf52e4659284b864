package taxonomy

import (
	"fmt"
	"sort"
	"strings"
)

// GEM attribute IDs, in taxonomy order.
const (
	Material AttributeID = iota
	LateralLoad
	Roof
	Floor
	Height
	YearBuilt
	Irregularity
	Occupancy
)

// GEMName is the registry name of the built-in taxonomy.
const GEMName = "GEM"

var gemAttributes = []Attribute{
	{
		Name: "Material",
		Codes: []Code{
			{Prefix: "CR", Label: "Reinforced concrete"},
			{Prefix: "CU", Label: "Unreinforced concrete"},
			{Prefix: "MCF", Label: "Confined masonry"},
			{Prefix: "MR", Label: "Reinforced masonry"},
			{Prefix: "MUR", Label: "Unreinforced masonry"},
			{Prefix: "S", Label: "Steel"},
			{Prefix: "W", Label: "Wood"},
			{Prefix: "EU", Label: "Earth, unreinforced"},
			{Prefix: "ER", Label: "Earth, reinforced"},
			{Prefix: "MATO", Label: "Other material"},
		},
		Unknown: "MAT99",
	},
	{
		Name: "LateralLoad",
		Codes: []Code{
			{Prefix: "LWAL", Label: "Wall"},
			{Prefix: "LFM", Label: "Moment frame"},
			{Prefix: "LFINF", Label: "Infilled frame"},
			{Prefix: "LFBR", Label: "Braced frame"},
			{Prefix: "LDUAL", Label: "Dual frame-wall"},
			{Prefix: "LPB", Label: "Post and beam"},
			{Prefix: "LO", Label: "Other"},
		},
		Unknown: "L99",
	},
	{
		Name: "Roof",
		Codes: []Code{
			{Prefix: "RSH1", Label: "Flat"},
			{Prefix: "RSH2", Label: "Pitched, gable"},
			{Prefix: "RSH3", Label: "Pitched, hip"},
			{Prefix: "RWO", Label: "Wood roof"},
			{Prefix: "RME", Label: "Metal roof"},
			{Prefix: "RC", Label: "Concrete roof"},
		},
		Unknown: "R99",
	},
	{
		Name: "Floor",
		Codes: []Code{
			{Prefix: "FC", Label: "Concrete floor"},
			{Prefix: "FW", Label: "Wood floor"},
			{Prefix: "FME", Label: "Metal floor"},
			{Prefix: "FM", Label: "Masonry floor"},
		},
		Unknown: "F99",
	},
	{
		Name: "Height",
		Codes: []Code{
			{Prefix: "H", Label: "Number of storeys", Numeric: true},
		},
		Unknown: "H99",
	},
	{
		Name: "YearBuilt",
		Codes: []Code{
			{Prefix: "Y", Label: "Year of construction", Numeric: true},
			{Prefix: "YPRE", Label: "Built before year", Numeric: true},
		},
		Unknown: "Y99",
	},
	{
		Name: "Irregularity",
		Codes: []Code{
			{Prefix: "IRRE", Label: "Regular"},
			{Prefix: "IRIR", Label: "Irregular"},
		},
		Unknown: "IR99",
	},
	{
		Name: "Occupancy",
		Codes: []Code{
			{Prefix: "RES", Label: "Residential"},
			{Prefix: "COM", Label: "Commercial"},
			{Prefix: "IND", Label: "Industrial"},
			{Prefix: "AGR", Label: "Agricultural"},
			{Prefix: "ASS", Label: "Assembly"},
			{Prefix: "GOV", Label: "Government"},
			{Prefix: "EDU", Label: "Education"},
			{Prefix: "MIX", Label: "Mixed use"},
		},
		Unknown: "OC99",
	},
}

// registry holds the taxonomies resolvable by name.
var registry map[string]Taxonomy

func init() {
	gem, err := New(GEMName, gemAttributes...)
	if err != nil {
		panic(err)
	}
	registry = map[string]Taxonomy{GEMName: gem}
}

// GEM returns the built-in GEM-style building taxonomy.
func GEM() Taxonomy {
	return registry[GEMName]
}

// Lookup returns the registered taxonomy with the given name
// (case-insensitive).
func Lookup(name string) (Taxonomy, error) {
	for k, t := range registry {
		if strings.EqualFold(k, name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unknown taxonomy %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Names lists registered taxonomy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
