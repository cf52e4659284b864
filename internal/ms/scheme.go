package ms

import (
	"fmt"
	"slices"

	"github.com/abhisek/sidd/internal/taxonomy"
)

// AllZones is the zone name of a scheme that is not split by zone.
const AllZones = "ALL"

// Zone identifies a spatial zone within a mapping scheme.
type Zone struct {
	Name string
}

// MappingScheme assigns one Statistics tree to each zone. The taxonomy is
// shared with the trees, not owned.
type MappingScheme struct {
	tax   taxonomy.Taxonomy
	zones []Zone
	stats map[string]*Statistics
}

// NewScheme creates an empty scheme over tax.
func NewScheme(tax taxonomy.Taxonomy) *MappingScheme {
	return &MappingScheme{
		tax:   tax,
		stats: make(map[string]*Statistics),
	}
}

// Taxonomy returns the scheme's taxonomy.
func (m *MappingScheme) Taxonomy() taxonomy.Taxonomy { return m.tax }

// Assign sets the statistics of zone. An existing assignment for the same
// zone name is replaced in place. The tree root is renamed after the zone.
func (m *MappingScheme) Assign(zone Zone, stats *Statistics) error {
	if zone.Name == "" {
		return fmt.Errorf("assign: empty zone name")
	}
	if stats == nil {
		return fmt.Errorf("assign zone %q: nil statistics", zone.Name)
	}
	if stats.tax.Name() != m.tax.Name() {
		return fmt.Errorf("assign zone %q: statistics use taxonomy %s, scheme uses %s", zone.Name, stats.tax.Name(), m.tax.Name())
	}
	if _, ok := m.stats[zone.Name]; !ok {
		m.zones = append(m.zones, zone)
	}
	stats.SetRootValue(zone.Name)
	m.stats[zone.Name] = stats
	return nil
}

// Assignment returns the statistics assigned to the named zone.
func (m *MappingScheme) Assignment(name string) (*Statistics, bool) {
	s, ok := m.stats[name]
	return s, ok
}

// Zones returns the zones in assignment order.
func (m *MappingScheme) Zones() []Zone { return slices.Clone(m.zones) }

// Remove drops the named zone. It reports whether the zone existed.
func (m *MappingScheme) Remove(name string) bool {
	if _, ok := m.stats[name]; !ok {
		return false
	}
	delete(m.stats, name)
	m.zones = slices.DeleteFunc(m.zones, func(z Zone) bool { return z.Name == name })
	return true
}

// Len returns the number of zones.
func (m *MappingScheme) Len() int { return len(m.zones) }

// Finalize finalizes every zone tree that is not finalized yet.
func (m *MappingScheme) Finalize() {
	for _, z := range m.zones {
		if s := m.stats[z.Name]; !s.Finalized() {
			s.Finalize()
		}
	}
}

// Validate validates every zone tree.
func (m *MappingScheme) Validate() error {
	for _, z := range m.zones {
		if err := m.stats[z.Name].Validate(); err != nil {
			return fmt.Errorf("zone %q: %w", z.Name, err)
		}
	}
	return nil
}
