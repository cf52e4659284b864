package render

import (
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/abhisek/sidd/internal/ms"
)

// Table draws headers and rows with the theme's border and cell styles.
func Table(th Theme, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(th.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.Header
			}
			return th.Cell
		})
	return t.String()
}

// LeafTable lists building types with their probabilities and annotations.
func LeafTable(th Theme, leaves []ms.Leaf) string {
	rows := make([][]string, 0, len(leaves))
	for _, l := range leaves {
		rows = append(rows, []string{
			l.Taxonomy,
			strconv.FormatFloat(l.Probability*100, 'f', 2, 64) + "%",
			formatFloat(l.AvgSize),
			formatFloat(l.UnitCost),
		})
	}
	return Table(th, []string{"Building type", "Share", "Avg size", "Unit cost"}, rows)
}

// SampleTable lists sampled building counts.
func SampleTable(th Theme, samples []ms.Sample) string {
	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{
			s.Taxonomy,
			formatFloat(s.Count),
			formatFloat(s.AvgSize),
			formatFloat(s.AvgCost),
		})
	}
	return Table(th, []string{"Building type", "Count", "Avg size", "Unit cost"}, rows)
}

func formatFloat(v float64) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
