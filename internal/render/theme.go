// Package render draws classification trees and tables for the terminal.
package render

import (
	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Dark slate
)

// Theme holds the styles used by the renderers.
type Theme struct {
	Root       lipgloss.Style
	Value      lipgloss.Style
	Attribute  lipgloss.Style
	Weight     lipgloss.Style
	Modifier   lipgloss.Style
	Annotation lipgloss.Style
	Enumerator lipgloss.Style
	Header     lipgloss.Style
	Cell       lipgloss.Style
	Border     lipgloss.Style
}

// DefaultTheme is the colored theme used on terminals.
func DefaultTheme() Theme {
	return Theme{
		Root:       lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Value:      lipgloss.NewStyle().Bold(true),
		Attribute:  lipgloss.NewStyle().Foreground(TextDim),
		Weight:     lipgloss.NewStyle().Foreground(Secondary),
		Modifier:   lipgloss.NewStyle().Foreground(Accent),
		Annotation: lipgloss.NewStyle().Foreground(TextDim).Italic(true),
		Enumerator: lipgloss.NewStyle().Foreground(Border).PaddingRight(1),
		Header:     lipgloss.NewStyle().Bold(true).Foreground(Primary).Padding(0, 1),
		Cell:       lipgloss.NewStyle().Padding(0, 1),
		Border:     lipgloss.NewStyle().Foreground(Border),
	}
}

// PlainTheme renders without colors, for files and tests.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Root:       plain,
		Value:      plain,
		Attribute:  plain,
		Weight:     plain,
		Modifier:   plain,
		Annotation: plain,
		Enumerator: plain.PaddingRight(1),
		Header:     plain.Padding(0, 1),
		Cell:       plain.Padding(0, 1),
		Border:     plain,
	}
}
