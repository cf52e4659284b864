package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/render"
)

var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Draw the classification trees of a saved scheme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme, err := loadScheme(cmd, args[0])
		if err != nil {
			return err
		}
		depth, _ := cmd.Flags().GetInt("depth")
		hideMods, _ := cmd.Flags().GetBool("no-modifiers")
		opts := render.TreeOptions{Theme: theme(cmd), MaxDepth: depth, HideModifiers: hideMods}

		zones, err := selectZones(scheme, flagString(cmd, "zone"))
		if err != nil {
			return err
		}
		for _, z := range zones {
			stats, _ := scheme.Assignment(z.Name)
			out, err := render.Tree(stats, opts)
			if err != nil {
				return fmt.Errorf("zone %q: %w", z.Name, err)
			}
			printStyled(out)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().String("zone", "", "Show only this zone")
	showCmd.Flags().Int("depth", 0, "Maximum tree depth to draw (0 = all)")
	showCmd.Flags().Bool("no-modifiers", false, "Hide modifier distributions")
}

// loadScheme reads the scheme saved under name.
func loadScheme(cmd *cobra.Command, name string) (*ms.MappingScheme, error) {
	tax, err := resolveTaxonomy()
	if err != nil {
		return nil, err
	}
	s, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Schemes().Load(cmd.Context(), name, tax)
}

// selectZones returns every zone of scheme, or just the named one.
func selectZones(scheme *ms.MappingScheme, name string) ([]ms.Zone, error) {
	if name == "" {
		return scheme.Zones(), nil
	}
	if _, ok := scheme.Assignment(name); !ok {
		return nil, fmt.Errorf("scheme has no zone %q", name)
	}
	return []ms.Zone{{Name: name}}, nil
}
