package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/render"
)

var leavesCmd = &cobra.Command{
	Use:   "leaves NAME",
	Short: "List the building types of a saved scheme with their shares",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme, err := loadScheme(cmd, args[0])
		if err != nil {
			return err
		}
		mods, _ := cmd.Flags().GetBool("modifiers")
		treeOrder, _ := cmd.Flags().GetBool("tree-order")
		fill, _ := cmd.Flags().GetBool("fill-missing")
		opts := ms.LeafOptions{WithModifiers: mods, KeepTreeOrder: treeOrder, FillMissing: fill}

		zones, err := selectZones(scheme, flagString(cmd, "zone"))
		if err != nil {
			return err
		}
		for _, z := range zones {
			stats, _ := scheme.Assignment(z.Name)
			leaves, err := stats.Leaves(opts)
			if err != nil {
				return fmt.Errorf("zone %q: %w", z.Name, err)
			}
			fmt.Printf("Zone %s (%d building types)\n", z.Name, len(leaves))
			printStyled(render.LeafTable(theme(cmd), leaves))
		}
		return nil
	},
}

func init() {
	leavesCmd.Flags().String("zone", "", "List only this zone")
	leavesCmd.Flags().Bool("modifiers", false, "Split leaves by their modifier values")
	leavesCmd.Flags().Bool("tree-order", false, "Compose types in tree level order")
	leavesCmd.Flags().Bool("fill-missing", false, "Add unknown-code leaves for unrecorded weight")
}
