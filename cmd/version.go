package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/ms"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sidd", version)
		fmt.Println("scheme format", ms.FormatVersion)
	},
}
