package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/render"
	"github.com/abhisek/sidd/internal/taxonomy"
)

// openInput opens path for reading behind a byte progress bar on stderr.
// The returned close func finishes the bar and closes the file.
func openInput(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	bar := pb.New64(info.Size()).SetTemplate(pb.Full)
	bar.SetWriter(os.Stderr)
	bar.Set(pb.Bytes, true)
	bar.Start()
	return bar.NewProxyReader(f), func() {
		bar.Finish()
		f.Close()
	}, nil
}

// addTreeFlags registers the attribute ordering flags shared by builders.
func addTreeFlags(cmd *cobra.Command) {
	cmd.Flags().String("order", "", "Comma-separated attribute order for tree levels (default: taxonomy order)")
	cmd.Flags().String("skip", "", "Comma-separated attributes to leave out of the tree")
}

// treeOptions converts --order and --skip into statistics options.
func treeOptions(cmd *cobra.Command, tax taxonomy.Taxonomy) ([]ms.Option, error) {
	opts := []ms.Option{ms.WithLogger(logger("ms"))}
	if v := flagString(cmd, "order"); v != "" {
		ids, err := attributeIDs(tax, v)
		if err != nil {
			return nil, fmt.Errorf("--order: %w", err)
		}
		opts = append(opts, ms.WithAttributeOrder(ids...))
	}
	if v := flagString(cmd, "skip"); v != "" {
		ids, err := attributeIDs(tax, v)
		if err != nil {
			return nil, fmt.Errorf("--skip: %w", err)
		}
		opts = append(opts, ms.WithSkip(ids...))
	}
	return opts, nil
}

func attributeIDs(tax taxonomy.Taxonomy, list string) ([]taxonomy.AttributeID, error) {
	var ids []taxonomy.AttributeID
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		a, ok := tax.AttributeByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", name)
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// theme picks the colored theme unless --plain was given.
func theme(cmd *cobra.Command) render.Theme {
	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		return render.PlainTheme()
	}
	return render.DefaultTheme()
}

// printStyled writes s to stdout, downsampling colors to the terminal.
func printStyled(s string) {
	_, _ = lipgloss.Println(s)
}
