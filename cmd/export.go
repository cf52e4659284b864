package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/blob"
	"github.com/abhisek/sidd/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export NAME [KEY]",
	Short: "Write a saved scheme as XML to the configured blob store",
	Long:  "Export writes the scheme to the blob driver from config (fs or s3). KEY defaults to NAME.xml.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]
		key := name + ".xml"
		if len(args) == 2 {
			key = args[1]
		}

		scheme, err := loadScheme(cmd, name)
		if err != nil {
			return err
		}
		bs, err := blob.Open(ctx, app.cfg.Blob)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		info, err := blob.PutScheme(ctx, bs, key, scheme)
		if err != nil {
			return fmt.Errorf("export %q: %w", name, err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.History().Append(ctx, store.Event{
			Scheme: name,
			Action: store.ActionExport,
			Detail: string(bs.Driver()) + ":" + key,
		}); err != nil {
			return err
		}

		fmt.Printf("Exported %q to %s:%s (%d bytes)\n", name, bs.Driver(), info.Key, info.Size)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import KEY",
	Short: "Read a scheme XML document from the configured blob store and save it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		key := args[0]
		name := flagString(cmd, "name")

		bs, err := blob.Open(ctx, app.cfg.Blob)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		scheme, err := blob.GetScheme(ctx, bs, key, nil)
		if err != nil {
			return fmt.Errorf("import %s: %w", key, err)
		}
		if err := scheme.Validate(); err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		if _, err := s.Schemes().Save(ctx, name, scheme); err != nil {
			return err
		}
		if err := s.History().Append(ctx, store.Event{
			Scheme: name,
			Action: store.ActionImport,
			Detail: string(bs.Driver()) + ":" + key,
		}); err != nil {
			return err
		}

		fmt.Printf("Imported %s as %q: %d zones\n", key, name, scheme.Len())
		return nil
	},
}

func init() {
	importCmd.Flags().StringP("name", "n", "", "Name to save the scheme under (required)")
	_ = importCmd.MarkFlagRequired("name")
}
