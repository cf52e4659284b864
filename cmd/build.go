package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/store"
	"github.com/abhisek/sidd/internal/survey"
)

var buildCmd = &cobra.Command{
	Use:   "build SURVEY",
	Short: "Build a mapping scheme from survey records",
	Long: "Build aggregates every survey record into one classification tree per zone " +
		"and saves the finalized scheme under --name.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := flagString(cmd, "name")

		tax, err := resolveTaxonomy()
		if err != nil {
			return err
		}
		opts, err := treeOptions(cmd, tax)
		if err != nil {
			return err
		}

		r, done, err := openInput(args[0])
		if err != nil {
			return fmt.Errorf("open survey: %w", err)
		}
		records, loadRep, err := survey.NewLoader(survey.WithLogger(logger("survey"))).Load(r)
		done()
		if err != nil {
			return fmt.Errorf("load survey: %w", err)
		}

		scheme, rep, err := ms.BuildFromCases(ctx, tax, survey.Cases(records), opts...)
		if err != nil {
			return fmt.Errorf("build scheme: %w", err)
		}
		app.metrics.ObserveBuild(rep, scheme.Len())
		for _, sk := range rep.Skipped {
			slog.Warn("case skipped",
				slog.Int("record", sk.Index),
				slog.String("taxonomy", sk.Taxonomy),
				slog.Any("error", sk.Err))
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := s.Schemes().Save(ctx, name, scheme); err != nil {
			return err
		}
		skipped := len(loadRep.Skipped) + len(rep.Skipped)
		if err := s.History().Append(ctx, store.Event{
			Scheme:  name,
			Action:  store.ActionBuild,
			Detail:  args[0],
			Cases:   rep.Added,
			Skipped: skipped,
		}); err != nil {
			return err
		}

		fmt.Printf("Saved scheme %q: %d zones, %d cases, %d skipped\n", name, scheme.Len(), rep.Added, skipped)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringP("name", "n", "", "Name to save the scheme under (required)")
	_ = buildCmd.MarkFlagRequired("name")
	addTreeFlags(buildCmd)
}
