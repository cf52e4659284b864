package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/footprint"
	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/render"
	"github.com/abhisek/sidd/internal/store"
	"github.com/abhisek/sidd/internal/stratified"
	"github.com/abhisek/sidd/internal/survey"
)

var stratifiedCmd = &cobra.Command{
	Use:   "stratified",
	Short: "Build a mapping scheme from a stratified survey and footprints",
	Long: "Stratified ranks each zone's three sampling groups by mean height, weights them, " +
		"and scales the surveyed building types to the zone's footprint area.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := flagString(cmd, "name")

		tax, err := resolveTaxonomy()
		if err != nil {
			return err
		}
		statsOpts, err := treeOptions(cmd, tax)
		if err != nil {
			return err
		}
		sc, err := app.cfg.StratifiedConfig()
		if err != nil {
			return err
		}
		creator, err := stratified.New(tax, sc,
			stratified.WithLogger(logger("stratified")),
			stratified.WithStatisticsOptions(statsOpts...))
		if err != nil {
			return err
		}

		projected, _ := cmd.Flags().GetBool("projected")
		opts := footprint.DefaultOptions()
		opts.Projected = projected
		reader := footprint.NewReader(opts, logger("footprint"))

		var zones []footprint.Zone
		if path := flagString(cmd, "zones"); path != "" {
			zones, err = readWith(path, reader.ReadZones)
			if err != nil {
				return fmt.Errorf("read zones: %w", err)
			}
		}
		fps, err := readWith(flagString(cmd, "footprints"), func(r io.Reader) ([]footprint.Footprint, error) {
			fps, rep, err := reader.ReadFootprints(r, zones)
			if err == nil && rep.Unassigned > 0 {
				logger("footprint").Warn("footprints outside every zone", "count", rep.Unassigned)
			}
			return fps, err
		})
		if err != nil {
			return fmt.Errorf("read footprints: %w", err)
		}
		var loadRep survey.Report
		records, err := readWith(flagString(cmd, "survey"), func(r io.Reader) ([]survey.Record, error) {
			recs, lr, err := survey.NewLoader(survey.WithLogger(logger("survey"))).Load(r)
			loadRep = lr
			return recs, err
		})
		if err != nil {
			return fmt.Errorf("load survey: %w", err)
		}

		var zoneNames []string
		for _, z := range zones {
			zoneNames = append(zoneNames, z.Name)
		}
		scheme, rep, err := creator.Build(ctx, fps, zoneNames, records)
		if err != nil {
			return fmt.Errorf("build scheme: %w", err)
		}

		buildRep := stratifiedReport(loadRep, rep)
		app.metrics.ObserveBuild(buildRep, scheme.Len())

		var rows [][]string
		for _, zr := range rep.Zones {
			for _, te := range zr.Types {
				rows = append(rows, []string{
					zr.Zone,
					string(zr.Mode),
					te.Taxonomy,
					strconv.FormatFloat(te.Count, 'f', 1, 64),
					strconv.FormatFloat(te.Fraction*100, 'f', 2, 64) + "%",
				})
			}
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
			Scheme:  name,
			Action:  store.ActionStratified,
			Detail:  flagString(cmd, "survey"),
			Cases:   buildRep.Added,
			Skipped: len(buildRep.Skipped),
		}); err != nil {
			return err
		}

		printStyled(render.Table(theme(cmd), []string{"Zone", "Mode", "Building type", "Buildings", "Share"}, rows))
		fmt.Printf("Saved scheme %q: %d zones, %d survey records skipped\n", name, scheme.Len(), len(buildRep.Skipped))
		return nil
	},
}

func init() {
	stratifiedCmd.Flags().StringP("name", "n", "", "Name to save the scheme under (required)")
	stratifiedCmd.Flags().String("survey", "", "Survey records, JSON array or JSON Lines (required)")
	stratifiedCmd.Flags().String("footprints", "", "Building footprints GeoJSON (required)")
	stratifiedCmd.Flags().String("zones", "", "Zone polygons GeoJSON (default: zones named in the survey)")
	stratifiedCmd.Flags().Bool("projected", false, "Coordinates are planar metres rather than lon/lat")
	for _, f := range []string{"name", "survey", "footprints"} {
		_ = stratifiedCmd.MarkFlagRequired(f)
	}
	addTreeFlags(stratifiedCmd)
}

// stratifiedReport folds the survey loader's rejects and the records the
// creator dropped into one build report.
func stratifiedReport(loadRep survey.Report, rep stratified.Report) ms.Report {
	var out ms.Report
	for _, zr := range rep.Zones {
		for _, te := range zr.Types {
			out.Added += te.Cases
		}
	}
	for _, re := range loadRep.Skipped {
		out.Skipped = append(out.Skipped, ms.SkippedCase{Index: re.Index, Err: re.Err})
	}
	for _, sk := range rep.Skipped {
		out.Skipped = append(out.Skipped, ms.SkippedCase{Index: sk.Index, Err: errors.New(sk.Reason)})
	}
	return out
}

// readWith opens path with a progress bar and hands it to read.
func readWith[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	r, done, err := openInput(path)
	if err != nil {
		return zero, err
	}
	defer done()
	return read(r)
}
