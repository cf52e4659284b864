package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/exposure"
	"github.com/abhisek/sidd/internal/footprint"
	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/store"
)

var applyCmd = &cobra.Command{
	Use:   "apply NAME",
	Short: "Extrapolate exposure by applying a saved scheme to building counts",
	Long: "Apply samples building types for every zone (or cell) count, read either from " +
		"--counts or by counting --footprints per zone, and writes exposure records as JSON.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		policy := app.cfg.Policy
		if v := flagString(cmd, "policy"); v != "" {
			policy = v
		}
		pol, err := ms.ParsePolicy(policy)
		if err != nil {
			return err
		}
		seed := app.cfg.Seed
		if cmd.Flags().Changed("seed") {
			seed, _ = cmd.Flags().GetUint64("seed")
		}

		counts, err := readCounts(cmd)
		if err != nil {
			return err
		}
		scheme, err := loadScheme(cmd, name)
		if err != nil {
			return err
		}

		opts := exposure.Options{
			Policy:  pol,
			Metrics: app.metrics,
			Logger:  logger("exposure"),
		}
		if seed != 0 {
			opts.Source = ms.NewSource(seed)
		}
		bar := pb.New(len(counts)).SetWriter(os.Stderr).Start()
		opts.Progress = func(done int) { bar.SetCurrent(int64(done)) }
		records, err := exposure.Apply(ctx, scheme, counts, opts)
		bar.Finish()
		if err != nil {
			return err
		}

		if err := writeRecords(flagString(cmd, "out"), records); err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.History().Append(ctx, store.Event{
			Scheme: name,
			Action: store.ActionApply,
			Detail: pol.String() + " seed=" + strconv.FormatUint(seed, 10),
			Cases:  len(records),
		}); err != nil {
			return err
		}

		count, area, cost := exposure.Totals(records)
		fmt.Fprintf(os.Stderr, "%d records: %.0f buildings, %.1f m², cost %.1f\n", len(records), count, area, cost)
		return nil
	},
}

func init() {
	applyCmd.Flags().String("counts", "", "JSON array of {zone, cell, count} inputs")
	applyCmd.Flags().String("footprints", "", "Building footprints GeoJSON, counted per zone")
	applyCmd.Flags().String("zones", "", "Zone polygons GeoJSON used to place --footprints")
	applyCmd.Flags().Bool("projected", false, "Coordinates are planar metres rather than lon/lat")
	applyCmd.Flags().String("policy", "", "Extrapolation policy: random-walk, fraction or fraction-rounded (default from config)")
	applyCmd.Flags().Uint64("seed", 0, "Seed for random-walk sampling (0 = time-based)")
	applyCmd.Flags().StringP("out", "o", "", "Write records to this file instead of stdout")
	applyCmd.MarkFlagsMutuallyExclusive("counts", "footprints")
	applyCmd.MarkFlagsOneRequired("counts", "footprints")
}

func readCounts(cmd *cobra.Command) ([]exposure.ZoneCount, error) {
	if path := flagString(cmd, "counts"); path != "" {
		return readWith(path, func(r io.Reader) ([]exposure.ZoneCount, error) {
			var counts []exposure.ZoneCount
			if err := json.NewDecoder(r).Decode(&counts); err != nil {
				return nil, fmt.Errorf("decode counts: %w", err)
			}
			for i, c := range counts {
				if c.Count < 0 {
					return nil, fmt.Errorf("counts[%d]: negative count %d", i, c.Count)
				}
			}
			return counts, nil
		})
	}

	projected, _ := cmd.Flags().GetBool("projected")
	opts := footprint.DefaultOptions()
	opts.Projected = projected
	reader := footprint.NewReader(opts, logger("footprint"))

	var zones []footprint.Zone
	if path := flagString(cmd, "zones"); path != "" {
		var err error
		if zones, err = readWith(path, reader.ReadZones); err != nil {
			return nil, fmt.Errorf("read zones: %w", err)
		}
	}
	fps, err := readWith(flagString(cmd, "footprints"), func(r io.Reader) ([]footprint.Footprint, error) {
		fps, _, err := reader.ReadFootprints(r, zones)
		return fps, err
	})
	if err != nil {
		return nil, fmt.Errorf("read footprints: %w", err)
	}
	if len(fps) == 0 {
		return nil, errors.New("no footprints to count")
	}
	return exposure.CountFootprints(fps), nil
}

func writeRecords(path string, records []exposure.Record) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
