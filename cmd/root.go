package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/sidd/internal/config"
	"github.com/abhisek/sidd/internal/metrics"
	"github.com/abhisek/sidd/internal/store"
	"github.com/abhisek/sidd/internal/taxonomy"
)

var rootCmd = &cobra.Command{
	Use:   "sidd",
	Short: "Build mapping schemes and extrapolate building exposure",
	Long: "sidd builds probabilistic building-type mapping schemes from surveys and footprints " +
		"and applies them to building counts to produce synthetic exposure.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(flagString(cmd, "config"))
		if err != nil {
			return err
		}
		level, _ := cfg.Level()
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		app.cfg = cfg
		app.metrics = metrics.New()
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app.cfg.MetricsFile == "" {
			return nil
		}
		if err := app.metrics.WriteTextfile(app.cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		return nil
	},
}

// app holds state resolved once per invocation.
var app struct {
	cfg     config.Config
	metrics *metrics.Metrics
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides SIDD_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: nearest "+config.FileName+")")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("plain", false, "Disable colored output")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(stratifiedCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(leavesCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database location: --db flag (highest
// priority), then the configured DSN, then SIDD_DB or the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p := flagString(cmd, "db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if app.cfg.Store.DSN != "" {
		return app.cfg.Store.DSN, nil
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	dsn, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	driver := app.cfg.Store.Driver
	if flagString(cmd, "db") != "" {
		driver = store.DriverSQLite
	}
	s, err := store.Open(cmd.Context(), driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// resolveTaxonomy returns the configured taxonomy wrapped in a parse cache.
func resolveTaxonomy() (taxonomy.Taxonomy, error) {
	tax, err := taxonomy.Lookup(app.cfg.Taxonomy)
	if err != nil {
		return nil, err
	}
	if app.cfg.ParseCacheSize == 0 {
		return tax, nil
	}
	cached, err := taxonomy.NewCached(tax, app.cfg.ParseCacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func logger(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
