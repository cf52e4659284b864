// Package config holds sidd's layered configuration: built-in defaults,
// an optional YAML file, then SIDD_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/stratified"
	"github.com/abhisek/sidd/internal/taxonomy"
)

// FileName is the config file looked up by Discover.
const FileName = ".sidd.yml"

// Config is the full application configuration.
type Config struct {
	// Taxonomy names a registered taxonomy. Default: "GEM".
	Taxonomy string `yaml:"taxonomy"`
	// Policy is the extrapolation policy. Default: "random-walk".
	Policy string `yaml:"policy"`
	// Seed seeds random-walk sampling. Zero uses a time-based seed.
	Seed uint64 `yaml:"seed"`
	// ParseCacheSize bounds the taxonomy parse cache. Default: 4096.
	ParseCacheSize int    `yaml:"parse_cache_size"`
	LogLevel       string `yaml:"log_level"`
	// MetricsFile, if set, receives Prometheus metrics after each command.
	MetricsFile string `yaml:"metrics_file"`

	Stratified StratifiedConfig `yaml:"stratified"`
	Store      StoreConfig      `yaml:"store"`
	Blob       BlobConfig       `yaml:"blob"`
}

// StratifiedConfig configures stratified scheme building.
type StratifiedConfig struct {
	StrataWeights []float64 `yaml:"strata_weights"`
	Precision     int       `yaml:"precision"`
}

// StoreConfig selects the scheme database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // sqlite path or postgres URL; empty uses the default path
}

// BlobConfig selects where exported schemes are written.
type BlobConfig struct {
	Driver string   `yaml:"driver"` // "fs" or "s3"
	Root   string   `yaml:"root"`   // fs root directory
	S3     S3Config `yaml:"s3"`
}

// S3Config configures the s3 blob driver.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	sc := stratified.DefaultConfig()
	return Config{
		Taxonomy:       taxonomy.GEMName,
		Policy:         ms.RandomWalk.String(),
		ParseCacheSize: 4096,
		LogLevel:       "info",
		Stratified: StratifiedConfig{
			StrataWeights: sc.StrataWeights[:],
			Precision:     sc.Precision,
		},
		Store: StoreConfig{Driver: "sqlite"},
		Blob:  BlobConfig{Driver: "fs", Root: "."},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Discover walks up from startDir looking for FileName, stopping at a
// directory containing .git or at the filesystem root. It returns "" when
// no file is found.
func Discover(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return "", nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Resolve builds the effective config: defaults, then the file at path
// (or a discovered one when path is empty), then the environment.
func Resolve(path string) (Config, error) {
	if path == "" {
		found, err := Discover(".")
		if err != nil {
			return Config{}, err
		}
		path = found
	}

	cfg := DefaultConfig()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg with SIDD_* environment variables.
func ApplyEnv(cfg *Config) error {
	str := map[string]*string{
		"SIDD_TAXONOMY":     &cfg.Taxonomy,
		"SIDD_POLICY":       &cfg.Policy,
		"SIDD_LOG_LEVEL":    &cfg.LogLevel,
		"SIDD_METRICS_FILE": &cfg.MetricsFile,
		"SIDD_STORE_DRIVER": &cfg.Store.Driver,
		"SIDD_STORE_DSN":    &cfg.Store.DSN,
		"SIDD_BLOB_DRIVER":  &cfg.Blob.Driver,
		"SIDD_BLOB_ROOT":    &cfg.Blob.Root,
		"SIDD_S3_BUCKET":    &cfg.Blob.S3.Bucket,
		"SIDD_S3_REGION":    &cfg.Blob.S3.Region,
		"SIDD_S3_ENDPOINT":  &cfg.Blob.S3.Endpoint,
		"SIDD_S3_PREFIX":    &cfg.Blob.S3.Prefix,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SIDD_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SIDD_SEED: %w", err)
		}
		cfg.Seed = seed
	}
	if v := os.Getenv("SIDD_PARSE_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIDD_PARSE_CACHE_SIZE: %w", err)
		}
		cfg.ParseCacheSize = n
	}
	if v := os.Getenv("SIDD_PRECISION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIDD_PRECISION: %w", err)
		}
		cfg.Stratified.Precision = n
	}
	if v := os.Getenv("SIDD_STRATA_WEIGHTS"); v != "" {
		parts := strings.Split(v, ",")
		ws := make([]float64, 0, len(parts))
		for _, p := range parts {
			w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return fmt.Errorf("SIDD_STRATA_WEIGHTS: %w", err)
			}
			ws = append(ws, w)
		}
		cfg.Stratified.StrataWeights = ws
	}
	if v := os.Getenv("SIDD_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SIDD_S3_PATH_STYLE: %w", err)
		}
		cfg.Blob.S3.UsePathStyle = b
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []string

	if _, err := taxonomy.Lookup(c.Taxonomy); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := ms.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, err.Error())
	}
	if c.ParseCacheSize < 0 {
		errs = append(errs, fmt.Sprintf("parse_cache_size must not be negative, got %d", c.ParseCacheSize))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := c.StratifiedConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store driver: %q", c.Store.Driver))
	}

	switch c.Blob.Driver {
	case "fs":
	case "memory":
		errs = append(errs, "blob.driver memory does not outlive a single command; use fs or s3")
	case "s3":
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, "blob.s3.bucket is required for the s3 driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown blob driver: %q", c.Blob.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ExtrapolationPolicy returns the parsed policy.
func (c Config) ExtrapolationPolicy() (ms.Policy, error) {
	return ms.ParsePolicy(c.Policy)
}

// StratifiedConfig converts the stratified section, validating it.
func (c Config) StratifiedConfig() (stratified.Config, error) {
	var sc stratified.Config
	if len(c.Stratified.StrataWeights) != stratified.Strata {
		return sc, fmt.Errorf("stratified.strata_weights needs %d values, got %d", stratified.Strata, len(c.Stratified.StrataWeights))
	}
	copy(sc.StrataWeights[:], c.Stratified.StrataWeights)
	sc.Precision = c.Stratified.Precision
	return sc, sc.Validate()
}

// Level parses the log level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return l, nil
}
