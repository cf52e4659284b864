package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sidd/internal/ms"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	p, err := cfg.ExtrapolationPolicy()
	require.NoError(t, err)
	assert.Equal(t, ms.RandomWalk, p)

	sc, err := cfg.StratifiedConfig()
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0.3, 0.4, 0.3}, sc.StrataWeights)
	assert.Equal(t, 1000, sc.Precision)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	doc := `
policy: fraction-rounded
seed: 99
stratified:
  strata_weights: [0.2, 0.5, 0.3]
blob:
  driver: s3
  s3:
    bucket: exposure
    use_path_style: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fraction-rounded", cfg.Policy)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, "GEM", cfg.Taxonomy, "unset keys keep defaults")
	assert.Equal(t, 1000, cfg.Stratified.Precision)
	assert.Equal(t, []float64{0.2, 0.5, 0.3}, cfg.Stratified.StrataWeights)
	assert.Equal(t, "exposure", cfg.Blob.S3.Bucket)
	assert.True(t, cfg.Blob.S3.UsePathStyle)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SIDD_POLICY", "fraction")
	t.Setenv("SIDD_SEED", "7")
	t.Setenv("SIDD_STRATA_WEIGHTS", "0.25, 0.5, 0.25")
	t.Setenv("SIDD_STORE_DRIVER", "postgres")
	t.Setenv("SIDD_STORE_DSN", "postgres://localhost/sidd")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, "fraction", cfg.Policy)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, []float64{0.25, 0.5, 0.25}, cfg.Stratified.StrataWeights)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	require.NoError(t, cfg.Validate())

	t.Setenv("SIDD_SEED", "minus one")
	assert.Error(t, ApplyEnv(&cfg))
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Taxonomy = "NOPE"
	cfg.Policy = "guess"
	cfg.LogLevel = "loud"
	cfg.Stratified.StrataWeights = []float64{1}
	cfg.Store.Driver = "postgres"
	cfg.Blob.Driver = "s3"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown taxonomy "NOPE"`,
		`unknown extrapolation policy "guess"`,
		`invalid log_level "loud"`,
		"strata_weights needs 3 values",
		"store.dsn is required",
		"blob.s3.bucket is required",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestValidate_RejectsMemoryBlob(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Blob.Driver = "memory"
	assert.ErrorContains(t, cfg.Validate(), "blob.driver memory")

	cfg.Blob.Driver = "fs"
	assert.NoError(t, cfg.Validate())
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	want := filepath.Join(root, "a", FileName)
	require.NoError(t, os.WriteFile(want, []byte("policy: fraction\n"), 0o644))
	got, err = Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("policy: fraction\nlog_level: debug\n"), 0o644))
	t.Setenv("SIDD_POLICY", "random-walk")

	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "random-walk", cfg.Policy, "environment wins over file")
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}
