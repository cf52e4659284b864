package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sidd/internal/ms"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveBuild(ms.Report{Added: 5, Skipped: []ms.SkippedCase{{Index: 1, Err: errors.New("bad")}}}, 2)
	m.ObserveSamples(ms.RandomWalk, 40, 3*time.Millisecond)
	m.ObserveSamples(ms.RandomWalk, 2, time.Millisecond)
	m.ObserveSamples(ms.Fraction, 7.5, time.Millisecond)
	m.ObserveZoneFallback()

	assert.Equal(t, 5.0, testutil.ToFloat64(m.casesAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.casesSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.zonesBuilt))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.buildings.WithLabelValues("random-walk")))
	assert.Equal(t, 7.5, testutil.ToFloat64(m.buildings.WithLabelValues("fraction")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.zoneFallbacks))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveBuild(ms.Report{Added: 3}, 1)

	path := filepath.Join(t.TempDir(), "sidd.prom")
	require.NoError(t, m.WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "sidd_cases_added_total 3"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveBuild(ms.Report{Added: 1}, 1)
	m.ObserveSamples(ms.Fraction, 1, time.Second)
	m.ObserveZoneFallback()
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("/nonexistent/path"))
}
