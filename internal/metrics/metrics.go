// Package metrics exposes Prometheus counters for scheme building and
// exposure sampling. All methods are safe on a nil *Metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/abhisek/sidd/internal/ms"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	casesAdded     prometheus.Counter
	casesSkipped   prometheus.Counter
	zonesBuilt     prometheus.Counter
	buildings      *prometheus.CounterVec
	sampleDuration *prometheus.HistogramVec
	zoneFallbacks  prometheus.Counter
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		casesAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "sidd_cases_added_total",
			Help: "Cases accumulated into statistics trees",
		}),
		casesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "sidd_cases_skipped_total",
			Help: "Cases skipped for data-quality problems",
		}),
		zonesBuilt: f.NewCounter(prometheus.CounterOpts{
			Name: "sidd_zones_built_total",
			Help: "Zone trees finalized",
		}),
		buildings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sidd_buildings_sampled_total",
			Help: "Buildings distributed across building types, by policy",
		}, []string{"policy"}),
		sampleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sidd_sampling_duration_seconds",
			Help:    "Time spent sampling one zone or cell",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}, []string{"policy"}),
		zoneFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "sidd_zone_fallbacks_total",
			Help: "Exposure inputs whose zone fell back to the ALL assignment",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveBuild records the outcome of a batch of cases.
func (m *Metrics) ObserveBuild(rep ms.Report, zones int) {
	if m == nil {
		return
	}
	m.casesAdded.Add(float64(rep.Added))
	m.casesSkipped.Add(float64(len(rep.Skipped)))
	m.zonesBuilt.Add(float64(zones))
}

// ObserveSamples records one sampling call.
func (m *Metrics) ObserveSamples(policy ms.Policy, buildings float64, d time.Duration) {
	if m == nil {
		return
	}
	m.buildings.WithLabelValues(policy.String()).Add(buildings)
	m.sampleDuration.WithLabelValues(policy.String()).Observe(d.Seconds())
}

// ObserveZoneFallback records an input routed to the ALL assignment.
func (m *Metrics) ObserveZoneFallback() {
	if m == nil {
		return
	}
	m.zoneFallbacks.Inc()
}

// WriteTextfile writes the current values in the text exposition format,
// for pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
