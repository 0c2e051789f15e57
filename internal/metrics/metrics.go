// Package metrics records per-run resolution metrics and exports them in the
// Prometheus text format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Recorder collects metrics for one run. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetchTotal      *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	entriesTotal    *prometheus.CounterVec
	optionalMissing prometheus.Counter
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "awsm_env_fetch_total",
				Help: "Total number of secret fetches by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "awsm_env_fetch_duration_seconds",
				Help:    "Duration of secret fetches in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"provider"},
		),
		entriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "awsm_env_entries_total",
				Help: "Number of resolved entries by value source",
			},
			[]string{"source"},
		),
		optionalMissing: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "awsm_env_optional_missing_total",
				Help: "Optional secrets that did not exist and fell back to default or omission",
			},
		),
	}
}

// RecordFetch records one provider call.
func (r *Recorder) RecordFetch(provider, outcome string, durationSeconds float64) {
	if r == nil {
		return
	}
	r.fetchTotal.WithLabelValues(provider, outcome).Inc()
	r.fetchDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordOptionalMissing records an optional secret that was not found.
func (r *Recorder) RecordOptionalMissing() {
	if r == nil {
		return
	}
	r.optionalMissing.Inc()
}

// RecordEntry records one entry of the final result.
func (r *Recorder) RecordEntry(source string) {
	if r == nil {
		return
	}
	r.entriesTotal.WithLabelValues(source).Inc()
}

// Registry exposes the underlying registry, for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes all metrics to path in the node_exporter textfile
// format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
