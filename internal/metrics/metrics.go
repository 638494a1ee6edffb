// Package metrics records run counters in a Prometheus registry and writes
// them in text exposition format for node_exporter's textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"clipmill/internal/manifest"
	"clipmill/internal/workflow"
)

// Recorder implements workflow.Observer on top of a private registry.
type Recorder struct {
	registry *prometheus.Registry

	units     *prometheus.CounterVec
	subitems  *prometheus.CounterVec
	duration  prometheus.Histogram
	inFlight  prometheus.Gauge
	runUnits  *prometheus.GaugeVec
	runLength prometheus.Gauge
}

// New registers clipmill's collectors in a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		units: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clipmill_units_total",
			Help: "Work units collected by outcome",
		}, []string{"outcome"}),
		subitems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clipmill_subitems_total",
			Help: "Subitem stage results by stage and outcome",
		}, []string{"stage", "outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clipmill_unit_duration_seconds",
			Help:    "Wall-clock time to run one work unit",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "clipmill_units_in_flight",
			Help: "Work units currently running",
		}),
		runUnits: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clipmill_run_units",
			Help: "Unit counts for the last run by category",
		}, []string{"category"}),
		runLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "clipmill_run_duration_seconds",
			Help: "Wall-clock time of the last run",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// UnitStarted implements workflow.Observer.
func (r *Recorder) UnitStarted(int, manifest.WorkUnit) {
	r.inFlight.Inc()
}

// UnitFinished implements workflow.Observer.
func (r *Recorder) UnitFinished(outcome workflow.Outcome, _, _ int) {
	r.inFlight.Dec()
	if outcome.Succeeded() {
		r.units.WithLabelValues("succeeded").Inc()
	} else {
		r.units.WithLabelValues("failed").Inc()
	}
	r.duration.Observe(outcome.Result.Duration.Seconds())
	for _, item := range outcome.Result.Items {
		switch {
		case item.TransformErr != nil:
			r.subitems.WithLabelValues("transform", "failed").Inc()
		case item.Transformed():
			r.subitems.WithLabelValues("transform", "ok").Inc()
		}
		switch {
		case item.UploadErr != nil:
			r.subitems.WithLabelValues("upload", "failed").Inc()
		case item.Uploaded:
			r.subitems.WithLabelValues("upload", "ok").Inc()
		}
	}
}

// RecordRun stores the final run summary.
func (r *Recorder) RecordRun(stats workflow.RunStats) {
	r.runUnits.WithLabelValues("total").Set(float64(stats.Total))
	r.runUnits.WithLabelValues("skipped").Set(float64(stats.Skipped))
	r.runUnits.WithLabelValues("attempted").Set(float64(stats.Attempted))
	r.runUnits.WithLabelValues("succeeded").Set(float64(stats.Succeeded))
	r.runUnits.WithLabelValues("failed").Set(float64(stats.Failed))
	r.runUnits.WithLabelValues("not_dispatched").Set(float64(stats.NotDispatched))
	r.runLength.Set(stats.Elapsed.Seconds())
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

var _ workflow.Observer = (*Recorder)(nil)
