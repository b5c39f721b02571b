package metrics

import (
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/younsl/cinder-volume/internal/models"
	"github.com/younsl/cinder-volume/pkg/reconcile"
)

// Metrics records one run. Each run is a separate process, so the registry
// is private and exported through the node_exporter textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	FailuresTotal    *prometheus.CounterVec
	VolumesDeleted   prometheus.Counter
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
}

// New creates and registers the run metrics
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinder_volume_runs_total",
				Help: "Total number of reconciliation runs",
			},
			[]string{"state", "changed"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinder_volume_failures_total",
				Help: "Total number of failed reconciliation runs",
			},
			[]string{"state", "kind"},
		),
		VolumesDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cinder_volume_deleted_volumes_total",
				Help: "Total number of volumes deleted",
			},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cinder_volume_run_duration_seconds",
				Help:    "Time spent reconciling one volume",
				Buckets: prometheus.DefBuckets,
			},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cinder_volume_last_run_timestamp_seconds",
				Help: "Timestamp of the last reconciliation run",
			},
		),
	}
	m.registry.MustRegister(
		m.RunsTotal,
		m.FailuresTotal,
		m.VolumesDeleted,
		m.RunDuration,
		m.LastRunTimestamp,
	)
	return m
}

// Observe records the outcome of one run
func (m *Metrics) Observe(state models.State, result models.Result, err error, duration time.Duration) {
	m.RunDuration.Observe(duration.Seconds())
	m.LastRunTimestamp.SetToCurrentTime()

	if err != nil {
		kind, ok := reconcile.KindOf(err)
		if !ok {
			kind = "unknown"
		}
		m.FailuresTotal.WithLabelValues(string(state), string(kind)).Inc()
		return
	}

	changed := "false"
	if result.Changed {
		changed = "true"
	}
	m.RunsTotal.WithLabelValues(string(state), changed).Inc()
	m.VolumesDeleted.Add(float64(len(result.Deleted)))
}

// Registry exposes the registry for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes the metrics in text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	return errors.Annotate(prometheus.WriteToTextfile(path, m.registry), "writing metrics textfile")
}
