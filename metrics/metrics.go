package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gdd"

// Metrics holds the Prometheus collectors of accumulation runs and the point
// query service.
type Metrics struct {
	Registry *prometheus.Registry

	StepsRetained prometheus.Counter
	StepsSkipped  prometheus.Counter
	SentinelCells prometheus.Counter
	StepDuration  prometheus.Histogram
	Runs          *prometheus.CounterVec // labels: outcome={success,error}
	LastRun       prometheus.Gauge

	PointQueries *prometheus.CounterVec // labels: transport={http,grpc}, outcome={ok,invalid,outside}
}

// NewMetrics creates all collectors and registers them with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StepsRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_retained_total",
			Help:      "Timesteps folded into the running total and written.",
		}),
		StepsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_skipped_total",
			Help:      "Timesteps outside the season filter.",
		}),
		SentinelCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentinel_cells_total",
			Help:      "Grid cells written as the fill value because the total was not finite.",
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time to read, fold and write one timestep.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Accumulation runs by outcome.",
		}, []string{"outcome"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last accumulation run finished.",
		}),
		PointQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "point_queries_total",
			Help:      "Point queries by transport and outcome.",
		}, []string{"transport", "outcome"}),
	}

	m.Registry.MustRegister(
		m.StepsRetained,
		m.StepsSkipped,
		m.SentinelCells,
		m.StepDuration,
		m.Runs,
		m.LastRun,
		m.PointQueries,
	)

	return m
}

func (m *Metrics) ObserveStep(sentinels int, d time.Duration) {
	m.StepsRetained.Inc()
	m.SentinelCells.Add(float64(sentinels))
	m.StepDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRun(skipped int, finished time.Time, err error) {
	m.StepsSkipped.Add(float64(skipped))
	m.LastRun.Set(float64(finished.Unix()))
	if err != nil {
		m.Runs.WithLabelValues("error").Inc()
		return
	}
	m.Runs.WithLabelValues("success").Inc()
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
