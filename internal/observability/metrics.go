package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for one derivation run.
type Metrics struct {
	Registry *prometheus.Registry

	RowsRead          *prometheus.CounterVec // labels: table={hourly_obs,hourly_derived,daily_obs,daily_derived}
	RowsUpdated       *prometheus.CounterVec // labels: table={hourly_derived,daily_derived}
	RowsPassedThrough *prometheus.CounterVec // labels: table={hourly_derived,daily_derived}
	MissingResults    *prometheus.CounterVec // labels: table={hourly_obs,daily_obs}
	ZeroHourDays      prometheus.Counter

	PhaseDuration *prometheus.HistogramVec // labels: phase
	RunDuration   prometheus.Gauge
	LastSuccess   prometheus.Gauge

	SummariesPublished prometheus.Counter
}

// NewMetrics creates the run metrics on a private registry. A batch run
// exports them once at the end, so nothing is shared with the default registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agmet_derive",
			Name:      "rows_read_total",
			Help:      "Rows read per input table.",
		}, []string{"table"}),
		RowsUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agmet_derive",
			Name:      "rows_updated_total",
			Help:      "Derived-table rows whose derived columns were overwritten.",
		}, []string{"table"}),
		RowsPassedThrough: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agmet_derive",
			Name:      "rows_passed_through_total",
			Help:      "Derived-table rows with no matching observations, written unchanged.",
		}, []string{"table"}),
		MissingResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agmet_derive",
			Name:      "missing_results_total",
			Help:      "Model evaluations skipped because an input was a missing-data sentinel.",
		}, []string{"table"}),
		ZeroHourDays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agmet_derive",
			Name:      "zero_hour_days_total",
			Help:      "Days with no hourly records to average.",
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agmet_derive",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each pipeline phase.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"phase"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agmet_derive",
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agmet_derive",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful run finished.",
		}),
		SummariesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agmet_derive",
			Name:      "summaries_published_total",
			Help:      "Daily summaries written to the Kafka sink topic.",
		}),
	}

	m.Registry.MustRegister(
		m.RowsRead,
		m.RowsUpdated,
		m.RowsPassedThrough,
		m.MissingResults,
		m.ZeroHourDays,
		m.PhaseDuration,
		m.RunDuration,
		m.LastSuccess,
		m.SummariesPublished,
	)

	return m
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
