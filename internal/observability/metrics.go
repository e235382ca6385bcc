package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// analysis pipeline.
type Metrics struct {
	CyclesTotal     *prometheus.CounterVec // labels: outcome={unavailable,schema_error,insufficient,no_trend,trend,prediction_failed,reported}
	CycleDuration   prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Normalization metrics.
	RowsFetched prometheus.Counter
	RowsDropped prometheus.Counter

	// Latest analysis values.
	WaterLevel      prometheus.Gauge
	ChangePerMinute prometheus.Gauge

	// Downstream metrics.
	PredictorRequests   *prometheus.CounterVec // labels: outcome={success,error}
	PredictorDuration   prometheus.Histogram
	AlertsPublished     *prometheus.CounterVec // labels: reporter
	ReporterErrors      *prometheus.CounterVec // labels: reporter
	SourceFetchDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.PipelineRunning,
		m.RowsFetched,
		m.RowsDropped,
		m.WaterLevel,
		m.ChangePerMinute,
		m.PredictorRequests,
		m.PredictorDuration,
		m.AlertsPublished,
		m.ReporterErrors,
		m.SourceFetchDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "cycles_total",
			Help:      "Analysis cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riverwatch",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-analyze-report cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riverwatch",
			Name:      "pipeline_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		RowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "rows_fetched_total",
			Help:      "Data rows read from the source.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "rows_dropped_total",
			Help:      "Data rows discarded because a field failed to parse.",
		}),
		WaterLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riverwatch",
			Name:      "water_level_cm",
			Help:      "Most recent valid water level reading.",
		}),
		ChangePerMinute: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riverwatch",
			Name:      "water_level_change_cm_per_minute",
			Help:      "Rate of change against the lookback baseline in the last analyzed cycle.",
		}),
		PredictorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "predictor_requests_total",
			Help:      "Predictor calls by outcome.",
		}, []string{"outcome"}),
		PredictorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riverwatch",
			Name:      "predictor_duration_seconds",
			Help:      "Predictor request duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "alerts_published_total",
			Help:      "Alerts delivered by reporter.",
		}, []string{"reporter"}),
		ReporterErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "reporter_errors_total",
			Help:      "Alert delivery failures by reporter.",
		}, []string{"reporter"}),
		SourceFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riverwatch",
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of a sheet fetch in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
