package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// NO2 preparation pipelines.
type Metrics struct {
	RastersRead prometheus.Counter
	// DaysSkipped counts by drop site, not root cause: "missing" is a day
	// absent from the daily layout at compositing; "unavailable" is a day
	// that yielded no sample during series extraction, whether the file
	// was missing, unreadable, or had no valid pixels under the polygon.
	// The series path deliberately does not distinguish those causes.
	DaysSkipped     *prometheus.CounterVec // labels: reason={missing,unavailable}
	MonthsComposed  prometheus.Counter
	MonthsSkipped   prometheus.Counter
	PipelineRunning prometheus.Gauge

	CitiesProcessed   prometheus.Counter
	TimepointsWritten prometheus.Counter
	SignificanceTests *prometheus.CounterVec // labels: outcome={significant,not_significant,insufficient_data}
	ZonalDuration     prometheus.Histogram

	// Acquisition metrics.
	DownloadRequests *prometheus.CounterVec // labels: outcome={success,error}
	DownloadDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RastersRead,
		m.DaysSkipped,
		m.MonthsComposed,
		m.MonthsSkipped,
		m.PipelineRunning,
		m.CitiesProcessed,
		m.TimepointsWritten,
		m.SignificanceTests,
		m.ZonalDuration,
		m.DownloadRequests,
		m.DownloadDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RastersRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "no2_etl",
			Name:      "rasters_read_total",
			Help:      "Total raster files successfully loaded.",
		}),
		DaysSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "no2_etl",
			Name:      "days_skipped_total",
			Help:      "Days dropped, by drop site: missing (no raster file at compositing) or unavailable (no usable sample during series extraction, any cause).",
		}, []string{"reason"}),
		MonthsComposed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "no2_etl",
			Name:      "months_composed_total",
			Help:      "Monthly composites written.",
		}),
		MonthsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "no2_etl",
			Name:      "months_skipped_total",
			Help:      "Months excluded from compositing for incomplete coverage.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "no2_etl",
			Name:      "pipeline_running",
			Help:      "1 when a pipeline run is active, 0 when shut down.",
		}),
		CitiesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "no2_etl",
			Name:      "cities_processed_total",
			Help:      "City-period combinations evaluated.",
		}),
		TimepointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "no2_etl",
			Name:      "timepoints_written_total",
			Help:      "City timepoint records emitted to sinks.",
		}),
		SignificanceTests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "no2_etl",
			Name:      "significance_tests_total",
			Help:      "Significance test verdicts, by outcome.",
		}, []string{"outcome"}),
		ZonalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "no2_etl",
			Name:      "zonal_mean_duration_seconds",
			Help:      "Duration of one polygon zonal mean computation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		DownloadRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "no2_etl",
			Name:      "download_requests_total",
			Help:      "Satellite data provider requests, by outcome.",
		}, []string{"outcome"}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "no2_etl",
			Name:      "download_duration_seconds",
			Help:      "Duration of one provider process request.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}
