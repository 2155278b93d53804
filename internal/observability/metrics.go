package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the dam ETL jobs.
type Metrics struct {
	// Upstream fetch metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: feed={summary,geo,detail}, outcome={ok,error,status,decode}
	UpstreamDuration *prometheus.HistogramVec // labels: feed
	FetchCache       *prometheus.CounterVec   // labels: result={hit,miss}

	// Reconciliation metrics.
	StationMatches *prometheus.CounterVec // labels: pass={primary,fallback}, kind={exact,suffix,alias,prefix}

	// Job metrics.
	Runs           *prometheus.CounterVec   // labels: job={master,realtime}, outcome={success,error}
	RunDuration    *prometheus.HistogramVec // labels: job
	SnapshotDams   *prometheus.GaugeVec     // labels: state={populated,empty,approximate}
	MasterStations prometheus.Gauge

	PublishErrors    prometheus.Counter
	SchedulerRunning prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.FetchCache,
		m.StationMatches,
		m.Runs,
		m.RunDuration,
		m.SnapshotDams,
		m.MasterStations,
		m.PublishErrors,
		m.SchedulerRunning,
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
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dam_etl",
			Name:      "upstream_requests_total",
			Help:      "Kawabou feed requests by feed and outcome.",
		}, []string{"feed", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dam_etl",
			Name:      "upstream_request_duration_seconds",
			Help:      "Kawabou feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dam_etl",
			Name:      "fetch_cache_total",
			Help:      "Feed cache lookups by result.",
		}, []string{"result"}),
		StationMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dam_etl",
			Name:      "station_matches_total",
			Help:      "Upstream stations matched to curated dams, by pass and match kind.",
		}, []string{"pass", "kind"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dam_etl",
			Name:      "runs_total",
			Help:      "Completed job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dam_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete job run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		SnapshotDams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dam_etl",
			Name:      "snapshot_dams",
			Help:      "Curated dams in the latest snapshot by state.",
		}, []string{"state"}),
		MasterStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dam_etl",
			Name:      "master_stations",
			Help:      "Stations in the latest master mapping.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dam_etl",
			Name:      "publish_errors_total",
			Help:      "Snapshot sink failures other than the output file.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dam_etl",
			Name:      "scheduler_running",
			Help:      "1 when the fetch scheduler is active, 0 when shut down.",
		}),
	}
}
