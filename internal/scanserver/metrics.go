package scanserver

import "github.com/prometheus/client_golang/prometheus"

// Process-level metrics for the TCP scan server, registered the moment
// this package is imported, matching the teacher's root metrics.go
// init()-registration idiom but scoped to the package that actually owns
// the counters it describes. Per-database change-log counters are not
// registered by this package; internal/changelog.RegisterPrometheus can
// expose them, and nothing in this tree calls it.

func init() {
	prometheus.MustRegister(metricsConnectionsAccepted)
	prometheus.MustRegister(metricsConnectionsActive)
	prometheus.MustRegister(metricsRequestsServed)
	prometheus.MustRegister(metricsHashesQueried)
	prometheus.MustRegister(metricsRequestDuration)
}

var metricsConnectionsAccepted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "hashdb_scan_connections_accepted_total",
		Help: "TCP scan server connections accepted",
	},
)

var metricsConnectionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "hashdb_scan_connections_active",
		Help: "TCP scan server connections currently open",
	},
)

var metricsRequestsServed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "hashdb_scan_requests_served_total",
		Help: "Scan requests served by the TCP scan server",
	},
)

var metricsHashesQueried = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "hashdb_scan_hashes_queried_total",
		Help: "Individual hashes queried across all scan requests",
	},
)

var metricsRequestDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name: "hashdb_scan_request_duration_seconds",
		Help: "Scan request service time",
	},
)
