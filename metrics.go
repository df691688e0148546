package main

import "github.com/prometheus/client_golang/prometheus"

// Process-level command metrics, registered the moment this binary starts,
// matching the teacher's root metrics.go init()-registration idiom.
// Per-database change-log counters (spec.md §7) are not registered here:
// internal/changelog.RegisterPrometheus can expose them, but no command in
// this binary calls it. The TCP scan server's own connection/request
// counters live in internal/scanserver.

func init() {
	prometheus.MustRegister(metricsCommandsRun)
	prometheus.MustRegister(metricsCommandErrors)
	prometheus.MustRegister(metricsCommandDuration)
}

var metricsCommandsRun = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hashdb_commands_run_total",
		Help: "CLI commands run, by command name",
	},
	[]string{"command"},
)

var metricsCommandErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hashdb_command_errors_total",
		Help: "CLI commands that returned an error, by command name",
	},
	[]string{"command"},
)

var metricsCommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "hashdb_command_duration_seconds",
		Help: "CLI command run time, by command name",
	},
	[]string{"command"},
)
