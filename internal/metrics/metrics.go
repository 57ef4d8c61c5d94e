// Package metrics exposes the Prometheus series the sentry updates during
// operation:
//   - sentry_throttle_decisions_total{outcome}    – allow/deny decisions
//   - sentry_emissions_total{side,outcome}        – pipeline outcomes per side
//   - sentry_job_runs_total{job}                  – periodic job executions
//   - sentry_job_errors_total{job}                – periodic job failures
//   - sentry_tracked_symbols                      – current watchlist size
//
// All series are registered in init() and served by the HTTP listener the
// run command starts at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	throttleDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentry_throttle_decisions_total",
			Help: "Throttle decisions by outcome (allow|deny)",
		},
		[]string{"outcome"},
	)

	emissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentry_emissions_total",
			Help: "Pipeline outcomes by side (delivered|blocked|denied|failed)",
		},
		[]string{"side", "outcome"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentry_job_runs_total",
			Help: "Periodic job executions",
		},
		[]string{"job"},
	)

	jobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentry_job_errors_total",
			Help: "Periodic job failures",
		},
		[]string{"job"},
	)

	trackedSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentry_tracked_symbols",
			Help: "Number of symbols on the active watchlist",
		},
	)
)

func init() {
	prometheus.MustRegister(throttleDecisions, emissions)
	prometheus.MustRegister(jobRuns, jobErrors)
	prometheus.MustRegister(trackedSymbols)
}

// IncDecision counts one throttle decision.
func IncDecision(allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	throttleDecisions.WithLabelValues(outcome).Inc()
}

// IncEmission counts one pipeline outcome for a side.
func IncEmission(side, outcome string) { emissions.WithLabelValues(side, outcome).Inc() }

// IncJobRun counts one periodic job execution.
func IncJobRun(job string) { jobRuns.WithLabelValues(job).Inc() }

// IncJobError counts one periodic job failure.
func IncJobError(job string) { jobErrors.WithLabelValues(job).Inc() }

// SetTrackedSymbols publishes the current watchlist size.
func SetTrackedSymbols(n int) { trackedSymbols.Set(float64(n)) }
