// Package metrics declares the daemon's lifecycle counters and
// histograms for Prometheus: deploys, task runs, reap events, probe
// polls, running module count, and API request counts. They are
// registered and served on /metrics, but no code path in this repository
// increments or sets them, so they report their zero values.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DeploysTotal counts deploy operations by module kind and outcome
	// (deployed, redeployed, unchanged).
	DeploysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartel_deploys_total",
			Help: "Total number of deploy operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// TaskRunsTotal counts synchronous task executions by outcome.
	TaskRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartel_task_runs_total",
			Help: "Total number of task executions by outcome",
		},
		[]string{"outcome"},
	)

	// ReapEventsTotal is the counter for process group reaps.
	ReapEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cartel_reap_events_total",
			Help: "Total number of module process groups reaped",
		},
	)

	// ModulesRunning is a live gauge of RUNNING modules.
	ModulesRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartel_modules_running",
			Help: "Number of currently running modules",
		},
	)

	// ProbePollsTotal counts probe polls by probe kind and resulting
	// status.
	ProbePollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartel_probe_polls_total",
			Help: "Total number of probe polls by kind and status",
		},
		[]string{"kind", "status"},
	)

	// ProbePollDuration observes the wall-clock time of a single probe
	// check.
	ProbePollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartel_probe_poll_duration_seconds",
			Help:    "Duration of a single probe check",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// APIRequestsTotal counts HTTP requests by route and status code.
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartel_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)
)

// MustRegister registers every instrument in this package with the
// default Prometheus registry. Called once from cmd/carteld's bootstrap.
func MustRegister() {
	prometheus.MustRegister(
		DeploysTotal,
		TaskRunsTotal,
		ReapEventsTotal,
		ModulesRunning,
		ProbePollsTotal,
		ProbePollDuration,
		APIRequestsTotal,
	)
}
