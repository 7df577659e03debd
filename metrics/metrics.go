// Package metrics provides Prometheus collectors and HTTP middleware for
// monitoring code executions and evaluations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ExecutionBuckets spans fast validation-only runs up to compile-and-run
// executions that hit the compile budget.
var ExecutionBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 15}

var (
	// ExecutionsTotal counts executions by language and outcome ("ok" or an error kind).
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderun_executions_total",
			Help: "Code executions",
		},
		[]string{"language", "outcome"},
	)

	// ExecutionDuration records wall-clock execution time in seconds by language and mode.
	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coderun_execution_duration_seconds",
			Help:    "Execution duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"language", "mode"},
	)

	// InflightExecutions tracks executions currently running.
	InflightExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coderun_executions_inflight",
			Help: "Executions in flight",
		},
	)

	// EvaluationsTotal counts evaluation requests by language and result ("passed" or "failed").
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderun_evaluations_total",
			Help: "Test evaluations",
		},
		[]string{"language", "result"},
	)

	// TestCasesTotal counts individual test cases by language and result.
	TestCasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderun_test_cases_total",
			Help: "Evaluated test cases",
		},
		[]string{"language", "result"},
	)

	// RequestsTotal counts HTTP requests by method, route pattern and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderun_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route pattern.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coderun_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		ExecutionsTotal,
		ExecutionDuration,
		InflightExecutions,
		EvaluationsTotal,
		TestCasesTotal,
		RequestsTotal,
		RequestDuration,
	)
}
