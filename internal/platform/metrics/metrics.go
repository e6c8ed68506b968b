// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workhours"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	ledgerSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_submissions_total",
		Help:      "Hour submissions by outcome (created, merged, rejected).",
	}, []string{"outcome"})

	projectDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_project_decode_failures_total",
		Help:      "Stored projects values that could not be decoded and were read as empty.",
	})

	reportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "weekly_report_runs_total",
		Help:      "Weekly report runs by trigger and status.",
	}, []string{"trigger", "status"})
)

const (
	SubmissionCreated  = "created"
	SubmissionMerged   = "merged"
	SubmissionRejected = "rejected"
)

func RecordRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordSubmission(outcome string) {
	ledgerSubmissions.WithLabelValues(outcome).Inc()
}

func RecordProjectDecodeFailure() {
	projectDecodeFailures.Inc()
}

func RecordReportRun(trigger, status string) {
	reportRuns.WithLabelValues(trigger, status).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
