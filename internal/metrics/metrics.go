// Package metrics provides Prometheus metrics for the dashboard.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Session metrics.
	SessionVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "session",
		Name:      "verifications_total",
		Help:      "Token verifications by outcome.",
	}, []string{"result"}) // "ok", "rejected", "stale", "aborted"
	SessionLogouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "session",
		Name:      "logouts_total",
		Help:      "Total number of explicit logouts.",
	})

	// Backend API metrics.
	BackendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "backend",
		Name:      "requests_total",
		Help:      "Backend API requests by endpoint and status code.",
	}, []string{"endpoint", "code"}) // code is "error" on transport failure
	BackendRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dashboard",
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "Backend API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
	BackendUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dashboard",
		Subsystem: "backend",
		Name:      "up",
		Help:      "Whether the backend API answered the last health probe (1) or not (0).",
	})

	// Card intents.
	CardActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "card",
		Name:      "actions_total",
		Help:      "Group card intents handled.",
	}, []string{"action"})

	// HTTP server.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Dashboard HTTP requests by route and status code.",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(
		SessionVerifications,
		SessionLogouts,

		BackendRequests,
		BackendRequestDuration,
		BackendUp,

		CardActions,
		HTTPRequests,
	)
}
