// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskmanager"

// Gate outcomes recorded in AuthDecisionsTotal.
const (
	AuthPassed    = "passed"
	AuthRefreshed = "refreshed"
	AuthRejected  = "rejected"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "route"},
	)

	// AuthDecisionsTotal counts what the auth gate did with a request. reason is
	// the rejection message, empty for passed and refreshed requests.
	AuthDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Auth gate decisions by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)

	IdentityRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_requests_total",
			Help:      "Calls to the identity service by operation and result.",
		},
		[]string{"operation", "result"},
	)

	IdentityRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "identity_request_duration_seconds",
			Help:      "Identity service call duration in seconds, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
