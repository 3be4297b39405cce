// Package metrics exposes the prometheus instruments for gateway calls.
// Both are tagged by {gateway, account_type, operation} and recorded on
// success and failure paths alike.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_operations_failures_total",
			Help: "Total gateway operations that ended in a classified failure.",
		},
		[]string{"gateway", "account_type", "operation"},
	)

	gatewayResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_operations_response_time_seconds",
			Help:    "End-to-end gateway call duration, including error classification.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway", "account_type", "operation"},
	)
)

// ObserveGatewayCall records one gateway round trip.
func ObserveGatewayCall(gateway, accountType, operation string, d time.Duration) {
	gatewayResponseTime.WithLabelValues(gateway, accountType, operation).Observe(d.Seconds())
}

// IncGatewayFailure counts one classified gateway failure.
func IncGatewayFailure(gateway, accountType, operation string) {
	gatewayFailures.WithLabelValues(gateway, accountType, operation).Inc()
}

// GatewayFailures exposes the counter for test assertions.
func GatewayFailures() *prometheus.CounterVec {
	return gatewayFailures
}
