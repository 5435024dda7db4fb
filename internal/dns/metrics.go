package dns

import "github.com/prometheus/client_golang/prometheus"

var (
	queryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewritedns_queries_total",
			Help: "Total DNS queries by route decision",
		},
		[]string{"route"},
	)
	upstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewritedns_upstream_request_duration_seconds",
			Help:    "DNS upstream request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)
	upstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewritedns_upstream_failures_total",
			Help: "Total DNS upstream request failures",
		},
		[]string{"upstream"},
	)
	upstreamCircuitOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewritedns_upstream_circuit_opened_total",
			Help: "Times of upstream circuit breaker opened",
		},
		[]string{"upstream"},
	)
	upstreamSkippedUnhealthy = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewritedns_upstream_skipped_unhealthy_total",
			Help: "Upstream attempts skipped due to temporary unhealthy state",
		},
		[]string{"upstream"},
	)
)

func init() {
	prometheus.MustRegister(queryCounter, upstreamLatency, upstreamFailures, upstreamCircuitOpened, upstreamSkippedUnhealthy)
}
