package rewrite

import "github.com/prometheus/client_golang/prometheus"

var (
	rulesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rewritedns_rewrite_rules",
			Help: "Number of configured DNS rewrite rules",
		},
	)
	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewritedns_rewrite_mutations_total",
			Help: "Rewrite rule changes by operation",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(rulesTotal, mutationsTotal)
}
