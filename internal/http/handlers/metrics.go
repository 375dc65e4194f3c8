package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	creditWritesTotal         *prometheus.CounterVec
	allocationRejectionsTotal *prometheus.CounterVec
	coverageComputeSeconds    prometheus.Histogram
)

func InitPrometheusMetrics() {
	creditWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "impactledger",
			Name:      "credit_writes_total",
			Help:      "Total number of donor credit write attempts.",
		},
		[]string{"tenant", "op", "outcome"},
	)
	allocationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "impactledger",
			Name:      "allocation_rejections_total",
			Help:      "Credit writes rejected for exceeding the scope ceiling.",
		},
		[]string{"tenant"},
	)
	coverageComputeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "impactledger",
			Name:      "coverage_compute_seconds",
			Help:      "Duration of on-demand coverage computations.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
	prometheus.MustRegister(creditWritesTotal, allocationRejectionsTotal, coverageComputeSeconds)
}
