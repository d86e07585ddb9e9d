package metrics

import "github.com/prometheus/client_golang/prometheus"

// Manifest generation Prometheus metrics.
var (
	ManifestBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "presto",
			Name:      "manifest_builds_total",
			Help:      "Manifest requests by outcome",
		},
		[]string{"result"}, // "cached" / "built" / "refreshed"
	)

	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "presto",
			Name:      "cache_ops_total",
			Help:      "Manifest cache operations by tier and result",
		},
		[]string{"tier", "result"},
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "presto",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Derivative pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(ManifestBuildsTotal)
	prometheus.MustRegister(CacheOpsTotal)
	prometheus.MustRegister(PipelineStageDuration)
}
