package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline metrics.
var (
	SearchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_outcomes_total",
			Help:      "Search calls by terminal outcome",
		},
		// outcome: result, empty, routing_failed
		[]string{"outcome"},
	)

	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"stage"},
	)

	CorrectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_corrections_total",
			Help:      "Query corrections applied by kind",
		},
		// kind: llm, direction, direction_unresolvable
		[]string{"kind"},
	)

	EntrySearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_searches_total",
			Help:      "Per-label entry node searches by outcome: ok or degraded",
		},
		[]string{"label", "outcome"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchOutcomesTotal)
	prometheus.MustRegister(SearchStageDuration)
	prometheus.MustRegister(CorrectionsTotal)
	prometheus.MustRegister(EntrySearchesTotal)
	pipelineMetricsRegistered = true
}
