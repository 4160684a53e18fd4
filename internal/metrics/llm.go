package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat completion metrics. The stage label is the pipeline step that issued the call.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of chat completion requests",
		},
		[]string{"model", "stage", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Chat completion duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"model", "stage"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total chat completion tokens consumed",
		},
		[]string{"model", "type"},
	)
)

var llmMetricsRegistered bool

// RegisterLLMMetrics registers chat completion metrics. Must be called once from main.
func RegisterLLMMetrics() {
	if llmMetricsRegistered {
		return
	}
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	llmMetricsRegistered = true
}
