package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace          = "cypherrag"
	embeddingSubsystem = "embedding"
)

// Keyword embedding metrics, exported as cypherrag_embedding_*.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "requests_total",
		Help:      "Embedding API calls by outcome",
	}, []string{"provider", "model", "status"})

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "request_duration_seconds",
		Help:      "Embedding API latency",
		// one batch of keywords; bge on a GPU answers in tens of milliseconds
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"provider", "model"})

	// EmbeddingTokensTotal has type "prompt" or "total".
	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "tokens_total",
		Help:      "Tokens billed by the embedding API",
	}, []string{"provider", "model", "type"})

	// EmbeddingErrorsTotal has error_type api_error, count_mismatch or dimension_mismatch.
	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "errors_total",
		Help:      "Failed embedding calls by cause",
	}, []string{"provider", "model", "error_type"})

	// EmbeddingCacheTotal counts keyword lookups in the vector cache by result, hit or miss.
	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: embeddingSubsystem,
		Name:      "cache_lookups_total",
		Help:      "Keyword vector cache lookups",
	}, []string{"result"})
)

var embeddingRegistered bool

// RegisterEmbeddingMetrics registers the embedding collectors with the default registry.
func RegisterEmbeddingMetrics() {
	if embeddingRegistered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingCacheTotal,
	)
	embeddingRegistered = true
}
