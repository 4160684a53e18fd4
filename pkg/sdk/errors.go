package cypherrag

import "github.com/kailas-cloud/cypherrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrRoutingFailed          = domain.ErrRoutingFailed
	ErrBudgetExceeded         = domain.ErrBudgetExceeded
	ErrLLMProviderError       = domain.ErrLLMProviderError
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
