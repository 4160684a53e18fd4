package cypher

import (
	"context"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// ChatModel completes generation, review and correction prompts.
type ChatModel interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Explainer plans a query without running it. Compilation failures are
// returned as *domain.SyntaxError.
type Explainer interface {
	Explain(ctx context.Context, query string) error
}
