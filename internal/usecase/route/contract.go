package route

import (
	"context"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// ChatModel completes routing prompts.
type ChatModel interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}
