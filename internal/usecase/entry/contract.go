package entry

import (
	"context"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// UserFinder looks user nodes up by id. A miss returns domain.ErrNotFound.
type UserFinder interface {
	FindUser(ctx context.Context, userID string) (map[string]any, error)
}

// HybridSearcher runs one batched hybrid search per label.
type HybridSearcher interface {
	HybridSearch(ctx context.Context, q domain.HybridQuery) ([]domain.EntryNode, error)
}

// Tokenizer segments entity text into words.
type Tokenizer interface {
	Cut(text string) []string
}
