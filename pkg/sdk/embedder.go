package cypherrag

import (
	"context"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// Embedder turns a keyword into a vector comparable with the stored node
// vectors. Plug one in with WithEmbedder to use a local model instead of an
// OpenAI-compatible endpoint.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is optionally implemented by an Embedder that can vectorize
// all keywords of a question in one call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([]EmbeddingResult, error)
}

// EmbeddingResult is a vector and the tokens spent on it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// adaptEmbedder exposes e to the pipeline, keeping batch support when e has it.
func adaptEmbedder(e Embedder) domain.Embedder {
	if b, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter{e}, b}
	}
	return &embedderAdapter{e}
}

type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult(r), nil
}

type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	rs, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(rs))}
	for _, r := range rs {
		out.Embeddings = append(out.Embeddings, r.Embedding)
		out.PromptTokens += r.PromptTokens
		out.TotalTokens += r.TotalTokens
	}
	return out, nil
}
