package domain

import (
	"context"
	"fmt"
)

// Embedder maps a single text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes several texts in one provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult is one vector plus the tokens the provider billed for it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors in input order with summed token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

func (r *BatchEmbeddingResult) add(res EmbeddingResult) {
	r.Embeddings = append(r.Embeddings, res.Embedding)
	r.PromptTokens += res.PromptTokens
	r.TotalTokens += res.TotalTokens
}

// EmbedAll vectorizes keywords in one round trip when e is a BatchEmbedder
// and one Embed call per keyword otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{Embeddings: [][]float32{}}, nil
	}
	if be, ok := e.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}

	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed %q (#%d): %w", text, i, err)
		}
		out.add(res)
	}
	return out, nil
}

// queryInstructionEmbedder prefixes every text before it reaches the provider.
// bge models expect the prefix on the query side only; node vectors are stored without it.
type queryInstructionEmbedder struct {
	inner  Embedder
	prefix string
}

// WithQueryInstruction returns inner unchanged when instruction is empty.
func WithQueryInstruction(inner Embedder, instruction string) Embedder {
	if instruction == "" {
		return inner
	}
	return &queryInstructionEmbedder{inner: inner, prefix: instruction}
}

func (e *queryInstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return e.inner.Embed(ctx, e.prefix+text)
}

func (e *queryInstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, 0, len(texts))
	for _, t := range texts {
		prefixed = append(prefixed, e.prefix+t)
	}
	return EmbedAll(ctx, e.inner, prefixed)
}
