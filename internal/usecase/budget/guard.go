package budget

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// Checker gates and records token spend.
type Checker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// ChatModel enforces a token budget on a chat model.
type ChatModel struct {
	inner   domain.ChatModel
	tracker Checker
}

// NewChatModel wraps inner with budget enforcement.
func NewChatModel(inner domain.ChatModel, tracker Checker) *ChatModel {
	return &ChatModel{inner: inner, tracker: tracker}
}

// Complete checks the budget, delegates and records the tokens the call used.
// Usage is collected on a private collector and then forwarded to the
// request's own collector, if any.
func (m *ChatModel) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if err := m.tracker.Check(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", req.Stage, err)
	}

	callCtx, usage := domain.NewContextWithUsage(ctx)
	reply, err := m.inner.Complete(callCtx, req)

	_, tokens, calls := usage.Snapshot()
	if calls > 0 {
		domain.UsageFromContext(ctx).AddLLMCall(tokens)
	}
	m.tracker.Record(int64(tokens))
	return reply, err //nolint:wrapcheck // decorator is transparent
}

// Embedder enforces a token budget on an embedder.
type Embedder struct {
	inner   domain.Embedder
	tracker Checker
}

// NewEmbedder wraps inner with budget enforcement.
func NewEmbedder(inner domain.Embedder, tracker Checker) *Embedder {
	return &Embedder{inner: inner, tracker: tracker}
}

// Embed checks the budget, delegates and records usage.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.tracker.Check(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("budget check: %w", err)
	}
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // decorator is transparent
	}
	e.tracker.Record(int64(res.TotalTokens))
	return res, nil
}

// BatchEmbed checks the budget once for the whole batch.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := e.tracker.Check(ctx); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("budget check: %w", err)
	}
	res, err := domain.EmbedAll(ctx, e.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // decorator is transparent
	}
	e.tracker.Record(int64(res.TotalTokens))
	return res, nil
}
