package budget

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

type mockChat struct {
	tokens int
	err    error
	calls  int
}

func (m *mockChat) Complete(ctx context.Context, _ domain.CompletionRequest) (string, error) {
	m.calls++
	domain.UsageFromContext(ctx).AddLLMCall(m.tokens)
	return `{"outputs": []}`, m.err
}

type mockEmbedder struct {
	tokens int
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: m.tokens}, nil
}

func TestChatModel_RecordsAndForwardsUsage(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Daily: 1000}, zap.NewNop())
	inner := &mockChat{tokens: 120}
	ctx, usage := domain.NewContextWithUsage(context.Background())

	reply, err := NewChatModel(inner, tr).Complete(ctx, domain.CompletionRequest{Stage: domain.StageRoute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply == "" {
		t.Error("expected the inner reply")
	}
	if tr.DailyUsed() != 120 {
		t.Errorf("expected 120 tokens recorded, got %d", tr.DailyUsed())
	}
	_, llmTokens, llmCalls := usage.Snapshot()
	if llmTokens != 120 || llmCalls != 1 {
		t.Errorf("request usage not forwarded: tokens=%d calls=%d", llmTokens, llmCalls)
	}
}

func TestChatModel_RejectsWithoutCalling(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Daily: 10, Action: ActionReject}, zap.NewNop())
	tr.Record(10)
	inner := &mockChat{}

	_, err := NewChatModel(inner, tr).Complete(context.Background(), domain.CompletionRequest{Stage: domain.StageGenerate})
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if inner.calls != 0 {
		t.Error("inner model must not be called")
	}
}

func TestChatModel_RecordsOnInnerError(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{}, zap.NewNop())
	inner := &mockChat{tokens: 30, err: domain.ErrLLMProviderError}

	_, err := NewChatModel(inner, tr).Complete(context.Background(), domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if tr.DailyUsed() != 30 {
		t.Errorf("spent tokens must be recorded, got %d", tr.DailyUsed())
	}
}

func TestEmbedder_Embed(t *testing.T) {
	tr := NewTracker(ScopeEmbedding, Limits{}, zap.NewNop())
	res, err := NewEmbedder(&mockEmbedder{tokens: 4}, tr).Embed(context.Background(), "华为")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 || tr.DailyUsed() != 4 {
		t.Errorf("unexpected result %+v, recorded %d", res, tr.DailyUsed())
	}
}

func TestEmbedder_BatchEmbedFallsBackPerText(t *testing.T) {
	tr := NewTracker(ScopeEmbedding, Limits{}, zap.NewNop())
	inner := &mockEmbedder{tokens: 3}

	res, err := NewEmbedder(inner, tr).BatchEmbed(context.Background(), []string{"华为", "小米", "oppo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 || inner.calls != 3 {
		t.Errorf("expected three vectors from three calls, got %d/%d", len(res.Embeddings), inner.calls)
	}
	if tr.DailyUsed() != 9 {
		t.Errorf("expected 9 tokens, got %d", tr.DailyUsed())
	}
}

func TestEmbedder_BatchEmbedRejected(t *testing.T) {
	tr := NewTracker(ScopeEmbedding, Limits{Monthly: 1, Action: ActionReject}, zap.NewNop())
	tr.Record(1)
	inner := &mockEmbedder{}

	_, err := NewEmbedder(inner, tr).BatchEmbed(context.Background(), []string{"华为"})
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if inner.calls != 0 {
		t.Error("inner embedder must not be called")
	}
}

func TestEmbedder_BatchEmbedEmpty(t *testing.T) {
	inner := &mockEmbedder{}
	res, err := NewEmbedder(inner, NewTracker(ScopeEmbedding, Limits{}, nil)).BatchEmbed(context.Background(), nil)
	if err != nil || len(res.Embeddings) != 0 || inner.calls != 0 {
		t.Errorf("empty batch must be a no-op, got %+v %v", res, err)
	}
}
