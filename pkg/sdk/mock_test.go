package cypherrag

import (
	"context"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	healthuc "github.com/kailas-cloud/cypherrag/internal/usecase/health"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, query string, session domain.Session) (domain.SearchResult, error)
}

func (m *mockSearchUC) Search(ctx context.Context, query string, session domain.Session) (domain.SearchResult, error) {
	return m.searchFn(ctx, query, session)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- closer mock ---

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close(context.Context) error {
	m.closed = true
	return m.err
}

// --- Embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
}

// BatchEmbed returns [runes] per text at 2 tokens each.
func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) ([]EmbeddingResult, error) {
	out := make([]EmbeddingResult, 0, len(texts))
	for _, t := range texts {
		out = append(out, EmbeddingResult{Embedding: []float32{float32(len([]rune(t)))}, PromptTokens: 2, TotalTokens: 2})
	}
	return out, nil
}

// --- helpers ---

func testClient(searchSvc searchUseCase, healthSvc healthUseCase) *Client {
	return &Client{
		searchSvc: searchSvc,
		healthSvc: healthSvc,
	}
}
