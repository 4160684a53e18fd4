package domain

import (
	"context"
	"sync"
)

type usageKey struct{}

// Usage collects model token consumption for a single search request.
// The transport puts a pointer into the context before calling the pipeline and
// reads it afterwards for response headers.
type Usage struct {
	mu              sync.Mutex
	EmbeddingTokens int
	LLMTokens       int
	LLMCalls        int
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records embedding tokens.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.EmbeddingTokens += n
	u.mu.Unlock()
}

// AddLLMCall records one chat completion and its tokens.
func (u *Usage) AddLLMCall(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.LLMCalls++
	u.LLMTokens += tokens
	u.mu.Unlock()
}

// Snapshot returns the counters without the lock.
func (u *Usage) Snapshot() (embeddingTokens, llmTokens, llmCalls int) {
	if u == nil {
		return 0, 0, 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.EmbeddingTokens, u.LLMTokens, u.LLMCalls
}
