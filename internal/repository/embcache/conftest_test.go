package embcache

import (
	"context"
	"time"

	"github.com/kailas-cloud/cypherrag/internal/db"
	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// lengthEmbedder returns [runes, 1] per text and bills 2 tokens per text.
type lengthEmbedder struct {
	batches [][]string
	err     error
}

func (l *lengthEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := l.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0], PromptTokens: 2, TotalTokens: 2}, nil
}

func (l *lengthEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	l.batches = append(l.batches, append([]string(nil), texts...))
	if l.err != nil {
		return domain.BatchEmbeddingResult{}, l.err
	}
	out := domain.BatchEmbeddingResult{PromptTokens: 2 * len(texts), TotalTokens: 2 * len(texts)}
	for _, t := range texts {
		out.Embeddings = append(out.Embeddings, []float32{float32(len([]rune(t))), 1})
	}
	return out, nil
}

// memKV is an in-memory kvStore; readErr and writeErr simulate an unavailable store.
type memKV struct {
	data     map[string][]byte
	ttl      time.Duration
	readErr  error
	writeErr error
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) MGet(_ context.Context, keys []string) ([][]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *memKV) SetMulti(_ context.Context, items []db.KVItem, ttl time.Duration) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.ttl = ttl
	for _, it := range items {
		m.data[it.Key] = it.Value
	}
	return nil
}
