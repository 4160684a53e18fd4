// Package embcache memoizes keyword vectors in a key-value store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/db"
	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// DefaultKeyPrefix namespaces cached vectors.
const DefaultKeyPrefix = "cypherrag:emb:"

type kvStore interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	SetMulti(ctx context.Context, items []db.KVItem, ttl time.Duration) error
}

// Config tunes the cache.
type Config struct {
	KeyPrefix string
	// Model scopes keys so switching embedding models never serves stale vectors.
	Model string
	// TTL of a cached vector; zero keeps it forever.
	TTL time.Duration
}

// Embedder serves keyword vectors from the store and embeds only the misses.
// Store failures degrade to a full miss and are never returned to the caller.
type Embedder struct {
	inner   domain.Embedder
	kv      kvStore
	scope   string
	ttl     time.Duration
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New wraps inner. lookups is a counter vec labelled by result ("hit" or "miss") and may be nil.
func New(inner domain.Embedder, kv kvStore, cfg Config, lookups *prometheus.CounterVec, logger *zap.Logger) *Embedder {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	scope := prefix
	if cfg.Model != "" {
		scope += cfg.Model + ":"
	}
	return &Embedder{
		inner:   inner,
		kv:      kv,
		scope:   scope,
		ttl:     cfg.TTL,
		lookups: lookups,
		logger:  logger.Named("embcache"),
	}
}

// Embed is BatchEmbed for one keyword. A hit reports zero tokens.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed reads every key in one MGET, embeds the misses in one inner call
// and writes them back in one pipeline. Vectors keep input order; token usage
// covers the misses only.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: [][]float32{}}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = e.key(t)
	}

	vectors := make([][]float32, len(texts))
	var misses []int
	cached := e.read(ctx, keys)
	for i := range texts {
		if v, ok := cached[i]; ok {
			vectors[i] = v
			continue
		}
		misses = append(misses, i)
	}
	e.count("hit", len(texts)-len(misses))
	e.count("miss", len(misses))

	out := domain.BatchEmbeddingResult{Embeddings: vectors}
	if len(misses) == 0 {
		return out, nil
	}

	missTexts := make([]string, 0, len(misses))
	for _, i := range misses {
		missTexts = append(missTexts, texts[i])
	}
	fresh, err := domain.EmbedAll(ctx, e.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached keywords: %w", len(misses), err)
	}
	if len(fresh.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: asked for %d vectors, got %d",
			domain.ErrEmbeddingProviderError, len(misses), len(fresh.Embeddings))
	}

	items := make([]db.KVItem, 0, len(misses))
	for j, i := range misses {
		vectors[i] = fresh.Embeddings[j]
		items = append(items, db.KVItem{Key: keys[i], Value: encode(fresh.Embeddings[j])})
	}
	if err := e.kv.SetMulti(ctx, items, e.ttl); err != nil {
		e.logger.Warn("cache write failed", zap.Int("keys", len(items)), zap.Error(err))
	}

	out.PromptTokens = fresh.PromptTokens
	out.TotalTokens = fresh.TotalTokens
	return out, nil
}

// read returns the decodable vectors by input index.
func (e *Embedder) read(ctx context.Context, keys []string) map[int][]float32 {
	raw, err := e.kv.MGet(ctx, keys)
	if err != nil {
		e.logger.Warn("cache read failed", zap.Int("keys", len(keys)), zap.Error(err))
		return nil
	}
	found := make(map[int][]float32, len(raw))
	for i, b := range raw {
		if i >= len(keys) || len(b) == 0 {
			continue
		}
		v, err := decode(b)
		if err != nil {
			e.logger.Warn("dropping corrupt cache entry", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		found[i] = v
	}
	return found
}

func (e *Embedder) count(result string, n int) {
	if e.lookups == nil || n == 0 {
		return
	}
	e.lookups.WithLabelValues(result).Add(float64(n))
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.scope + base64.RawURLEncoding.EncodeToString(sum[:])
}

// encode packs v as little-endian float32s.
func encode(v []float32) []byte {
	buf := make([]byte, 0, 4*len(v))
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

func decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%d bytes is not a float32 vector", len(b))
	}
	v := make([]float32, 0, len(b)/4)
	for off := 0; off < len(b); off += 4 {
		v = append(v, math.Float32frombits(binary.LittleEndian.Uint32(b[off:])))
	}
	return v, nil
}
