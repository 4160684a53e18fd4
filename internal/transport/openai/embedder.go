package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
)

// DefaultMaxBatchSize matches the input limit of common bge deployments (TEI, vLLM).
const DefaultMaxBatchSize = 64

// Embedder vectorizes entity text through an OpenAI-compatible embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	maxBatch   int
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions, when set, is requested from the API and enforced on every returned vector.
	Dimensions int
	// MaxBatchSize caps inputs per request; larger batches are split. Zero means DefaultMaxBatchSize.
	MaxBatchSize int
	Timeout      time.Duration
	Provider     string
	Logger       *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		maxBatch:   maxBatch,
		provider:   cfg.Provider,
		logger:     log.With(zap.String("model", cfg.Model)),
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder. Vectors come back in input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for start := 0; start < len(texts); start += e.maxBatch {
		end := min(start+e.maxBatch, len(texts))
		res, err := e.create(ctx, texts[start:end])
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("inputs %d-%d: %w", start, end-1, err)
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// create sends one request and checks the reply holds one vector of the expected size per input.
func (e *Embedder) create(ctx context.Context, input []string) (domain.BatchEmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		e.fail("api_error")
		e.logger.Warn("embedding request failed", zap.Int("inputs", len(input)), zap.Error(err))
		return domain.BatchEmbeddingResult{}, parseAPIError(err)
	}
	if len(resp.Data) != len(input) {
		e.fail("count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(input), len(resp.Data), domain.ErrEmbeddingProviderError)
	}

	// the API does not guarantee response order
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			e.fail("dimension_mismatch")
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding %d has %d dimensions, want %d: %w",
				i, len(d.Embedding), e.dimensions, domain.ErrEmbeddingProviderError)
		}
		vectors[i] = d.Embedding
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").Add(float64(resp.Usage.TotalTokens))
		domain.UsageFromContext(ctx).AddEmbeddingTokens(resp.Usage.TotalTokens)
	}
	e.logger.Debug("embedding request completed",
		zap.Int("inputs", len(input)),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return domain.BatchEmbeddingResult{
		Embeddings:   vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

func (e *Embedder) fail(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), kind).Inc()
}

// HealthCheck verifies API availability via ListModels.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func parseAPIError(err error) error {
	return wrapAPIError("embedding", err, domain.ErrEmbeddingProviderError)
}

// wrapAPIError renders provider failures readably. The result always wraps wrap.
func wrapAPIError(kind string, err, wrap error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s API error %d: %s: %w", kind, reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", kind, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("%s request failed: %v: %w", kind, err, wrap)
}

// extractDetail reads the "detail" (vLLM, TEI) or "message" (DashScope) field of an error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Message
}
