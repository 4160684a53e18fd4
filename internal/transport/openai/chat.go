package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
)

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// Timeout bounds one completion request; zero means no bound.
	Timeout time.Duration
	// StructuredOutput sends a JSON schema response format when the request carries one.
	StructuredOutput bool
	Logger           *zap.Logger
}

// ChatClient is a chat completion provider using the OpenAI-compatible API.
type ChatClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	structured  bool
	logger      *zap.Logger
}

// NewChatClient creates an OpenAI-compatible chat provider.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &ChatClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		structured:  cfg.StructuredOutput,
		logger:      log,
	}
}

// Complete implements domain.ChatModel.
func (c *ChatClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}
	if c.maxTokens > 0 {
		chatReq.MaxTokens = c.maxTokens
	}
	if c.structured && req.Schema != nil {
		format, err := responseFormat(req.Stage, req.Schema)
		if err != nil {
			return "", err
		}
		chatReq.ResponseFormat = format
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, req.Stage, "error").Inc()
		c.logger.Warn("chat completion failed", zap.String("stage", req.Stage), zap.Error(err))
		return "", wrapAPIError("chat", err, domain.ErrLLMProviderError)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, req.Stage, "error").Inc()
		return "", fmt.Errorf("empty chat completion response: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.model, req.Stage, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.model, req.Stage).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}
	domain.UsageFromContext(ctx).AddLLMCall(resp.Usage.TotalTokens)

	c.logger.Debug("chat completion",
		zap.String("stage", req.Stage),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *ChatClient) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func responseFormat(name string, schema any) (*openai.ChatCompletionResponseFormat, error) {
	def, err := jsonschema.GenerateSchemaForType(schema)
	if err != nil {
		return nil, fmt.Errorf("generate %s response schema: %w", name, err)
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name + "_reply",
			Schema: def,
			Strict: true,
		},
	}, nil
}
