package cypherrag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	graphURI      string
	graphUser     string
	graphPassword string
	graphDatabase string
	schemaFile    string

	apiKey  string
	baseURL string

	chatModel        string
	embeddingModel   string
	dimensions       int
	queryInstruction string
	embedder         Embedder

	cacheAddr     string
	cachePassword string

	topK      int
	emptyText string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithNeo4j sets the graph database connection.
func WithNeo4j(uri, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.graphURI = uri
		c.graphUser = username
		c.graphPassword = password
	})
}

// WithDatabase selects a non-default Neo4j database.
func WithDatabase(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.graphDatabase = name
	})
}

// WithSchemaFile reads the graph schema from a YAML file instead of introspecting Neo4j.
func WithSchemaFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.schemaFile = path
	})
}

// WithOpenAI sets the OpenAI-compatible endpoint used for chat and embeddings.
func WithOpenAI(baseURL, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = baseURL
		c.apiKey = apiKey
	})
}

// WithChatModel sets the chat completion model. Required.
func WithChatModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.chatModel = model
	})
}

// WithEmbeddingModel sets the embedding model and its vector dimension.
// Defaults to bge-base-zh-v1.5 with 768 dimensions.
func WithEmbeddingModel(model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = model
		c.dimensions = dimensions
	})
}

// WithQueryInstruction prepends an instruction to every embedded entity.
func WithQueryInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryInstruction = instruction
	})
}

// WithEmbedder replaces the OpenAI embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithRedisCache caches entity embeddings in Redis.
func WithRedisCache(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddr = addr
		c.cachePassword = password
	})
}

// WithTopK sets how many entry nodes are kept per label. Default: 10.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithEmptyText overrides the content of the "nothing found" record. Default: "空".
func WithEmptyText(text string) Option {
	return optionFunc(func(c *clientConfig) {
		c.emptyText = text
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
