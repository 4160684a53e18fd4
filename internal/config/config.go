package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds the cypherrag service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Graph     GraphConfig     `yaml:"graph"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Index     IndexConfig     `yaml:"index"`
	Schema    SchemaConfig    `yaml:"schema"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Budget    BudgetConfig    `yaml:"budget"`
	Segment   SegmentConfig   `yaml:"segment"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// GraphConfig holds Neo4j connection settings.
type GraphConfig struct {
	URI                  string `yaml:"uri"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	Database             string `yaml:"database"`
	MaxPoolSize          int    `yaml:"max_pool_size"`
	ConnectionTimeoutSec int    `yaml:"connection_timeout_sec"`
	MaxTxRetryTimeSec    int    `yaml:"max_tx_retry_time_sec"`
}

// LLMConfig holds chat model settings for routing, generation, review and correction.
type LLMConfig struct {
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	Temperature      float32 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	TimeoutSec       int     `yaml:"timeout_sec"`
	StructuredOutput *bool   `yaml:"structured_output"` // default: true
}

// EmbeddingConfig holds embedding provider and vectorizer settings.
type EmbeddingConfig struct {
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	MaxBatchSize     int    `yaml:"max_batch_size"`
}

// CacheConfig holds Redis settings for the embedding cache and the Redis index backend.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	EmbeddingCache   bool     `yaml:"embedding_cache"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	TLS              bool     `yaml:"tls"`
	DialTimeoutSec   int      `yaml:"dial_timeout_sec"`
}

// Enabled reports whether a Redis connection is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// Index backends.
const (
	BackendNeo4j = "neo4j"
	BackendRedis = "redis"
)

// IndexConfig holds entry-node search settings.
type IndexConfig struct {
	Backend              string `yaml:"backend"` // neo4j (default), redis
	TopK                 int    `yaml:"top_k"`
	EffectiveSearchRatio int    `yaml:"effective_search_ratio"`
	MaxConcurrency       int    `yaml:"max_concurrency"`
	SearchTimeoutMs      int    `yaml:"search_timeout_ms"` // 0 = unbounded
	VectorField          string `yaml:"vector_field"`      // redis backend only
	Language             string `yaml:"language"`          // redis backend only
}

// Schema sources.
const (
	SchemaFromNeo4j = "neo4j"
	SchemaFromFile  = "file"
)

// SchemaConfig selects where the graph schema comes from.
type SchemaConfig struct {
	Source             string   `yaml:"source"` // neo4j (default), file
	Path               string   `yaml:"path"`
	ExcludedLabels     []string `yaml:"excluded_labels"`
	ExcludedProperties []string `yaml:"excluded_properties"`
}

// PipelineConfig holds retrieval pipeline settings.
type PipelineConfig struct {
	HistoryTurns    int    `yaml:"history_turns"`
	EmptyResultText string `yaml:"empty_result_text"`
}

// Budget actions.
const (
	BudgetActionWarn   = "warn"
	BudgetActionReject = "reject"
)

// TokenLimits caps model tokens for one scope. Zero limits are unlimited.
type TokenLimits struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	Action            string `yaml:"action"` // warn (default), reject
}

// Enabled reports whether any limit is set.
func (l TokenLimits) Enabled() bool { return l.DailyTokenLimit > 0 || l.MonthlyTokenLimit > 0 }

// BudgetConfig holds token budgets. Counters persist in cache.addrs when set.
type BudgetConfig struct {
	LLM       TokenLimits `yaml:"llm"`
	Embedding TokenLimits `yaml:"embedding"`
	KeyPrefix string      `yaml:"key_prefix"`
}

// SegmentConfig holds word segmentation settings.
type SegmentConfig struct {
	DictFiles []string `yaml:"dict_files"` // empty = built-in dictionaries
}

// PathEnv overrides the config file location.
const PathEnv = "CYPHERRAG_CONFIG"

// Load reads config/<env>.yaml, or the file named by $CYPHERRAG_CONFIG,
// expands ${VAR} references, applies defaults and validates.
func Load(env string) (Config, error) {
	path := os.Getenv(PathEnv)
	if path == "" {
		path = findConfigPath(env)
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(expandEnvVars(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// GetEnv returns $ENV, or "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Graph.MaxPoolSize <= 0 {
		c.Graph.MaxPoolSize = 50
	}
	if c.Graph.ConnectionTimeoutSec <= 0 {
		c.Graph.ConnectionTimeoutSec = 5
	}
	if c.Graph.MaxTxRetryTimeSec <= 0 {
		c.Graph.MaxTxRetryTimeSec = 15
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.LLM.StructuredOutput == nil {
		on := true
		c.LLM.StructuredOutput = &on
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "bge-base-zh-v1.5"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "cypherrag:emb:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Index.Backend == "" {
		c.Index.Backend = BackendNeo4j
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = 10
	}
	if c.Index.EffectiveSearchRatio <= 0 {
		c.Index.EffectiveSearchRatio = 2
	}
	if c.Index.MaxConcurrency <= 0 {
		c.Index.MaxConcurrency = 8
	}
	if c.Index.VectorField == "" {
		c.Index.VectorField = "embedding"
	}
	if c.Index.Language == "" {
		c.Index.Language = "chinese"
	}
	if c.Schema.Source == "" {
		c.Schema.Source = SchemaFromNeo4j
	}
	if c.Pipeline.HistoryTurns <= 0 {
		c.Pipeline.HistoryTurns = 5
	}
	if c.Pipeline.EmptyResultText == "" {
		c.Pipeline.EmptyResultText = "空"
	}
	if c.Budget.LLM.Action == "" {
		c.Budget.LLM.Action = BudgetActionWarn
	}
	if c.Budget.Embedding.Action == "" {
		c.Budget.Embedding.Action = BudgetActionWarn
	}
	if c.Budget.KeyPrefix == "" {
		c.Budget.KeyPrefix = "cypherrag:budget:"
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		fail("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Graph.URI == "" {
		fail("graph.uri is required")
	}
	if c.LLM.Model == "" {
		fail("llm.model is required")
	}
	if c.Embedding.BaseURL == "" {
		fail("embedding.base_url is required")
	}

	switch c.Index.Backend {
	case BackendNeo4j:
	case BackendRedis:
		if !c.Cache.Enabled() {
			fail("index.backend %q requires cache.addrs", BackendRedis)
		}
	default:
		fail("index.backend must be %q or %q, got %q", BackendNeo4j, BackendRedis, c.Index.Backend)
	}
	if c.Cache.EmbeddingCache && !c.Cache.Enabled() {
		fail("cache.embedding_cache requires cache.addrs")
	}

	switch c.Schema.Source {
	case SchemaFromNeo4j:
	case SchemaFromFile:
		if c.Schema.Path == "" {
			fail("schema.path is required for source %q", SchemaFromFile)
		}
	default:
		fail("schema.source must be %q or %q, got %q", SchemaFromNeo4j, SchemaFromFile, c.Schema.Source)
	}

	for _, b := range []struct {
		name string
		l    TokenLimits
	}{{"llm", c.Budget.LLM}, {"embedding", c.Budget.Embedding}} {
		if b.l.Action != BudgetActionWarn && b.l.Action != BudgetActionReject {
			fail("budget.%s.action must be %q or %q, got %q", b.name, BudgetActionWarn, BudgetActionReject, b.l.Action)
		}
		if b.l.DailyTokenLimit < 0 || b.l.MonthlyTokenLimit < 0 {
			fail("budget.%s limits must not be negative", b.name)
		}
	}

	// history is cut from the end; an odd count keeps the latest user turn last
	if c.Pipeline.HistoryTurns%2 == 0 {
		fail("pipeline.history_turns must be odd, got %d", c.Pipeline.HistoryTurns)
	}
	return errors.Join(errs...)
}

// findConfigPath prefers ./config and falls back to the config directory
// of the source tree, which lets tests run from any package directory.
func findConfigPath(env string) string {
	name := env + ".yaml"
	local := filepath.Join("config", name)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	_, self, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(self), "..", "..")
	if p := filepath.Join(root, "config", name); fileExists(p) {
		return p
	}
	return local
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnvVars substitutes ${VAR} and ${VAR:-default}. An unset VAR
// without a default becomes empty.
func expandEnvVars(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := envRef.FindSubmatch(m)
		if v := os.Getenv(string(sub[1])); v != "" {
			return []byte(v)
		}
		return sub[3]
	})
}
