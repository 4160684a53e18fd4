package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/config"
	dbRedis "github.com/kailas-cloud/cypherrag/internal/db/redis"
	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/graph"
	logpkg "github.com/kailas-cloud/cypherrag/internal/logger"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
	budgetrepo "github.com/kailas-cloud/cypherrag/internal/repository/budget"
	"github.com/kailas-cloud/cypherrag/internal/repository/embcache"
	"github.com/kailas-cloud/cypherrag/internal/repository/hybrid"
	"github.com/kailas-cloud/cypherrag/internal/segment"
	chiTransport "github.com/kailas-cloud/cypherrag/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/cypherrag/internal/transport/openai"
	budgetuc "github.com/kailas-cloud/cypherrag/internal/usecase/budget"
	cypheruc "github.com/kailas-cloud/cypherrag/internal/usecase/cypher"
	directionuc "github.com/kailas-cloud/cypherrag/internal/usecase/direction"
	entryuc "github.com/kailas-cloud/cypherrag/internal/usecase/entry"
	healthuc "github.com/kailas-cloud/cypherrag/internal/usecase/health"
	routeuc "github.com/kailas-cloud/cypherrag/internal/usecase/route"
	searchuc "github.com/kailas-cloud/cypherrag/internal/usecase/search"
	usageuc "github.com/kailas-cloud/cypherrag/internal/usecase/usage"
	"github.com/kailas-cloud/cypherrag/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cypherrag API server",
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("graph_uri", cfg.Graph.URI),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("llm_model", cfg.LLM.Model),
	)

	// Registered explicitly, not from init()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterLLMMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterBudgetMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()

	// Graph database
	graphClient, err := graph.NewClient(graph.Config{
		URI:                     cfg.Graph.URI,
		Username:                cfg.Graph.Username,
		Password:                cfg.Graph.Password,
		Database:                cfg.Graph.Database,
		MaxConnectionPoolSize:   cfg.Graph.MaxPoolSize,
		ConnectionTimeout:       time.Duration(cfg.Graph.ConnectionTimeoutSec) * time.Second,
		MaxTransactionRetryTime: time.Duration(cfg.Graph.MaxTxRetryTimeSec) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Invalid graph config", zap.Error(err))
	}
	if err := graphClient.Connect(ctx); err != nil {
		logger.Fatal("Graph database not reachable", zap.Error(err))
	}
	defer func() { _ = graphClient.Close(context.Background()) }()
	logger.Info("Connected to graph database")

	schema, err := loadSchema(ctx, cfg.Schema, graphClient)
	if err != nil {
		logger.Fatal("Failed to load graph schema", zap.Error(err))
	}
	logger.Info("Graph schema loaded",
		zap.String("source", cfg.Schema.Source),
		zap.Int("relationships", len(schema.Relationships())),
	)

	// Redis: embedding cache, budget counters, redis index backend
	var store *dbRedis.Store
	if cfg.Cache.Enabled() {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Cache.Addrs,
			Username:    cfg.Cache.Username,
			Password:    cfg.Cache.Password,
			DB:          cfg.Cache.DB,
			TLS:         cfg.Cache.TLS,
			DialTimeout: time.Duration(cfg.Cache.DialTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Token budgets
	llmBudget := newTracker(ctx, budgetuc.ScopeLLM, cfg.Budget.LLM, cfg.Budget.KeyPrefix, store, logger)
	embBudget := newTracker(ctx, budgetuc.ScopeEmbedding, cfg.Budget.Embedding, cfg.Budget.KeyPrefix, store, logger)
	var readers []usageuc.BudgetReader
	for _, t := range []*budgetuc.Tracker{llmBudget, embBudget} {
		if t != nil {
			readers = append(readers, t)
		}
	}
	usageSvc := usageuc.New(readers...)

	// Models
	chatClient := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		Model:            cfg.LLM.Model,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		Timeout:          time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		StructuredOutput: *cfg.LLM.StructuredOutput,
		Logger:           logger,
	})
	var chat domain.ChatModel = chatClient
	if llmBudget != nil {
		chat = budgetuc.NewChatModel(chatClient, llmBudget)
	}

	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:       cfg.Embedding.APIKey,
		BaseURL:      cfg.Embedding.BaseURL,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		MaxBatchSize: cfg.Embedding.MaxBatchSize,
		Timeout:      time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Provider:     "openai",
		Logger:       logger,
	})
	embedder := buildEmbedder(baseEmbedder, embBudget, store, cfg, logger)
	logger.Info("Models configured",
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("embedding_cache", store != nil && cfg.Cache.EmbeddingCache),
	)

	// Entry-node index
	var index entryuc.HybridSearcher = graphClient
	if cfg.Index.Backend == config.BackendRedis {
		repo := hybrid.New(store, hybrid.Config{
			VectorField: cfg.Index.VectorField,
			Language:    cfg.Index.Language,
		})
		if missing, err := repo.MissingIndexes(ctx); err != nil {
			logger.Warn("Failed to check redis indexes", zap.Error(err))
		} else if len(missing) > 0 {
			logger.Warn("Redis indexes missing, affected labels will return no entry nodes",
				zap.Strings("indexes", missing))
		}
		index = repo
	}

	tokens, err := segment.NewGse(cfg.Segment.DictFiles...)
	if err != nil {
		logger.Fatal("Failed to load segmentation dictionaries", zap.Error(err))
	}
	logger.Info("Segmentation dictionaries loaded", zap.Strings("extra_dicts", cfg.Segment.DictFiles))

	// Pipeline
	cypherSvc := cypheruc.New(chat, graphClient, schema)
	searchSvc := searchuc.New(searchuc.Deps{
		Router: routeuc.New(chat),
		Retriever: entryuc.New(graphClient, index, embedder, tokens, entryuc.Config{
			Ratio:          cfg.Index.EffectiveSearchRatio,
			MaxConcurrency: cfg.Index.MaxConcurrency,
			SearchTimeout:  time.Duration(cfg.Index.SearchTimeoutMs) * time.Millisecond,
		}),
		Generator: cypherSvc,
		Validator: cypherSvc,
		Corrector: cypherSvc,
		Direction: directionuc.New(schema),
		Executor:  graphClient,
	}, searchuc.Config{
		TopK:         cfg.Index.TopK,
		HistoryTurns: cfg.Pipeline.HistoryTurns,
		EmptyText:    cfg.Pipeline.EmptyResultText,
	})

	healthDeps := healthuc.Deps{
		Graph:     graphClient,
		LLM:       chatClient,
		Embedding: baseEmbedder,
	}
	if store != nil {
		healthDeps.Cache = healthuc.CheckerFunc(store.Ping)
	}
	healthSvc := healthuc.New(healthDeps)

	server := chiTransport.NewServer(searchSvc, healthSvc, usageSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func loadSchema(ctx context.Context, cfg config.SchemaConfig, client *graph.Client) (domain.StaticSchema, error) {
	opts := graph.SchemaOptions{
		ExcludedLabels:     cfg.ExcludedLabels,
		ExcludedProperties: cfg.ExcludedProperties,
	}
	if cfg.Source == config.SchemaFromFile {
		s, err := graph.LoadSchemaFile(cfg.Path, opts)
		if err != nil {
			return domain.StaticSchema{}, fmt.Errorf("schema file: %w", err)
		}
		return s, nil
	}
	s, err := client.LoadSchema(ctx, opts)
	if err != nil {
		return domain.StaticSchema{}, fmt.Errorf("introspect schema: %w", err)
	}
	return s, nil
}

// newTracker returns nil when the scope has no limits.
func newTracker(
	ctx context.Context, scope string, limits config.TokenLimits,
	keyPrefix string, store *dbRedis.Store, logger *zap.Logger,
) *budgetuc.Tracker {
	if !limits.Enabled() {
		return nil
	}
	t := budgetuc.NewTracker(scope, budgetuc.Limits{
		Daily:   limits.DailyTokenLimit,
		Monthly: limits.MonthlyTokenLimit,
		Action:  budgetuc.Action(limits.Action),
	}, logger)
	if store != nil {
		t.WithStore(ctx, budgetrepo.New(store, 0, 0), keyPrefix)
	}
	logger.Info("Token budget enabled",
		zap.String("scope", scope),
		zap.Int64("daily_limit", limits.DailyTokenLimit),
		zap.Int64("monthly_limit", limits.MonthlyTokenLimit),
		zap.String("action", limits.Action),
	)
	return t
}

// buildEmbedder assembles the decorator chain: OpenAI -> Budget -> Cached -> Instruction.
// Budget sits inside the cache so hits cost nothing.
func buildEmbedder(
	base domain.Embedder,
	budget *budgetuc.Tracker,
	store *dbRedis.Store,
	cfg config.Config,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if budget != nil {
		embedder = budgetuc.NewEmbedder(embedder, budget)
	}

	if store != nil && cfg.Cache.EmbeddingCache {
		embedder = embcache.New(embedder, store, embcache.Config{
			KeyPrefix: cfg.Cache.KeyPrefix,
			Model:     cfg.Embedding.Model,
			TTL:       time.Duration(cfg.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// outermost, so cache keys include the instruction
	return domain.WithQueryInstruction(embedder, cfg.Embedding.QueryInstruction)
}
