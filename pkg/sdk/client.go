package cypherrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/cypherrag/internal/db/redis"
	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/graph"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
	"github.com/kailas-cloud/cypherrag/internal/repository/embcache"
	"github.com/kailas-cloud/cypherrag/internal/segment"
	openaiTransport "github.com/kailas-cloud/cypherrag/internal/transport/openai"
	cypheruc "github.com/kailas-cloud/cypherrag/internal/usecase/cypher"
	directionuc "github.com/kailas-cloud/cypherrag/internal/usecase/direction"
	entryuc "github.com/kailas-cloud/cypherrag/internal/usecase/entry"
	healthuc "github.com/kailas-cloud/cypherrag/internal/usecase/health"
	routeuc "github.com/kailas-cloud/cypherrag/internal/usecase/route"
	searchuc "github.com/kailas-cloud/cypherrag/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultConnectTimeout   = 5 * time.Second
	defaultTxRetryTime      = 15 * time.Second
	defaultLLMTimeout       = 60 * time.Second
	defaultTopK             = 10
)

// Internal interfaces, replaced in tests.
type searchUseCase interface {
	Search(ctx context.Context, query string, session domain.Session) (domain.SearchResult, error)
}

type closer interface {
	Close(ctx context.Context) error
}

// Client is the cypherrag SDK entry point.
type Client struct {
	graph     closer
	store     *dbRedis.Store
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New connects to Neo4j (and Redis when a cache is configured), loads the
// graph schema and wires the retrieval pipeline.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	vec := domain.DefaultVectorConfig()
	cfg := &clientConfig{
		embeddingModel: vec.Model,
		dimensions:     vec.Dimensions,
		topK:           defaultTopK,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	graphClient, err := graph.NewClient(graph.Config{
		URI:                     cfg.graphURI,
		Username:                cfg.graphUser,
		Password:                cfg.graphPassword,
		Database:                cfg.graphDatabase,
		ConnectionTimeout:       defaultConnectTimeout,
		MaxTransactionRetryTime: defaultTxRetryTime,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("cypherrag: %w", err)
	}
	if err := graphClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("cypherrag: graph not reachable: %w", err)
	}

	schema, err := loadSchema(ctx, cfg, graphClient)
	if err != nil {
		_ = graphClient.Close(ctx)
		return nil, err
	}

	var store *dbRedis.Store
	if cfg.cacheAddr != "" {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    []string{cfg.cacheAddr},
			Password: cfg.cachePassword,
		})
		if err != nil {
			_ = graphClient.Close(ctx)
			return nil, fmt.Errorf("cypherrag: create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			_ = graphClient.Close(ctx)
			return nil, fmt.Errorf("cypherrag: redis not ready: %w", err)
		}
	}

	c, err := wireClient(cfg, graphClient, schema, store, obs)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *clientConfig) validate() error {
	switch {
	case c.graphURI == "":
		return errors.New("cypherrag: graph address required (use WithNeo4j)")
	case c.chatModel == "":
		return errors.New("cypherrag: chat model required (use WithChatModel)")
	case c.topK <= 0:
		return fmt.Errorf("cypherrag: top k must be positive, got %d", c.topK)
	}
	return nil
}

func loadSchema(ctx context.Context, cfg *clientConfig, g *graph.Client) (domain.StaticSchema, error) {
	if cfg.schemaFile != "" {
		s, err := graph.LoadSchemaFile(cfg.schemaFile, graph.SchemaOptions{})
		if err != nil {
			return domain.StaticSchema{}, fmt.Errorf("cypherrag: load schema file: %w", err)
		}
		return s, nil
	}
	s, err := g.LoadSchema(ctx, graph.SchemaOptions{})
	if err != nil {
		return domain.StaticSchema{}, fmt.Errorf("cypherrag: introspect schema: %w", err)
	}
	return s, nil
}

// wireClient always returns a client holding the opened connections so the
// caller can release them on error.
func wireClient(
	cfg *clientConfig, g *graph.Client, schema domain.StaticSchema,
	store *dbRedis.Store, obs *observer,
) (*Client, error) {
	c := &Client{graph: g, store: store, obs: obs}

	tokens, err := segment.NewGse()
	if err != nil {
		return c, fmt.Errorf("cypherrag: load segmentation dictionaries: %w", err)
	}

	chat := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:           cfg.apiKey,
		BaseURL:          cfg.baseURL,
		Model:            cfg.chatModel,
		Timeout:          defaultLLMTimeout,
		StructuredOutput: true,
		Logger:           zap.NewNop(),
	})

	healthDeps := healthuc.Deps{Graph: g, LLM: chat}

	var embedder domain.Embedder
	if cfg.embedder != nil {
		embedder = adaptEmbedder(cfg.embedder)
	} else {
		oe := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.apiKey,
			BaseURL:    cfg.baseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.dimensions,
			Provider:   "openai",
			Logger:     zap.NewNop(),
		})
		healthDeps.Embedding = oe
		embedder = oe
	}
	if store != nil {
		embedder = embcache.New(embedder, store, embcache.Config{Model: cfg.embeddingModel}, metrics.EmbeddingCacheTotal, nil)
		healthDeps.Cache = healthuc.CheckerFunc(store.Ping)
	}
	embedder = domain.WithQueryInstruction(embedder, cfg.queryInstruction)

	cypherSvc := cypheruc.New(chat, g, schema)
	c.searchSvc = searchuc.New(searchuc.Deps{
		Router:    routeuc.New(chat),
		Retriever: entryuc.New(g, g, embedder, tokens, entryuc.Config{}),
		Generator: cypherSvc,
		Validator: cypherSvc,
		Corrector: cypherSvc,
		Direction: directionuc.New(schema),
		Executor:  g,
	}, searchuc.Config{
		TopK:      cfg.topK,
		EmptyText: cfg.emptyText,
	})
	c.healthSvc = healthuc.New(healthDeps)
	return c, nil
}

// Close releases all resources.
func (c *Client) Close(ctx context.Context) error {
	if c.store != nil {
		c.store.Close()
	}
	if c.graph != nil {
		if err := c.graph.Close(ctx); err != nil {
			return fmt.Errorf("close: %w", err)
		}
	}
	return nil
}
