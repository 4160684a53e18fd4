package entry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/logger"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
	"github.com/kailas-cloud/cypherrag/internal/segment"
)

// Config tunes entry-node retrieval.
type Config struct {
	Ratio          int
	MaxConcurrency int
	// SearchTimeout bounds a single label search; zero means no bound.
	SearchTimeout time.Duration
}

// Service resolves routed entities to entry nodes.
type Service struct {
	users    UserFinder
	index    HybridSearcher
	embed    domain.Embedder
	tokens   Tokenizer
	ratio    int
	limit    int
	searchTO time.Duration
}

// New creates an entry-node retrieval service.
func New(users UserFinder, index HybridSearcher, embed domain.Embedder, tokens Tokenizer, cfg Config) *Service {
	ratio := cfg.Ratio
	if ratio <= 0 {
		ratio = domain.DefaultEffectiveSearchRatio
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = len(domain.Labels)
	}
	return &Service{
		users:    users,
		index:    index,
		embed:    embed,
		tokens:   tokens,
		ratio:    ratio,
		limit:    limit,
		searchTO: cfg.SearchTimeout,
	}
}

type pending struct {
	label  domain.Label
	entity string
	terms  domain.HybridTerm
}

// Retrieve resolves items to entry nodes. Failures of individual lookups or
// label searches only shrink the result; retrieval itself never fails.
func (s *Service) Retrieve(ctx context.Context, items []domain.RouteItem, topK int) domain.EntryNodeSet {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	log := logger.FromContext(ctx)
	set := domain.EntryNodeSet{}

	var others []pending
	for _, it := range items {
		if it.Entity == "" {
			continue
		}
		if it.Label == domain.LabelUser {
			s.lookupUser(ctx, set, it.Entity)
			continue
		}
		lexical := segment.LexicalQuery(s.tokens, it.Entity)
		if lexical == "" {
			log.Debug("entity dropped, no searchable tokens",
				zap.String("label", string(it.Label)), zap.String("entity", it.Entity))
			continue
		}
		others = append(others, pending{label: it.Label, entity: it.Entity, terms: domain.HybridTerm{Lexical: lexical}})
	}

	if len(others) == 0 {
		return set
	}

	if err := s.vectorize(ctx, others); err != nil {
		log.Warn("entry search degraded: embedding failed",
			zap.Int("entities", len(others)),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrEntrySearchDegraded, err)))
		for _, p := range others {
			metrics.EntrySearchesTotal.WithLabelValues(string(p.label), "degraded").Inc()
		}
		set.SortByScore()
		return set
	}

	queries := groupByLabel(others, topK, s.ratio)
	results := make([][]domain.EntryNode, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = s.search(gctx, q)
			// never fail the group: a failed label only loses its bucket
			return nil
		})
	}
	_ = g.Wait()

	for i, q := range queries {
		set.Add(q.Label, results[i]...)
	}
	set.SortByScore()
	return set
}

func (s *Service) lookupUser(ctx context.Context, set domain.EntryNodeSet, userID string) {
	node, err := s.users.FindUser(ctx, userID)
	switch {
	case err == nil:
		set.Add(domain.LabelUser, domain.EntryNode{Record: node})
	case errors.Is(err, domain.ErrNotFound):
		logger.FromContext(ctx).Debug("user entry not found", zap.String("user_id", userID))
	default:
		logger.FromContext(ctx).Warn("user lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// vectorize embeds every pending entity with one batch call.
func (s *Service) vectorize(ctx context.Context, others []pending) error {
	texts := make([]string, len(others))
	for i, p := range others {
		texts[i] = p.entity
	}

	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return err
	}
	if len(res.Embeddings) != len(others) {
		return fmt.Errorf("expected %d vectors, got %d", len(others), len(res.Embeddings))
	}
	for i := range others {
		others[i].terms.Vector = res.Embeddings[i]
	}
	return nil
}

func (s *Service) search(ctx context.Context, q domain.HybridQuery) []domain.EntryNode {
	if s.searchTO > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.searchTO)
		defer cancel()
	}

	start := time.Now()
	nodes, err := s.index.HybridSearch(ctx, q)
	if err != nil {
		metrics.EntrySearchesTotal.WithLabelValues(string(q.Label), "degraded").Inc()
		logger.FromContext(ctx).Warn("entry search degraded",
			zap.String("label", string(q.Label)),
			zap.Int("terms", len(q.Terms)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrEntrySearchDegraded, err)))
		return nil
	}
	metrics.EntrySearchesTotal.WithLabelValues(string(q.Label), "ok").Inc()
	return nodes
}

// groupByLabel builds one query per distinct label, keeping first-seen label order.
func groupByLabel(others []pending, topK, ratio int) []domain.HybridQuery {
	idx := map[domain.Label]int{}
	var out []domain.HybridQuery
	for _, p := range others {
		i, ok := idx[p.label]
		if !ok {
			i = len(out)
			idx[p.label] = i
			out = append(out, domain.HybridQuery{Label: p.label, TopK: topK, Ratio: ratio})
		}
		out[i].Terms = append(out[i].Terms, p.terms)
	}
	return out
}
