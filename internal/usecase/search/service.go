package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/logger"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
)

const tracerName = "github.com/kailas-cloud/cypherrag/internal/usecase/search"

// Pipeline stages, used as span names and metric labels.
const (
	stageRoute     = "route"
	stageEntry     = "entry"
	stageGenerate  = "generate"
	stageValidate  = "validate"
	stageCorrect   = "correct"
	stageDirection = "direction"
	stageExecute   = "execute"
)

// Search outcomes.
const (
	outcomeResult        = "result"
	outcomeEmpty         = "empty"
	outcomeRoutingFailed = "routing_failed"
)

// Deps groups the pipeline collaborators.
type Deps struct {
	Router    Router
	Retriever Retriever
	Generator Generator
	Validator Validator
	Corrector Corrector
	Direction DirectionCorrector
	Executor  Executor
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

// Config tunes the pipeline.
type Config struct {
	TopK         int
	HistoryTurns int
	EmptyText    string
}

// Service answers a question with graph records by chaining routing, entry-node
// retrieval, query generation, validation, one correction round, direction
// correction and execution.
type Service struct {
	deps Deps
	cfg  Config
}

// New creates a search service.
func New(deps Deps, cfg Config) *Service {
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = domain.DefaultHistoryTurns
	}
	if cfg.EmptyText == "" {
		cfg.EmptyText = domain.DefaultEmptyText
	}
	return &Service{deps: deps, cfg: cfg}
}

// Search runs the pipeline for query asked within session.
// Every failure after routing degrades to the empty sentinel result; the only
// error returned wraps domain.ErrRoutingFailed.
func (s *Service) Search(ctx context.Context, query string, session domain.Session) (domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		metrics.SearchOutcomesTotal.WithLabelValues(outcomeEmpty).Inc()
		return domain.EmptyResult(s.cfg.EmptyText), nil
	}

	searchID := uuid.NewString()
	ctx, span := s.deps.Tracer.Start(ctx, "search.Search",
		trace.WithAttributes(attribute.String("search.id", searchID)))
	defer span.End()

	ctx, log := logger.With(ctx, append(logger.TraceFields(ctx), zap.String("search_id", searchID))...)

	session = withQuestion(session, query)

	// Routed
	stageCtx, end := s.stage(ctx, stageRoute)
	items, err := s.deps.Router.Route(stageCtx, session.History(s.cfg.HistoryTurns))
	end(err)
	if err != nil {
		if !errors.Is(err, domain.ErrRoutingFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrRoutingFailed, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "routing failed")
		metrics.SearchOutcomesTotal.WithLabelValues(outcomeRoutingFailed).Inc()
		log.Warn("routing failed", zap.Error(err))
		return domain.SearchResult{}, fmt.Errorf("route: %w", err)
	}
	log.Debug("routed", zap.Any("items", items))

	// EntryNodesResolved
	stageCtx, end = s.stage(ctx, stageEntry)
	entry := s.deps.Retriever.Retrieve(stageCtx, items, s.cfg.TopK)
	end(nil)
	log.Debug("entry nodes resolved", zap.Int("labels", len(entry)))

	// Generated
	stageCtx, end = s.stage(ctx, stageGenerate)
	draft := s.deps.Generator.Generate(stageCtx, query, entry)
	end(nil)
	log.Debug("query generated", zap.String("cypher", draft.Text()))

	// Validated
	stageCtx, end = s.stage(ctx, stageValidate)
	report := s.deps.Validator.Validate(stageCtx, query, entry, draft)
	end(nil)
	log.Debug("query validated", zap.Strings("errors", report))

	// Corrected, at most once
	if !report.Valid() {
		stageCtx, end = s.stage(ctx, stageCorrect)
		draft = s.deps.Corrector.Correct(stageCtx, query, entry, draft, report)
		end(nil)
		metrics.CorrectionsTotal.WithLabelValues("llm").Inc()
		log.Debug("query corrected", zap.String("cypher", draft.Text()))
	}

	// DirectionCorrected
	if !draft.IsEmpty() {
		stageCtx, end = s.stage(ctx, stageDirection)
		draft = s.deps.Direction.Correct(stageCtx, draft)
		end(nil)
		log.Debug("direction corrected", zap.String("cypher", draft.Text()))
	}

	// Executed
	result := s.execute(ctx, draft)
	outcome := outcomeResult
	if result.Empty {
		outcome = outcomeEmpty
	}
	span.SetAttributes(attribute.String("search.outcome", outcome), attribute.Int("search.records", len(result.Records)))
	metrics.SearchOutcomesTotal.WithLabelValues(outcome).Inc()
	log.Debug("search done", zap.String("outcome", outcome), zap.Int("records", len(result.Records)))
	return result, nil
}

func (s *Service) execute(ctx context.Context, draft domain.QueryDraft) domain.SearchResult {
	log := logger.FromContext(ctx)
	if draft.IsEmpty() {
		log.Warn("no query to execute", zap.Error(fmt.Errorf("%w: %w", domain.ErrExecutionFailed, domain.ErrEmptyQuery)))
		return domain.EmptyResult(s.cfg.EmptyText)
	}

	stageCtx, end := s.stage(ctx, stageExecute)
	rows, err := s.deps.Executor.Execute(stageCtx, draft.Text())
	end(err)
	if err != nil {
		log.Warn("query execution failed", zap.String("cypher", draft.Text()), zap.Error(err))
		return domain.EmptyResult(s.cfg.EmptyText)
	}
	if len(rows) == 0 {
		log.Debug("query returned no rows", zap.String("cypher", draft.Text()))
		return domain.EmptyResult(s.cfg.EmptyText)
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.NewRecord(row))
	}
	return domain.SearchResult{Records: records}
}

// stage opens a span for one pipeline step. The returned func closes it and
// records the step duration.
func (s *Service) stage(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := s.deps.Tracer.Start(ctx, "search."+name)
	start := time.Now()
	return ctx, func(err error) {
		metrics.SearchStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// withQuestion makes sure the question is the latest user turn of the history.
func withQuestion(session domain.Session, query string) domain.Session {
	if n := len(session.Turns); n > 0 {
		last := session.Turns[n-1]
		if last.Speaker == domain.SpeakerUser && strings.TrimSpace(last.Text) == query {
			return session
		}
	}
	turns := make([]domain.ChatTurn, 0, len(session.Turns)+1)
	turns = append(turns, session.Turns...)
	session.Turns = append(turns, domain.ChatTurn{Speaker: domain.SpeakerUser, Text: query})
	return session
}
