package cypher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/llm"
	"github.com/kailas-cloud/cypherrag/internal/logger"
)

// Service drafts, reviews and corrects Cypher queries with the chat model.
type Service struct {
	model  ChatModel
	graph  Explainer
	schema domain.SchemaProvider
}

// New creates a query service.
func New(model ChatModel, graph Explainer, schema domain.SchemaProvider) *Service {
	return &Service{model: model, graph: graph, schema: schema}
}

// Generate drafts a query for the user question. A model failure yields an empty draft.
func (s *Service) Generate(ctx context.Context, query string, entry domain.EntryNodeSet) domain.QueryDraft {
	reply, err := s.model.Complete(ctx, domain.CompletionRequest{
		Stage:  domain.StageGenerate,
		System: fmt.Sprintf(generateSystem, s.schema.TextSchema()),
		Prompt: fmt.Sprintf(generateUser, entry.Summary(), query),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("query generation failed", zap.Error(err))
		return domain.NewQueryDraft("", domain.OriginGenerated)
	}

	draft := domain.NewQueryDraft(llm.ExtractQuery(reply), domain.OriginGenerated)
	logger.FromContext(ctx).Info("query generated", zap.String("cypher", draft.Text()))
	return draft
}

// validationReply is the structured review reply.
type validationReply struct {
	Errors []string `json:"errors" description:"problems found in the query, empty when it is correct"`
}

// Validate checks the draft with an engine EXPLAIN and one model review.
// The draft is never executed.
func (s *Service) Validate(
	ctx context.Context, query string, entry domain.EntryNodeSet, draft domain.QueryDraft,
) domain.ValidationReport {
	log := logger.FromContext(ctx)

	if draft.IsEmpty() {
		return domain.ValidationReport{emptyDraftError}
	}

	var report domain.ValidationReport

	if err := s.graph.Explain(ctx, draft.Text()); err != nil {
		var synErr *domain.SyntaxError
		if errors.As(err, &synErr) {
			report = append(report, syntaxErrorPrefix+synErr.Message)
		} else {
			log.Warn("explain unavailable, syntax check skipped", zap.Error(err))
		}
	}

	reply, err := s.model.Complete(ctx, domain.CompletionRequest{
		Stage:  domain.StageValidate,
		System: fmt.Sprintf(validateSystem, s.schema.TextSchema()),
		Prompt: fmt.Sprintf(validateUser, entry.Summary(), query, draft.Text()),
		Schema: validationReply{},
	})
	if err != nil {
		log.Warn("query review failed, semantic check skipped", zap.Error(err))
	} else {
		report = append(report, parseReview(reply)...)
	}

	log.Info("query validated", zap.Strings("errors", report))
	return report
}

// parseReview accepts {"errors": [...]}, a bare list, or an empty reply.
// Prose that is not JSON is kept verbatim as a single problem.
func parseReview(reply string) []string {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil
	}

	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		return []string{reply}
	}

	var items []any
	if strings.HasPrefix(raw, "[") {
		items, err = llm.ExtractJSONAs[[]any](raw)
	} else {
		var obj map[string]any
		obj, err = llm.ExtractJSONAs[map[string]any](raw)
		items, _ = obj["errors"].([]any)
	}
	if err != nil {
		return []string{reply}
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		var msg string
		if str, ok := it.(string); ok {
			msg = str
		} else {
			msg = fmt.Sprint(it)
		}
		if msg = strings.TrimSpace(msg); msg != "" {
			out = append(out, msg)
		}
	}
	return out
}

// Correct asks the model to revise the draft once. A model failure yields an empty draft.
func (s *Service) Correct(
	ctx context.Context, query string, entry domain.EntryNodeSet,
	draft domain.QueryDraft, report domain.ValidationReport,
) domain.QueryDraft {
	reply, err := s.model.Complete(ctx, domain.CompletionRequest{
		Stage:  domain.StageCorrect,
		System: fmt.Sprintf(correctSystem, s.schema.TextSchema()),
		Prompt: fmt.Sprintf(correctUser, entry.Summary(), query, report.String(), draft.Text()),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("query correction failed", zap.Error(err))
		return domain.NewQueryDraft("", domain.OriginCorrected)
	}

	corrected := domain.NewQueryDraft(llm.ExtractQuery(reply), domain.OriginCorrected)
	logger.FromContext(ctx).Info("query corrected", zap.String("cypher", corrected.Text()))
	return corrected
}
