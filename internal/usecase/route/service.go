package route

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/llm"
	"github.com/kailas-cloud/cypherrag/internal/logger"
)

// Service picks entry-point labels and entities from the conversation.
type Service struct {
	model  ChatModel
	system string
}

// New creates a routing service.
func New(model ChatModel) *Service {
	return &Service{model: model, system: buildSystemPrompt()}
}

// Route asks the model for label/entity pairs. Any failure to obtain a
// well-formed reply with known labels is reported as domain.ErrRoutingFailed.
func (s *Service) Route(ctx context.Context, history string) ([]domain.RouteItem, error) {
	reply, err := s.model.Complete(ctx, domain.CompletionRequest{
		Stage:  domain.StageRoute,
		System: s.system,
		Prompt: history,
		Schema: domain.RouteOutput{},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRoutingFailed, err)
	}

	items, err := parseReply(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRoutingFailed, err)
	}

	logger.FromContext(ctx).Info("routed entry labels", zap.Any("items", items))
	return items, nil
}

// parseReply accepts the structured {"outputs": [...]} object and, for models
// without structured output, a bare list of items.
func parseReply(reply string) ([]domain.RouteItem, error) {
	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	var items []domain.RouteItem
	if strings.HasPrefix(raw, "[") {
		items, err = llm.ExtractJSONAs[[]domain.RouteItem](raw)
	} else {
		var out domain.RouteOutput
		out, err = llm.ExtractJSONAs[domain.RouteOutput](raw)
		items = out.Outputs
	}
	if err != nil {
		return nil, err
	}

	for i := range items {
		if !items[i].Label.IsValid() {
			return nil, fmt.Errorf("unknown label %q", items[i].Label)
		}
		items[i].Entity = strings.TrimSpace(items[i].Entity)
	}
	return items, nil
}
