package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/logger"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
	healthuc "github.com/kailas-cloud/cypherrag/internal/usecase/health"
	usageuc "github.com/kailas-cloud/cypherrag/internal/usecase/usage"
)

// maxBodyBytes caps the search request body.
const maxBodyBytes = 1 << 20

// Usage headers set on search replies.
const (
	HeaderEmbeddingTokens = "X-Embedding-Tokens"
	HeaderLLMTokens       = "X-LLM-Tokens"
	HeaderLLMCalls        = "X-LLM-Calls"
)

// Searcher runs the retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, session domain.Session) (domain.SearchResult, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports token budgets.
type UsageReporter interface {
	GetReport(ctx context.Context, period usageuc.Period) usageuc.Report
}

// Server serves the search API.
type Server struct {
	search Searcher
	health HealthChecker
	usage  UsageReporter
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, usage UsageReporter, logger *zap.Logger) *Server {
	return &Server{search: search, health: health, usage: usage, logger: logger}
}

// Router builds the chi router with the full middleware chain.
// Authentication is enabled only when apiKeys holds a non-empty key.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverJSON(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLog(s.logger))
	r.Use(APIKeyAuth(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/v1/search", s.Search)
	r.Get("/v1/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	session, err := sessionFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.search.Search(ctx, req.Query, session)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResultToResponse(res))
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := usageuc.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	rep := s.usage.GetReport(r.Context(), period)
	budgets := make([]BudgetScope, len(rep.Scopes))
	for i, sc := range rep.Scopes {
		budgets[i] = BudgetScope{
			Scope:     sc.Scope,
			Limit:     sc.Limit,
			Used:      sc.Used,
			Remaining: sc.Remaining,
			Exhausted: sc.Exhausted,
		}
	}

	writeJSON(w, http.StatusOK, UsageResponse{
		Period:      string(rep.Period),
		PeriodStart: rep.Start.UnixMilli(),
		PeriodEnd:   rep.End.UnixMilli(),
		Budgets:     budgets,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func sessionFromRequest(req SearchRequest) (domain.Session, error) {
	turns := make([]domain.ChatTurn, 0, len(req.History))
	for i, t := range req.History {
		speaker := domain.Speaker(strings.ToLower(strings.TrimSpace(t.Speaker)))
		if speaker != domain.SpeakerUser && speaker != domain.SpeakerBot {
			return domain.Session{}, fmt.Errorf("history[%d]: speaker must be %q or %q",
				i, domain.SpeakerUser, domain.SpeakerBot)
		}
		turns = append(turns, domain.ChatTurn{Speaker: speaker, Text: t.Text})
	}
	return domain.Session{Turns: turns, UserID: strings.TrimSpace(req.UserID)}, nil
}

func searchResultToResponse(res domain.SearchResult) SearchResponse {
	records := make([]Record, len(res.Records))
	for i, rec := range res.Records {
		records[i] = Record{Content: rec.Content, Fields: rec.Fields}
	}
	return SearchResponse{Records: records, Empty: res.Empty}
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	embTokens, llmTokens, llmCalls := usage.Snapshot()
	if embTokens > 0 {
		w.Header().Set(HeaderEmbeddingTokens, strconv.Itoa(embTokens))
	}
	if llmCalls > 0 {
		w.Header().Set(HeaderLLMTokens, strconv.Itoa(llmTokens))
		w.Header().Set(HeaderLLMCalls, strconv.Itoa(llmCalls))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx)
	if errors.Is(err, domain.ErrBudgetExceeded) {
		log.Warn("domain error", zap.Error(err))
		writeError(w, http.StatusTooManyRequests, ErrorCodeBudgetExceeded, domain.ErrBudgetExceeded.Error())
		return
	}
	if errors.Is(err, domain.ErrRoutingFailed) {
		log.Warn("domain error", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, ErrorCodeRoutingFailed, domain.ErrRoutingFailed.Error())
		return
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
