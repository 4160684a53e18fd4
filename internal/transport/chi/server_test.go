package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	healthuc "github.com/kailas-cloud/cypherrag/internal/usecase/health"
	searchuc "github.com/kailas-cloud/cypherrag/internal/usecase/search"
	usageuc "github.com/kailas-cloud/cypherrag/internal/usecase/usage"
)

// --- Mocks ---

type mockSearcher struct {
	result  domain.SearchResult
	err     error
	query   string
	session domain.Session
	calls   int
	panics  bool
}

func (m *mockSearcher) Search(ctx context.Context, query string, session domain.Session) (domain.SearchResult, error) {
	m.calls++
	m.query = query
	m.session = session
	if m.panics {
		panic("boom")
	}
	domain.UsageFromContext(ctx).AddLLMCall(120)
	domain.UsageFromContext(ctx).AddEmbeddingTokens(8)
	return m.result, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type mockUsage struct {
	period usageuc.Period
}

func (m *mockUsage) GetReport(_ context.Context, period usageuc.Period) usageuc.Report {
	m.period = period
	return usageuc.Report{
		Period: period,
		Start:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Scopes: []usageuc.ScopeReport{{Scope: "llm", Limit: 100, Used: 100, Remaining: 0, Exhausted: true}},
	}
}

func newTestRouter(s *mockSearcher, h *mockHealth, keys ...string) http.Handler {
	return NewServer(s, h, &mockUsage{}, zap.NewNop()).Router(keys)
}

func postSearch(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestSearch_OK(t *testing.T) {
	s := &mockSearcher{result: domain.SearchResult{Records: []domain.Record{
		domain.NewRecord(map[string]any{"s": map[string]any{"spu_name": "华为Mate 40 pro"}}),
	}}}
	h := newTestRouter(s, &mockHealth{})

	rr := postSearch(t, h, `{
		"query": "华为Mate 40 pro多少钱",
		"user_id": "25",
		"history": [{"speaker": "user", "text": "你好"}, {"speaker": "Bot", "text": "您好"}]
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.Empty)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "华为Mate 40 pro", resp.Records[0].Fields["s.spu_name"])

	assert.Equal(t, "华为Mate 40 pro多少钱", s.query)
	assert.Equal(t, "25", s.session.UserID)
	require.Len(t, s.session.Turns, 2)
	assert.Equal(t, domain.SpeakerBot, s.session.Turns[1].Speaker)

	assert.Equal(t, "1", rr.Header().Get(HeaderLLMCalls))
	assert.Equal(t, "120", rr.Header().Get(HeaderLLMTokens))
	assert.Equal(t, "8", rr.Header().Get(HeaderEmbeddingTokens))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestSearch_EmptySentinel(t *testing.T) {
	s := &mockSearcher{result: domain.EmptyResult("")}
	rr := postSearch(t, newTestRouter(s, &mockHealth{}), `{"query": "我买过什么"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Empty)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, domain.DefaultEmptyText, resp.Records[0].Content)
}

func TestSearch_BadBody(t *testing.T) {
	s := &mockSearcher{}
	rr := postSearch(t, newTestRouter(s, &mockHealth{}), `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, s.calls)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, ErrorCodeBadRequest, resp.Code)
}

func TestSearch_ValidationFailed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown speaker", `{"query": "你好", "history": [{"speaker": "system", "text": "x"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &mockSearcher{}
			rr := postSearch(t, newTestRouter(s, &mockHealth{}), tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Zero(t, s.calls)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, ErrorCodeValidationFailed, resp.Code)
		})
	}
}

func TestSearch_BlankQueryIsEmptyResult(t *testing.T) {
	h := NewServer(searchuc.New(searchuc.Deps{}, searchuc.Config{}), &mockHealth{}, &mockUsage{}, zap.NewNop()).Router(nil)

	rr := postSearch(t, h, `{"query": "   "}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Empty)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "空", resp.Records[0].Content)
	assert.Empty(t, rr.Header().Get(HeaderLLMCalls))
}

func TestSearch_RoutingFailed(t *testing.T) {
	s := &mockSearcher{err: errors.Join(domain.ErrRoutingFailed, errors.New("bad json"))}
	rr := postSearch(t, newTestRouter(s, &mockHealth{}), `{"query": "你好"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, ErrorCodeRoutingFailed, resp.Code)
	assert.NotContains(t, resp.Message, "bad json")
}

func TestSearch_BudgetExceeded(t *testing.T) {
	err := errors.Join(domain.ErrRoutingFailed, domain.ErrBudgetExceeded)
	rr := postSearch(t, newTestRouter(&mockSearcher{err: err}, &mockHealth{}), `{"query": "你好"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, ErrorCodeBudgetExceeded, resp.Code)
}

func TestSearch_InternalError(t *testing.T) {
	s := &mockSearcher{err: errors.New("neo4j: connection refused")}
	rr := postSearch(t, newTestRouter(s, &mockHealth{}), `{"query": "你好"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "neo4j")
}

func TestSearch_PanicRecovered(t *testing.T) {
	s := &mockSearcher{panics: true}
	rr := postSearch(t, newTestRouter(s, &mockHealth{}), `{"query": "你好"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, ErrorCodeInternalError, resp.Code)
}

func TestSearch_RequiresAPIKey(t *testing.T) {
	s := &mockSearcher{result: domain.EmptyResult("")}
	h := newTestRouter(s, &mockHealth{}, "secret")

	rr := postSearch(t, h, `{"query": "你好"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query": "你好"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/search", http.NoBody)
	rr := httptest.NewRecorder()
	newTestRouter(&mockSearcher{}, &mockHealth{}).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status healthuc.Status
		want   int
	}{
		{"healthy", healthuc.Healthy, http.StatusOK},
		{"degraded", healthuc.Degraded, http.StatusOK},
		{"unhealthy", healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &mockHealth{report: healthuc.Report{
				Status: tc.status,
				Checks: map[string]healthuc.CheckResult{healthuc.ComponentGraph: healthuc.CheckOK},
			}}
			req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
			rr := httptest.NewRecorder()
			newTestRouter(&mockSearcher{}, h, "secret").ServeHTTP(rr, req)
			require.Equal(t, tc.want, rr.Code)

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, string(tc.status), resp.Status)
			assert.Equal(t, "ok", resp.Checks[healthuc.ComponentGraph])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	newTestRouter(&mockSearcher{}, &mockHealth{}).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestGetUsage(t *testing.T) {
	u := &mockUsage{}
	h := NewServer(&mockSearcher{}, &mockHealth{}, u, zap.NewNop()).Router(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage?period=month", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, usageuc.PeriodMonth, u.period)

	var resp UsageResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "month", resp.Period)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), resp.PeriodStart)
	require.Len(t, resp.Budgets, 1)
	assert.True(t, resp.Budgets[0].Exhausted)
}

func TestGetUsage_BadPeriod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/usage?period=year", http.NoBody)
	rr := httptest.NewRecorder()
	newTestRouter(&mockSearcher{}, &mockHealth{}).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
