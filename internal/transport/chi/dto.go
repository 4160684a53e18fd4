package chi

// ErrorCode is the machine-readable error identifier of an ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeRoutingFailed    ErrorCode = "routing_failed"
	ErrorCodeBudgetExceeded   ErrorCode = "budget_exceeded"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ChatTurn is one prior message of the conversation.
type ChatTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query   string     `json:"query"`
	History []ChatTurn `json:"history,omitempty"`
	UserID  string     `json:"user_id,omitempty"`
}

// Record is one flattened graph row.
type Record struct {
	Content string         `json:"content"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Records []Record `json:"records"`
	Empty   bool     `json:"empty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// BudgetScope is the budget state of one model scope.
type BudgetScope struct {
	Scope     string `json:"scope"`
	Limit     int64  `json:"limit"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
	Exhausted bool   `json:"exhausted"`
}

// UsageResponse is the body of GET /v1/usage.
type UsageResponse struct {
	Period      string        `json:"period"`
	PeriodStart int64         `json:"period_start_ms"`
	PeriodEnd   int64         `json:"period_end_ms"`
	Budgets     []BudgetScope `json:"budgets"`
}
