package usage

// BudgetReader exposes one token budget scope ("llm" or "embedding").
// Limits are -1 when the period is unlimited.
type BudgetReader interface {
	Scope() string

	DailyLimit() int64
	DailyUsed() int64
	RemainingDaily() int64

	MonthlyLimit() int64
	MonthlyUsed() int64
	RemainingMonthly() int64
}
