package metrics

import "github.com/prometheus/client_golang/prometheus"

// BudgetTokensRemaining tracks tokens left before a budget cap.
var BudgetTokensRemaining = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "budget_tokens_remaining",
		Help:      "Model tokens left in the current budget period",
	},
	// scope: llm, embedding; period: daily, monthly
	[]string{"scope", "period"},
)

var budgetMetricsRegistered bool

// RegisterBudgetMetrics registers budget metrics. Must be called once from main.
func RegisterBudgetMetrics() {
	if budgetMetricsRegistered {
		return
	}
	prometheus.MustRegister(BudgetTokensRemaining)
	budgetMetricsRegistered = true
}
