package cypherrag

import (
	"context"

	healthuc "github.com/kailas-cloud/cypherrag/internal/usecase/health"
)

// HealthStatus summarizes the dependencies of a Client.
// Status is "ok", "degraded" or "error"; Checks maps a component
// ("graph", "llm", "embedding", "cache") to "ok" or "error".
type HealthStatus struct {
	Status string
	Checks map[string]string
}

// Healthy is false only when the graph is unreachable; a degraded cache or
// model endpoint still lets Search answer or fall back.
func (h HealthStatus) Healthy() bool { return h.Status != string(healthuc.Unhealthy) }

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health probes every configured dependency.
func (c *Client) Health(ctx context.Context) HealthStatus {
	rep := c.healthSvc.Check(ctx)
	st := HealthStatus{Status: string(rep.Status), Checks: make(map[string]string, len(rep.Checks))}
	for name, res := range rep.Checks {
		st.Checks[name] = string(res)
	}
	return st
}
