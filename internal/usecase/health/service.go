package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cypherrag/internal/logger"
)

// Status is the overall verdict of a Report.
type Status string

const (
	Healthy Status = "ok"
	// Degraded means an optional dependency failed; searches still run.
	Degraded Status = "degraded"
	// Unhealthy means the graph is unreachable.
	Unhealthy Status = "error"
)

// CheckResult is the verdict for one component.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentGraph     = "graph"
	ComponentLLM       = "llm"
	ComponentEmbedding = "embedding"
	ComponentCache     = "cache"
)

// DefaultProbeTimeout bounds each component probe.
const DefaultProbeTimeout = 3 * time.Second

type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Deps lists the probed components. Only Graph is required; nil ones are not reported.
type Deps struct {
	Graph     Checker
	LLM       Checker
	Embedding Checker
	Cache     Checker
}

type probe struct {
	name    string
	checker Checker
}

// Service probes the pipeline's dependencies.
type Service struct {
	probes  []probe
	timeout time.Duration
}

func New(deps Deps) *Service {
	s := &Service{timeout: DefaultProbeTimeout}
	for _, p := range []probe{
		{ComponentGraph, deps.Graph},
		{ComponentLLM, deps.LLM},
		{ComponentEmbedding, deps.Embedding},
		{ComponentCache, deps.Cache},
	} {
		if p.checker != nil {
			s.probes = append(s.probes, p)
		}
	}
	return s
}

// Check runs every probe concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	log := logger.FromContext(ctx)
	results := make([]CheckResult, len(s.probes))

	var g errgroup.Group
	for i, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = CheckOK
			if err := p.checker.HealthCheck(pctx); err != nil {
				log.Warn("health probe failed", zap.String("component", p.name), zap.Error(err))
				results[i] = CheckError
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.probes))}
	for i, p := range s.probes {
		rep.Checks[p.name] = results[i]
		if results[i] == CheckOK {
			continue
		}
		if p.name == ComponentGraph {
			rep.Status = Unhealthy
		} else if rep.Status == Healthy {
			rep.Status = Degraded
		}
	}
	return rep
}
