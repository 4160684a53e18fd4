package cypherrag

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search outcomes as reported in the "outcome" label.
const (
	outcomeAnswered = "answered"
	outcomeEmpty    = "empty"
	outcomeError    = "error"
)

type searchMetrics struct {
	searches *prometheus.CounterVec
	latency  prometheus.Histogram
	llmCalls prometheus.Histogram
}

func newSearchMetrics(reg prometheus.Registerer) (*searchMetrics, error) {
	m := &searchMetrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cypherrag",
			Subsystem: "sdk",
			Name:      "searches_total",
			Help:      "Searches by outcome: answered, empty or error.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cypherrag",
			Subsystem: "sdk",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		llmCalls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cypherrag",
			Subsystem: "sdk",
			Name:      "search_llm_calls",
			Help:      "Chat completions issued per search.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
	}
	for _, err := range []error{
		registerOrReuse(reg, &m.searches),
		registerOrReuse(reg, &m.latency),
		registerOrReuse(reg, &m.llmCalls),
	} {
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// registerOrReuse registers *c, or points *c at an identical collector
// registered earlier, so several Clients can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var dup prometheus.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		return fmt.Errorf("cypherrag: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("cypherrag: metric already registered as %T", dup.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer reports searches to the optional logger and registry. Methods on a nil observer do nothing.
type observer struct {
	logger  *slog.Logger
	metrics *searchMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newSearchMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

func (o *observer) observeSearch(start time.Time, res Result, err error) {
	if o == nil {
		return
	}
	took := time.Since(start)
	outcome := outcomeAnswered
	switch {
	case err != nil:
		outcome = outcomeError
	case res.Empty:
		outcome = outcomeEmpty
	}

	if o.metrics != nil {
		o.metrics.searches.WithLabelValues(outcome).Inc()
		o.metrics.latency.Observe(took.Seconds())
		if err == nil {
			o.metrics.llmCalls.Observe(float64(res.Usage.LLMCalls))
		}
	}

	if o.logger == nil {
		return
	}
	attrs := []any{
		slog.String("outcome", outcome),
		slog.Duration("took", took),
		slog.Int("records", len(res.Records)),
		slog.Int("llm_calls", res.Usage.LLMCalls),
	}
	if err != nil {
		o.logger.Warn("cypherrag search failed", append(attrs, slog.Any("error", err))...)
		return
	}
	o.logger.Debug("cypherrag search", attrs...)
}
