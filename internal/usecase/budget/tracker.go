package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
	"github.com/kailas-cloud/cypherrag/internal/metrics"
)

// Action defines behavior when a token budget is exhausted.
type Action string

const (
	// ActionWarn logs a warning but lets the call through.
	ActionWarn Action = "warn"
	// ActionReject fails the call with domain.ErrBudgetExceeded.
	ActionReject Action = "reject"
)

// Scopes tracked by the service.
const (
	ScopeLLM       = "llm"
	ScopeEmbedding = "embedding"
)

// DefaultKeyPrefix namespaces persisted counters.
const DefaultKeyPrefix = "cypherrag:budget:"

// Store persists counters across restarts and replicas.
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Limits configures one tracker. A zero limit is unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
	Action  Action
}

// Tracker counts model tokens per UTC day and month for one scope.
// Check reads memory only; Record writes through to the store when attached.
type Tracker struct {
	mu             sync.Mutex
	scope          string
	prefix         string
	limits         Limits
	dailyUsed      int64
	monthlyUsed    int64
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          Store
	now            func() time.Time
	logger         *zap.Logger
}

// NewTracker creates a tracker for scope.
func NewTracker(scope string, limits Limits, logger *zap.Logger) *Tracker {
	if limits.Action == "" {
		limits.Action = ActionWarn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		scope:  scope,
		prefix: DefaultKeyPrefix,
		limits: limits,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	now := t.now()
	t.lastDayReset = truncateToDay(now)
	t.lastMonthReset = truncateToMonth(now)
	return t
}

// WithStore attaches a persistence store and loads the current counters.
func (t *Tracker) WithStore(ctx context.Context, store Store, prefix string) *Tracker {
	t.store = store
	if prefix != "" {
		t.prefix = prefix
	}
	t.load(ctx)
	return t
}

func (t *Tracker) load(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if val, err := t.store.Get(ctx, t.dailyKey(now)); err == nil {
		t.dailyUsed = val
	} else {
		t.logger.Warn("failed to load daily budget", zap.String("scope", t.scope), zap.Error(err))
	}
	if val, err := t.store.Get(ctx, t.monthlyKey(now)); err == nil {
		t.monthlyUsed = val
	} else {
		t.logger.Warn("failed to load monthly budget", zap.String("scope", t.scope), zap.Error(err))
	}

	t.logger.Info("budget loaded",
		zap.String("scope", t.scope),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
}

func (t *Tracker) dailyKey(now time.Time) string {
	return fmt.Sprintf("%s%s:daily:%s", t.prefix, t.scope, now.Format("2006-01-02"))
}

func (t *Tracker) monthlyKey(now time.Time) string {
	return fmt.Sprintf("%s%s:monthly:%s", t.prefix, t.scope, now.Format("2006-01"))
}

// Scope returns the tracked scope.
func (t *Tracker) Scope() string { return t.scope }

// Check reports whether a new call may proceed.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()
	dailyExceeded := t.limits.Daily > 0 && t.dailyUsed >= t.limits.Daily
	monthlyExceeded := t.limits.Monthly > 0 && t.monthlyUsed >= t.limits.Monthly
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if t.limits.Action == ActionReject {
		return fmt.Errorf("%s: %w", t.scope, domain.ErrBudgetExceeded)
	}

	t.logger.Warn("token budget exceeded",
		zap.String("scope", t.scope),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.limits.Daily),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.limits.Monthly),
	)
	return nil
}

// Record adds consumed tokens.
func (t *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	t.mu.Lock()
	t.resetIfNeeded()
	t.dailyUsed += tokens
	t.monthlyUsed += tokens
	now := t.now()
	dailyKey, monthlyKey := t.dailyKey(now), t.monthlyKey(now)
	store := t.store
	t.mu.Unlock()

	t.exportRemaining()
	if store == nil {
		return
	}

	// detached from the request so a cancelled search still gets counted
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.IncrBy(ctx, dailyKey, tokens); err != nil {
		t.logger.Warn("failed to persist daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, tokens); err != nil {
		t.logger.Warn("failed to persist monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

func (t *Tracker) exportRemaining() {
	if d := t.RemainingDaily(); d >= 0 {
		metrics.BudgetTokensRemaining.WithLabelValues(t.scope, "daily").Set(float64(d))
	}
	if m := t.RemainingMonthly(); m >= 0 {
		metrics.BudgetTokensRemaining.WithLabelValues(t.scope, "monthly").Set(float64(m))
	}
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (t *Tracker) RemainingDaily() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return remaining(t.limits.Daily, t.dailyUsed)
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (t *Tracker) RemainingMonthly() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return remaining(t.limits.Monthly, t.monthlyUsed)
}

// DailyLimit returns the daily cap.
func (t *Tracker) DailyLimit() int64 { return t.limits.Daily }

// MonthlyLimit returns the monthly cap.
func (t *Tracker) MonthlyLimit() int64 { return t.limits.Monthly }

// DailyUsed returns tokens consumed today.
func (t *Tracker) DailyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (t *Tracker) MonthlyUsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.monthlyUsed
}

func (t *Tracker) resetIfNeeded() {
	now := t.now()
	if today := truncateToDay(now); today.After(t.lastDayReset) {
		t.dailyUsed = 0
		t.lastDayReset = today
	}
	if month := truncateToMonth(now); month.After(t.lastMonthReset) {
		t.monthlyUsed = 0
		t.lastMonthReset = month
	}
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
