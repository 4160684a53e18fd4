package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	mu      sync.Mutex
	values  map[string]int64
	getErr  error
	incrErr error
}

func newMockStore() *mockStore { return &mockStore{values: map[string]int64{}} }

func (m *mockStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return m.incrErr
	}
	m.values[key] += val
	return nil
}

func (m *mockStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.values[key], nil
}

func fixedClock(tr *Tracker, at time.Time) {
	tr.now = func() time.Time { return at }
	tr.lastDayReset = truncateToDay(at)
	tr.lastMonthReset = truncateToMonth(at)
}

// --- Tests ---

func TestTracker_RejectWhenDailyExceeded(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Daily: 100, Action: ActionReject}, zap.NewNop())
	tr.Record(100)

	err := tr.Check(context.Background())
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestTracker_RejectWhenMonthlyExceeded(t *testing.T) {
	tr := NewTracker(ScopeEmbedding, Limits{Monthly: 500, Action: ActionReject}, zap.NewNop())
	tr.Record(499)
	if err := tr.Check(context.Background()); err != nil {
		t.Fatalf("below the cap must pass, got %v", err)
	}
	tr.Record(1)
	if err := tr.Check(context.Background()); !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestTracker_WarnByDefault(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Daily: 10}, zap.NewNop())
	tr.Record(50)
	if err := tr.Check(context.Background()); err != nil {
		t.Fatalf("warn action must not fail, got %v", err)
	}
}

func TestTracker_Remaining(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Daily: 1000, Monthly: 10000}, zap.NewNop())
	tr.Record(300)

	if got := tr.RemainingDaily(); got != 700 {
		t.Errorf("expected daily 700, got %d", got)
	}
	if got := tr.RemainingMonthly(); got != 9700 {
		t.Errorf("expected monthly 9700, got %d", got)
	}

	tr.Record(5000)
	if got := tr.RemainingDaily(); got != 0 {
		t.Errorf("overspent daily must clamp to 0, got %d", got)
	}
}

func TestTracker_Unlimited(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Action: ActionReject}, zap.NewNop())
	tr.Record(1 << 40)
	if err := tr.Check(context.Background()); err != nil {
		t.Fatalf("unlimited budget must pass, got %v", err)
	}
	if tr.RemainingDaily() != -1 || tr.RemainingMonthly() != -1 {
		t.Error("unlimited remaining must be -1")
	}
}

func TestTracker_IgnoresNonPositive(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Daily: 10}, zap.NewNop())
	tr.Record(0)
	tr.Record(-5)
	if tr.DailyUsed() != 0 {
		t.Errorf("expected nothing recorded, got %d", tr.DailyUsed())
	}
}

func TestTracker_ResetsOnNewDay(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Daily: 100, Monthly: 1000, Action: ActionReject}, zap.NewNop())
	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	fixedClock(tr, day)

	tr.Record(100)
	if err := tr.Check(context.Background()); err == nil {
		t.Fatal("expected rejection before midnight")
	}

	tr.now = func() time.Time { return day.Add(2 * time.Minute) }
	if err := tr.Check(context.Background()); err != nil {
		t.Fatalf("new day must reset the daily counter, got %v", err)
	}
	if tr.MonthlyUsed() != 100 {
		t.Errorf("monthly counter must survive the day change, got %d", tr.MonthlyUsed())
	}
}

func TestTracker_ResetsOnNewMonth(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{Monthly: 100}, zap.NewNop())
	at := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	fixedClock(tr, at)
	tr.Record(80)

	tr.now = func() time.Time { return at.AddDate(0, 0, 1) }
	if tr.MonthlyUsed() != 0 {
		t.Errorf("expected monthly reset, got %d", tr.MonthlyUsed())
	}
}

func TestTracker_WithStore_LoadsAndPersists(t *testing.T) {
	store := newMockStore()
	at := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	store.values["cypherrag:budget:llm:daily:2026-05-02"] = 40
	store.values["cypherrag:budget:llm:monthly:2026-05"] = 400

	tr := NewTracker(ScopeLLM, Limits{Daily: 100}, zap.NewNop())
	fixedClock(tr, at)
	tr.WithStore(context.Background(), store, "")

	if tr.DailyUsed() != 40 || tr.MonthlyUsed() != 400 {
		t.Fatalf("expected loaded counters, got %d/%d", tr.DailyUsed(), tr.MonthlyUsed())
	}

	tr.Record(10)
	if store.values["cypherrag:budget:llm:daily:2026-05-02"] != 50 {
		t.Errorf("daily key not persisted: %v", store.values)
	}
	if store.values["cypherrag:budget:llm:monthly:2026-05"] != 410 {
		t.Errorf("monthly key not persisted: %v", store.values)
	}
}

func TestTracker_WithStore_CustomPrefix(t *testing.T) {
	store := newMockStore()
	at := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	tr := NewTracker(ScopeEmbedding, Limits{}, zap.NewNop())
	fixedClock(tr, at)
	tr.WithStore(context.Background(), store, "shop:budget:")
	tr.Record(3)

	if store.values["shop:budget:embedding:daily:2026-05-02"] != 3 {
		t.Errorf("expected custom prefix, got %v", store.values)
	}
}

func TestTracker_StoreErrorsKeepMemoryCounters(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("timeout")
	store.incrErr = errors.New("timeout")

	tr := NewTracker(ScopeLLM, Limits{Daily: 100}, zap.NewNop())
	tr.WithStore(context.Background(), store, "")
	tr.Record(25)

	if tr.DailyUsed() != 25 {
		t.Errorf("expected in-memory counter 25, got %d", tr.DailyUsed())
	}
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tr := NewTracker(ScopeLLM, Limits{}, zap.NewNop())
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(2)
		}()
	}
	wg.Wait()
	if tr.DailyUsed() != 100 {
		t.Errorf("expected 100, got %d", tr.DailyUsed())
	}
}
