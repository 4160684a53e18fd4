package usage

import (
	"context"
	"testing"
	"time"
)

type fakeReader struct {
	scope                    string
	dailyLimit, monthlyLimit int64
	dailyUsed, monthlyUsed   int64
}

func (f fakeReader) Scope() string       { return f.scope }
func (f fakeReader) DailyLimit() int64   { return f.dailyLimit }
func (f fakeReader) MonthlyLimit() int64 { return f.monthlyLimit }
func (f fakeReader) DailyUsed() int64    { return f.dailyUsed }
func (f fakeReader) MonthlyUsed() int64  { return f.monthlyUsed }

func (f fakeReader) RemainingDaily() int64 {
	if f.dailyLimit == 0 {
		return -1
	}
	return max(f.dailyLimit-f.dailyUsed, 0)
}

func (f fakeReader) RemainingMonthly() int64 {
	if f.monthlyLimit == 0 {
		return -1
	}
	return max(f.monthlyLimit-f.monthlyUsed, 0)
}

func newTestService(readers ...BudgetReader) *Service {
	s := New(readers...)
	s.now = func() time.Time { return time.Date(2026, 5, 17, 9, 30, 0, 0, time.UTC) }
	return s
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", PeriodDay, false},
		{"day", PeriodDay, false},
		{"month", PeriodMonth, false},
		{"year", "", true},
	}
	for _, tc := range tests {
		got, err := ParsePeriod(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParsePeriod(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestGetReport_Day(t *testing.T) {
	s := newTestService(
		fakeReader{scope: "llm", dailyLimit: 1000, dailyUsed: 1000},
		fakeReader{scope: "embedding", dailyUsed: 42},
	)
	rep := s.GetReport(context.Background(), PeriodDay)

	if !rep.Start.Equal(time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC)) || rep.End.Sub(rep.Start) != 24*time.Hour {
		t.Errorf("unexpected window %v..%v", rep.Start, rep.End)
	}
	if len(rep.Scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %d", len(rep.Scopes))
	}

	llm := rep.Scopes[0]
	if llm.Scope != "llm" || llm.Remaining != 0 || !llm.Exhausted {
		t.Errorf("unexpected llm scope %+v", llm)
	}
	emb := rep.Scopes[1]
	if emb.Limit != -1 || emb.Remaining != -1 || emb.Exhausted || emb.Used != 42 {
		t.Errorf("unexpected embedding scope %+v", emb)
	}
}

func TestGetReport_Month(t *testing.T) {
	s := newTestService(fakeReader{scope: "llm", monthlyLimit: 5000, monthlyUsed: 1200})
	rep := s.GetReport(context.Background(), PeriodMonth)

	if !rep.Start.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) ||
		!rep.End.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window %v..%v", rep.Start, rep.End)
	}
	if got := rep.Scopes[0]; got.Remaining != 3800 || got.Exhausted {
		t.Errorf("unexpected scope %+v", got)
	}
}

func TestGetReport_NoBudgets(t *testing.T) {
	rep := newTestService().GetReport(context.Background(), "")
	if rep.Period != PeriodDay || len(rep.Scopes) != 0 {
		t.Errorf("unexpected report %+v", rep)
	}
}
