package usage

import (
	"context"
	"fmt"
	"time"
)

// Period selects the budget window of a report.
type Period string

// Supported periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. An empty name means PeriodDay.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// ScopeReport is the budget state of one scope. Limit and Remaining are -1
// for an unlimited scope.
type ScopeReport struct {
	Scope     string
	Limit     int64
	Used      int64
	Remaining int64
	Exhausted bool
}

// Report is the token usage of all tracked scopes over one period.
type Report struct {
	Period Period
	Start  time.Time
	End    time.Time
	Scopes []ScopeReport
}

// Service reports token usage. It holds no readers when budgets are off.
type Service struct {
	readers []BudgetReader
	now     func() time.Time
}

// New creates a Service over the given readers, reported in order.
func New(readers ...BudgetReader) *Service {
	return &Service{readers: readers, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds the usage report for period.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := s.now()
	rep := Report{Period: period, Scopes: make([]ScopeReport, 0, len(s.readers))}

	switch period {
	case PeriodMonth:
		rep.Start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		rep.End = rep.Start.AddDate(0, 1, 0)
	default:
		rep.Period = PeriodDay
		rep.Start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		rep.End = rep.Start.Add(24 * time.Hour)
	}

	for _, r := range s.readers {
		sr := ScopeReport{Scope: r.Scope()}
		if rep.Period == PeriodMonth {
			sr.Limit, sr.Used, sr.Remaining = r.MonthlyLimit(), r.MonthlyUsed(), r.RemainingMonthly()
		} else {
			sr.Limit, sr.Used, sr.Remaining = r.DailyLimit(), r.DailyUsed(), r.RemainingDaily()
		}
		if sr.Limit == 0 {
			sr.Limit = -1
		}
		sr.Exhausted = sr.Limit > 0 && sr.Remaining <= 0
		rep.Scopes = append(rep.Scopes, sr)
	}
	return rep
}
