package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Accounting window for quotas and allotments
// =============================================================================

// Period is a closed date range. Yearly quotas and day allotments are counted
// inside one period and start over at the next.
//
//	calendar 2025:          2025-01-01 .. 2025-12-31
//	fiscal 2025 (April):    2025-04-01 .. 2026-03-31
type Period struct {
	Start TimePoint
	End   TimePoint
}

func (p Period) Contains(t TimePoint) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Days counts calendar days, both ends included.
func (p Period) Days() int {
	return InclusiveDays(p.Start, p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s]", p.Start, p.End)
}

type PeriodType string

const (
	PeriodCalendarYear PeriodType = "calendar_year"
	PeriodFiscalYear   PeriodType = "fiscal_year"
)

// PeriodConfig says where a policy's accounting year starts. The zero value
// is a calendar year, and so is a fiscal year without a valid start month.
type PeriodConfig struct {
	Type                 PeriodType
	FiscalYearStartMonth time.Month
}

// PeriodFor returns the accounting year containing date.
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	first := pc.startMonth()
	year := date.Year()
	if date.Month() < first {
		year--
	}
	start := NewTimePoint(year, first, 1)
	return Period{Start: start, End: start.AddYears(1).AddDays(-1)}
}

func (pc PeriodConfig) startMonth() time.Month {
	m := pc.FiscalYearStartMonth
	if pc.Type != PeriodFiscalYear || m < time.January || m > time.December {
		return time.January
	}
	return m
}
