package license

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/license-engine/generic"
)

// =============================================================================
// ENTITLEMENT CALCULATOR - Vacation days by seniority
// =============================================================================

// SeniorityTier grants Days to employees with at most MaxYears of seniority.
// A nil MaxYears is the open-ended top tier.
type SeniorityTier struct {
	MaxYears *int
	Days     int
}

// DefaultTiers: up to 5 years 14 days, up to 10 years 21, up to 20 years 28,
// beyond that 35. Each boundary year belongs to the lower tier.
var DefaultTiers = []SeniorityTier{
	{MaxYears: Limit(5), Days: 14},
	{MaxYears: Limit(10), Days: 21},
	{MaxYears: Limit(20), Days: 28},
	{MaxYears: nil, Days: 35},
}

const (
	// ProbationDays is the tenure below which entitlement is pro-rated.
	ProbationDays = 180
	// BusinessDaysPerVacationDay converts worked business days to vacation days
	// during the pro-rated phase.
	BusinessDaysPerVacationDay = 20
	// daysPerYear has no leap-year correction.
	daysPerYear = 365
)

type EntitlementCalculator struct {
	Tiers []SeniorityTier
}

func NewEntitlementCalculator() *EntitlementCalculator {
	return &EntitlementCalculator{Tiers: DefaultTiers}
}

// VacationDaysEntitled computes the vacation days an employee is entitled to
// for the year containing today. Seniority is measured to Dec 31 of that year.
func (c *EntitlementCalculator) VacationDaysEntitled(emp Employee, today generic.TimePoint) (int, error) {
	if emp.HireDate == nil || emp.HireDate.IsZero() {
		return 0, fmt.Errorf("%w: employee %s", generic.ErrMissingEmploymentRecord, emp.ID)
	}

	yearEnd := generic.EndOfYear(today.Year())
	tenure := generic.DaysBetween(*emp.HireDate, yearEnd)

	if tenure < ProbationDays {
		worked := generic.Days(generic.BusinessDaysBetween(*emp.HireDate, yearEnd))
		return worked.Div(decimal.NewFromInt(BusinessDaysPerVacationDay)).Floor().Int(), nil
	}

	return c.daysForYears(tenure / daysPerYear), nil
}

// SeniorityYears is whole years from hire date to the year end of today.
func SeniorityYears(hire, today generic.TimePoint) int {
	return generic.DaysBetween(hire, generic.EndOfYear(today.Year())) / daysPerYear
}

func (c *EntitlementCalculator) daysForYears(years int) int {
	tiers := c.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	for _, t := range tiers {
		if t.MaxYears == nil || years <= *t.MaxYears {
			return t.Days
		}
	}
	return tiers[len(tiers)-1].Days
}
