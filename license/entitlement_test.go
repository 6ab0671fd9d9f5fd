package license_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
)

// =============================================================================
// SENIORITY TIERS
// =============================================================================

func TestEntitlement_SeniorityTiers(t *testing.T) {
	today := date(2025, time.March, 3)
	yearEnd := generic.EndOfYear(2025)
	calc := license.NewEntitlementCalculator()

	tests := []struct {
		years int
		want  int
	}{
		{1, 14},
		{5, 14},
		{6, 21},
		{10, 21},
		{11, 28},
		{20, 28},
		{21, 35},
		{40, 35},
	}
	for _, tt := range tests {
		// Exactly tt.years * 365 days of tenure at year end.
		hire := yearEnd.AddDays(-365 * tt.years)
		emp := license.Employee{ID: "e", HireDate: &hire}

		got, err := calc.VacationDaysEntitled(emp, today)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "years=%d", tt.years)
		assert.Equal(t, tt.years, license.SeniorityYears(hire, today))
	}
}

func TestEntitlement_SixYearsBeforeYearEnd(t *testing.T) {
	// GIVEN: Hired exactly six calendar years before Dec 31
	today := date(2025, time.March, 3)
	hire := generic.EndOfYear(2025).AddYears(-6)
	emp := license.Employee{ID: "e", HireDate: &hire}

	// THEN: Six whole years, second tier
	got, err := license.NewEntitlementCalculator().VacationDaysEntitled(emp, today)
	require.NoError(t, err)
	assert.Equal(t, 21, got)
}

// =============================================================================
// PRO-RATED FIRST YEAR
// =============================================================================

func TestEntitlement_ProRatedBelow180Days(t *testing.T) {
	// GIVEN: Hired 90 days before year end (2025-10-02, a Thursday)
	//   65 business days from hire date to Dec 31 inclusive
	// THEN: floor(65 / 20) = 3
	hire := generic.EndOfYear(2025).AddDays(-90)
	emp := license.Employee{ID: "e", HireDate: &hire}

	got, err := license.NewEntitlementCalculator().VacationDaysEntitled(emp, date(2025, time.October, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestEntitlement_DiscontinuityAt180Days(t *testing.T) {
	calc := license.NewEntitlementCalculator()
	yearEnd := generic.EndOfYear(2025)
	today := date(2025, time.July, 1)

	// 179 days: 128 business days, 6 vacation days
	below := yearEnd.AddDays(-179)
	got, err := calc.VacationDaysEntitled(license.Employee{HireDate: &below}, today)
	require.NoError(t, err)
	assert.Equal(t, 6, got)

	// 180 days: zero whole years, first tier
	at := yearEnd.AddDays(-180)
	got, err = calc.VacationDaysEntitled(license.Employee{HireDate: &at}, today)
	require.NoError(t, err)
	assert.Equal(t, 14, got)
}

func TestEntitlement_MissingHireDate(t *testing.T) {
	_, err := license.NewEntitlementCalculator().VacationDaysEntitled(
		license.Employee{ID: "no-record"}, date(2025, time.March, 3))
	require.ErrorIs(t, err, generic.ErrMissingEmploymentRecord)
	assert.True(t, generic.IsUnprocessable(err))
}

func TestEntitlement_CustomTiers(t *testing.T) {
	calc := &license.EntitlementCalculator{Tiers: []license.SeniorityTier{
		{MaxYears: license.Limit(2), Days: 10},
		{Days: 15},
	}}
	hire := generic.EndOfYear(2025).AddDays(-365 * 3)

	got, err := calc.VacationDaysEntitled(license.Employee{HireDate: &hire}, date(2025, time.March, 3))
	require.NoError(t, err)
	assert.Equal(t, 15, got)
}
