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
// TEST HELPERS
// =============================================================================

func candidate(t *testing.T, p license.Policy, start, end, requestDate generic.TimePoint) license.Candidate {
	t.Helper()
	req, err := license.NewRequest("req-1", "emp-ana", p.ID, start, end, requestDate, "")
	require.NoError(t, err)
	return license.Candidate{Request: req, Policy: p, Employee: ana()}
}

func validate(t *testing.T, c license.Candidate, today generic.TimePoint) license.Result {
	t.Helper()
	result, err := license.NewValidationEngine(nil).Validate(c, today)
	require.NoError(t, err)
	return result
}

func marriageLike() license.Policy {
	return license.Policy{
		ID:                         "marriage",
		Category:                   license.CategoryMarriage,
		Name:                       "Marriage",
		MinAdvanceNoticeDays:       7,
		MaxConsecutiveDays:         license.Limit(12),
		YearlyApprovedRequestQuota: license.Limit(1),
	}
}

// =============================================================================
// INDIVIDUAL CHECKS
// =============================================================================

func TestValidate_ExceedsConsecutiveDays(t *testing.T) {
	// GIVEN: Notice 7, max 12 consecutive days, quota 1 (none used)
	// WHEN: 15 days requested well in advance
	// THEN: exceeds_consecutive_days
	today := date(2025, time.March, 3)
	c := candidate(t, marriageLike(), date(2025, time.April, 1), date(2025, time.April, 15), today)
	require.Equal(t, 15, c.Request.RequiredDays)

	result := validate(t, c, today)
	assert.Equal(t, license.ReasonExceedsConsecutiveDays, result.Reason)
	assert.False(t, result.OK())
}

func TestValidate_VacationWithinEntitlement(t *testing.T) {
	// GIVEN: Hired exactly 6 years before year end, entitled to 21 days
	// WHEN: 20 vacation days requested
	// THEN: Accepted
	today := date(2025, time.March, 3)
	vacation := license.DefaultPolicies()[0]
	c := candidate(t, vacation, date(2025, time.April, 1), date(2025, time.April, 20), today)
	hire := generic.EndOfYear(2025).AddYears(-6)
	c.Employee.HireDate = &hire

	assert.True(t, validate(t, c, today).OK())
}

func TestValidate_VacationBeyondProRatedEntitlement(t *testing.T) {
	// GIVEN: Hired 90 days before year end, entitled to 3 days
	// WHEN: 5 vacation days requested
	// THEN: insufficient_vacation_days
	today := date(2025, time.October, 6)
	vacation := license.DefaultPolicies()[0]
	c := candidate(t, vacation, date(2025, time.October, 20), date(2025, time.October, 24), today)
	hire := generic.EndOfYear(2025).AddDays(-90)
	c.Employee.HireDate = &hire

	assert.Equal(t, license.ReasonInsufficientVacationDays, validate(t, c, today).Reason)
}

func TestValidate_VacationWithoutHireDateIsAnError(t *testing.T) {
	today := date(2025, time.March, 3)
	c := candidate(t, license.DefaultPolicies()[0], date(2025, time.April, 1), date(2025, time.April, 2), today)
	c.Employee.HireDate = nil

	_, err := license.NewValidationEngine(nil).Validate(c, today)
	require.ErrorIs(t, err, generic.ErrMissingEmploymentRecord)
}

func TestValidate_StartDateInPast(t *testing.T) {
	today := date(2025, time.March, 3)
	p := license.Policy{ID: "p", Name: "P"}
	c := candidate(t, p, date(2025, time.March, 2), date(2025, time.March, 4), today)

	assert.Equal(t, license.ReasonStartDateInPast, validate(t, c, today).Reason)

	// Starting today is fine
	c = candidate(t, p, today, today, today)
	assert.True(t, validate(t, c, today).OK())
}

func TestValidate_ExceedsRemainingDays(t *testing.T) {
	today := date(2025, time.March, 3)
	p := license.Policy{ID: "study", Name: "Study", TotalDaysGrantedPerPeriod: license.Limit(24)}
	c := candidate(t, p, date(2025, time.March, 10), date(2025, time.March, 14), today)

	// 20 consumed, 4 left, 5 requested
	c.Usage = license.Usage{DaysConsumed: 20, ApprovedCount: 5}
	assert.Equal(t, license.ReasonExceedsRemainingDays, validate(t, c, today).Reason)

	// 19 consumed, exactly 5 left
	c.Usage.DaysConsumed = 19
	assert.True(t, validate(t, c, today).OK())
}

func TestValidate_YearlyQuotaReached(t *testing.T) {
	today := date(2025, time.March, 3)
	p := license.Policy{ID: "p", Name: "P", YearlyApprovedRequestQuota: license.Limit(2)}
	c := candidate(t, p, date(2025, time.March, 10), date(2025, time.March, 10), today)

	c.Usage.ApprovedCount = 1
	assert.True(t, validate(t, c, today).OK())

	c.Usage.ApprovedCount = 2
	assert.Equal(t, license.ReasonYearlyQuotaReached, validate(t, c, today).Reason)
}

func TestValidate_AdvanceNotice(t *testing.T) {
	today := date(2025, time.March, 3)
	p := license.Policy{ID: "p", Name: "P", MinAdvanceNoticeDays: 7}

	// 6 days of notice
	c := candidate(t, p, date(2025, time.March, 9), date(2025, time.March, 9), today)
	result := validate(t, c, today)
	assert.Equal(t, license.ReasonInsufficientNotice, result.Reason)
	assert.Contains(t, result.Message, "6 days of notice")

	// Exactly 7 days
	c = candidate(t, p, date(2025, time.March, 10), date(2025, time.March, 10), today)
	assert.True(t, validate(t, c, today).OK())
}

func TestValidate_ImmediateCertificate(t *testing.T) {
	today := date(2025, time.March, 3)
	p := license.Policy{
		ID: "accident", Name: "Work accident",
		RequiresCertificate: true, RequiresImmediateCertificate: true,
		CertificateToleranceDays: license.Limit(0),
	}
	c := candidate(t, p, today, today, today)

	assert.Equal(t, license.ReasonCertificateAtSubmission, validate(t, c, today).Reason)

	c.HasCertificate = true
	assert.True(t, validate(t, c, today).OK())
}

// =============================================================================
// CHECK ORDER
// =============================================================================

func TestValidate_FirstFailingCheckWins(t *testing.T) {
	today := date(2025, time.March, 3)

	tests := []struct {
		name  string
		setup func(c *license.Candidate)
		want  license.ReasonCode
	}{
		{
			name: "quota before consecutive",
			setup: func(c *license.Candidate) {
				c.Usage.ApprovedCount = 1
			},
			want: license.ReasonYearlyQuotaReached,
		},
		{
			name: "remaining before quota",
			setup: func(c *license.Candidate) {
				c.Policy.TotalDaysGrantedPerPeriod = license.Limit(10)
				c.Usage.ApprovedCount = 1
			},
			want: license.ReasonExceedsRemainingDays,
		},
		{
			name: "past start before remaining",
			setup: func(c *license.Candidate) {
				c.Policy.TotalDaysGrantedPerPeriod = license.Limit(10)
				c.Request.StartDate = date(2025, time.March, 1)
			},
			want: license.ReasonStartDateInPast,
		},
		{
			name: "consecutive before notice",
			setup: func(c *license.Candidate) {
				c.Request.RequestDate = date(2025, time.March, 30)
			},
			want: license.ReasonExceedsConsecutiveDays,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate(t, marriageLike(), date(2025, time.April, 1), date(2025, time.April, 15), today)
			tt.setup(&c)
			assert.Equal(t, tt.want, validate(t, c, today).Reason)
		})
	}
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, license.Ok().Err())

	err := license.Rejected(license.ReasonYearlyQuotaReached, "%d of %d", 2, 2).Err()
	require.ErrorIs(t, err, generic.ErrValidationRejected)

	var rejected *generic.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "yearly_quota_reached", rejected.Reason)
	assert.Equal(t, "2 of 2", rejected.Message)
}

func TestNewRequest_DerivesRequiredDays(t *testing.T) {
	today := date(2025, time.March, 3)

	req, err := license.NewRequest("r", "e", "p", date(2025, time.March, 10), date(2025, time.March, 10), today, "")
	require.NoError(t, err)
	assert.Equal(t, 1, req.RequiredDays)

	req, err = license.NewRequest("r", "e", "p", date(2025, time.February, 27), date(2025, time.March, 2), today, "")
	require.NoError(t, err)
	assert.Equal(t, 4, req.RequiredDays)

	_, err = license.NewRequest("r", "e", "p", date(2025, time.March, 10), date(2025, time.March, 9), today, "")
	assert.ErrorIs(t, err, generic.ErrInvalidInterval)
}
