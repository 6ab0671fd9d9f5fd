/*
validation.go - Policy checks for a candidate request

PURPOSE:
  Decides whether a request is acceptable under its policy. A rejection is
  an ordinary outcome returned as a Result, not an error. Errors are kept
  for conditions that prevent a decision (no hire date for vacation).

CHECK ORDER (first failing check wins):
  1. Vacation cap:       requiredDays > seniority entitlement
  2. Start date:         startDate before today
  3. Period allotment:   requiredDays > total - consumed
  4. Yearly quota:       approved count >= quota
  5. Consecutive days:   requiredDays > max consecutive
  6. Advance notice:     startDate - requestDate < min notice
  7. Immediate document: policy wants the certificate at submission

SIDE EFFECTS:
  None. Persistence and notification belong to RequestService.

SEE ALSO:
  - entitlement.go: Vacation days by seniority
  - usage.go: Consumed days and approved count
*/
package license

import (
	"fmt"

	"github.com/warp/license-engine/generic"
)

// =============================================================================
// RESULT - Ok or Rejected(reason)
// =============================================================================

type ReasonCode string

const (
	ReasonNone                     ReasonCode = ""
	ReasonInsufficientVacationDays ReasonCode = "insufficient_vacation_days"
	ReasonStartDateInPast          ReasonCode = "start_date_in_past"
	ReasonExceedsRemainingDays     ReasonCode = "exceeds_remaining_days"
	ReasonYearlyQuotaReached       ReasonCode = "yearly_quota_reached"
	ReasonExceedsConsecutiveDays   ReasonCode = "exceeds_consecutive_days"
	ReasonInsufficientNotice       ReasonCode = "insufficient_advance_notice"
	ReasonCertificateAtSubmission  ReasonCode = "certificate_required_at_submission"
)

// Result is the outcome of validation. The zero value is Ok.
type Result struct {
	Reason  ReasonCode
	Message string
}

func Ok() Result { return Result{} }

func Rejected(reason ReasonCode, format string, args ...any) Result {
	return Result{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (r Result) OK() bool { return r.Reason == ReasonNone }

// Err converts a rejection for callers that need an error path.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &generic.RejectedError{Reason: string(r.Reason), Message: r.Message}
}

// =============================================================================
// VALIDATION ENGINE
// =============================================================================

// Candidate is everything validation looks at.
type Candidate struct {
	Request        Request
	Policy         Policy
	Employee       Employee
	Usage          Usage
	HasCertificate bool
}

type ValidationEngine struct {
	Entitlement *EntitlementCalculator
}

func NewValidationEngine(ent *EntitlementCalculator) *ValidationEngine {
	if ent == nil {
		ent = NewEntitlementCalculator()
	}
	return &ValidationEngine{Entitlement: ent}
}

// Validate applies the checks in order against today.
func (v *ValidationEngine) Validate(c Candidate, today generic.TimePoint) (Result, error) {
	req, pol := c.Request, c.Policy

	if pol.IsVacation() {
		entitled, err := v.Entitlement.VacationDaysEntitled(c.Employee, today)
		if err != nil {
			return Result{}, err
		}
		if req.RequiredDays > entitled {
			return Rejected(ReasonInsufficientVacationDays,
				"requested %d vacation days, entitled to %d", req.RequiredDays, entitled), nil
		}
	}

	if req.StartDate.Before(today) {
		return Rejected(ReasonStartDateInPast,
			"start date %s is before %s", req.StartDate, today), nil
	}

	if pol.TotalDaysGrantedPerPeriod != nil {
		remaining := *pol.TotalDaysGrantedPerPeriod - c.Usage.DaysConsumed
		if req.RequiredDays > remaining {
			return Rejected(ReasonExceedsRemainingDays,
				"requested %d days, %d remaining in %s", req.RequiredDays, remaining, c.Usage.Period), nil
		}
	}

	if pol.YearlyApprovedRequestQuota != nil && c.Usage.ApprovedCount >= *pol.YearlyApprovedRequestQuota {
		return Rejected(ReasonYearlyQuotaReached,
			"%d of %d approved requests already used", c.Usage.ApprovedCount, *pol.YearlyApprovedRequestQuota), nil
	}

	if pol.MaxConsecutiveDays != nil && req.RequiredDays > *pol.MaxConsecutiveDays {
		return Rejected(ReasonExceedsConsecutiveDays,
			"requested %d consecutive days, maximum is %d", req.RequiredDays, *pol.MaxConsecutiveDays), nil
	}

	notice := generic.DaysBetween(req.RequestDate, req.StartDate)
	if notice < pol.MinAdvanceNoticeDays {
		return Rejected(ReasonInsufficientNotice,
			"%d days of notice, %d required", notice, pol.MinAdvanceNoticeDays), nil
	}

	if pol.RequiresImmediateCertificate && !c.HasCertificate {
		return Rejected(ReasonCertificateAtSubmission,
			"%s requires the certificate at submission", pol.Name), nil
	}

	return Ok(), nil
}
