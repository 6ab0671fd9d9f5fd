/*
Package license implements the leave ("license") request engine.

PURPOSE:
  Validates leave requests against per-category policy, computes
  tenure-dependent vacation entitlement, drives the request lifecycle from
  submission to resolution (including time-driven expiration when a
  certificate never arrives) and checks that certificate text plausibly
  belongs to the request it is attached to.

KEY CONCEPTS IN THIS FILE (types.go):
  - Policy:      Constraint set for one leave category
  - Employee:    Identity and hire date used by entitlement and certificate checks
  - Request:     Dated leave request; RequiredDays is always derived from dates
  - Status:      1:1 lifecycle record of a request
  - Certificate: Optional supporting document with its extracted text

COMPONENTS:
  catalog.go      PolicyCatalog
  entitlement.go  EntitlementCalculator
  usage.go        UsageLedger
  validation.go   ValidationEngine
  consistency.go  CertificateConsistencyChecker
  lifecycle.go    LifecycleStateMachine
  sweeper.go      ExpirationSweeper
  service.go      RequestService (transactional orchestration)

SEE ALSO:
  - generic/: Dates, periods, day amounts, errors
  - store/sqlite: Persistent implementation of Store and Catalog
*/
package license

import (
	"fmt"
	"time"

	"github.com/warp/license-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	PolicyID   string
	EmployeeID string
	RequestID  string
)

// Category is the stable key of a leave type. Business rules that single out
// a category (vacation entitlement, certificate exemptions) key on it rather
// than on the display name.
type Category string

const (
	CategoryVacation             Category = "vacation"
	CategoryBirth                Category = "birth"
	CategoryStudy                Category = "study"
	CategoryMaternity            Category = "maternity"
	CategoryPrenatalCheckup      Category = "prenatal_checkup"
	CategoryWorkAccident         Category = "work_accident"
	CategorySickLeave            Category = "sick_leave"
	CategoryMarriage             Category = "marriage"
	CategoryPremarital           Category = "premarital_procedures"
	CategoryChildMarriage        Category = "child_marriage"
	CategoryFamilyAssistance     Category = "family_assistance"
	CategoryBereavementA         Category = "bereavement_a"
	CategoryBereavementB         Category = "bereavement_b"
	CategoryBloodDonation        Category = "blood_donation"
	CategoryRelocation           Category = "relocation"
	CategoryPublicDuty           Category = "public_duty"
	CategoryMonthlyHour          Category = "monthly_hour"
	CategoryBirthday             Category = "birthday"
	CategoryUnionMeeting         Category = "union_meeting"
	CategoryUnionRepresentative  Category = "union_representative"
	CategoryExtraordinaryMeeting Category = "extraordinary_meeting"
	CategoryOther                Category = "other"
)

// =============================================================================
// POLICY
// =============================================================================

// Policy is the constraint set of one leave category.
// Nil pointer fields mean "no limit".
type Policy struct {
	ID          PolicyID
	Category    Category
	Name        string
	Description string

	RequiresCertificate bool
	// RequiresImmediateCertificate rejects submissions that arrive without one.
	RequiresImmediateCertificate bool
	// CertificateToleranceDays is only read when RequiresCertificate is true.
	CertificateToleranceDays *int

	MinAdvanceNoticeDays       int
	TotalDaysGrantedPerPeriod  *int
	MaxConsecutiveDays         *int
	YearlyApprovedRequestQuota *int

	// Period is the accounting window for allotments and quotas.
	Period generic.PeriodConfig

	Deleted bool
}

// Validate checks the policy definition itself.
func (p Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", generic.ErrMalformedPolicy)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", generic.ErrMalformedPolicy)
	}
	if p.MinAdvanceNoticeDays < 0 {
		return fmt.Errorf("%w: min advance notice must be >= 0", generic.ErrMalformedPolicy)
	}
	for field, v := range map[string]*int{
		"certificate tolerance": p.CertificateToleranceDays,
		"total days":            p.TotalDaysGrantedPerPeriod,
		"max consecutive days":  p.MaxConsecutiveDays,
		"yearly quota":          p.YearlyApprovedRequestQuota,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must be >= 0", generic.ErrMalformedPolicy, field)
		}
	}
	if p.RequiresImmediateCertificate && !p.RequiresCertificate {
		return fmt.Errorf("%w: immediate certificate implies certificate required", generic.ErrMalformedPolicy)
	}
	return nil
}

// IsVacation reports whether entitlement is computed from seniority.
func (p Policy) IsVacation() bool { return p.Category == CategoryVacation }

// Limit is a helper for building policies with optional limits.
func Limit(n int) *int { return &n }

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID         EmployeeID
	FirstName  string
	LastName   string
	NationalID string
	Email      string
	HireDate   *generic.TimePoint
}

func (e Employee) FullName() string { return e.FirstName + " " + e.LastName }

// =============================================================================
// REQUEST
// =============================================================================

type Request struct {
	ID           RequestID
	EmployeeID   EmployeeID
	PolicyID     PolicyID
	StartDate    generic.TimePoint
	EndDate      generic.TimePoint
	RequiredDays int
	RequestDate  generic.TimePoint
	ClosingDate  *generic.TimePoint
	EvaluatorID  string
	Information  string
	Deleted      bool
}

// NewRequest builds a request and derives RequiredDays from the interval.
func NewRequest(id RequestID, employeeID EmployeeID, policyID PolicyID, start, end, requestDate generic.TimePoint, information string) (Request, error) {
	r := Request{
		ID:          id,
		EmployeeID:  employeeID,
		PolicyID:    policyID,
		RequestDate: requestDate,
		Information: information,
	}
	if err := r.Reschedule(start, end); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Reschedule changes the interval and recomputes RequiredDays.
func (r *Request) Reschedule(start, end generic.TimePoint) error {
	if end.Before(start) {
		return fmt.Errorf("%w: %s > %s", generic.ErrInvalidInterval, start, end)
	}
	r.StartDate = start
	r.EndDate = end
	r.RequiredDays = generic.InclusiveDays(start, end)
	return nil
}

// Interval returns the requested days as a closed period.
func (r Request) Interval() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// =============================================================================
// STATUS
// =============================================================================

type State string

const (
	StateAwaitingDocument State = "awaiting_document"
	StatePending          State = "pending"
	StateApproved         State = "approved"
	StateRejected         State = "rejected"
	StateExpired          State = "expired"
)

// Status is the lifecycle record of one request.
type Status struct {
	RequestID         RequestID
	State             State
	EvaluationDate    *generic.TimePoint
	EvaluationComment string
}

// =============================================================================
// CERTIFICATE
// =============================================================================

// Certificate is the supporting document of a request. DocumentRef is opaque
// to the engine; Text is what the extractor produced from the raw document.
type Certificate struct {
	ID          string
	RequestID   RequestID
	DocumentRef string
	ContentType string
	Text        string
	UploadedAt  time.Time
	Validated   bool
	Deleted     bool
}

// Document is a certificate as submitted, before extraction.
type Document struct {
	Ref         string
	ContentType string
	Content     []byte
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntry records who moved a request and how.
type AuditEntry struct {
	RequestID RequestID
	At        time.Time
	ActorID   string
	Action    AuditAction
	From      State
	To        State
	Comment   string
}

type AuditAction string

const (
	AuditCreated             AuditAction = "created"
	AuditUpdated             AuditAction = "updated"
	AuditEvaluated           AuditAction = "evaluated"
	AuditCertificateAttached AuditAction = "certificate_attached"
	AuditExpired             AuditAction = "expired"
	AuditRetired             AuditAction = "retired"
)
