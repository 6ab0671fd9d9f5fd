/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the license domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags, checked by
  Handler.decode before any domain call. Dates are YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON, the policy wire format
*/
package api

import (
	"time"

	"github.com/warp/license-engine/factory"
	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id,omitempty"`
	Email      string `json:"email,omitempty"`
	HireDate   string `json:"hire_date,omitempty"`
}

// CreateEmployeeRequest creates or replaces an employee record.
type CreateEmployeeRequest struct {
	ID         string `json:"id" validate:"required,max=64"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	NationalID string `json:"national_id" validate:"omitempty,max=32"`
	Email      string `json:"email" validate:"omitempty,email"`
	HireDate   string `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
}

func toEmployeeDTO(e license.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         string(e.ID),
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		NationalID: e.NationalID,
		Email:      e.Email,
		HireDate:   dateString(e.HireDate),
	}
}

// =============================================================================
// POLICIES
// =============================================================================

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	factory.PolicyJSON
	Deleted bool `json:"deleted,omitempty"`
}

func toPolicyDTO(p license.Policy) PolicyDTO {
	return PolicyDTO{PolicyJSON: factory.ToJSON(p), Deleted: p.Deleted}
}

// =============================================================================
// REQUESTS
// =============================================================================

// DocumentRequest is an uploaded certificate. Content is the document body;
// JSON carries it as base64.
type DocumentRequest struct {
	Ref         string `json:"ref" validate:"max=255"`
	ContentType string `json:"content_type" validate:"omitempty,max=100"`
	Content     []byte `json:"content" validate:"required"`
}

func (d *DocumentRequest) toDocument() *license.Document {
	if d == nil {
		return nil
	}
	ct := d.ContentType
	if ct == "" {
		ct = "text/plain"
	}
	return &license.Document{Ref: d.Ref, ContentType: ct, Content: d.Content}
}

// SubmitRequestDTO is the body of POST /api/employees/{id}/requests.
type SubmitRequestDTO struct {
	PolicyID    string           `json:"policy_id" validate:"required"`
	StartDate   string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string           `json:"end_date" validate:"required,datetime=2006-01-02"`
	Information string           `json:"information" validate:"max=2000"`
	Certificate *DocumentRequest `json:"certificate,omitempty" validate:"omitempty"`
}

// UpdateRequestDTO is the body of PUT /api/requests/{id}.
type UpdateRequestDTO struct {
	PolicyID    string           `json:"policy_id,omitempty"`
	StartDate   string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string           `json:"end_date" validate:"required,datetime=2006-01-02"`
	Information *string          `json:"information,omitempty" validate:"omitempty,max=2000"`
	Certificate *DocumentRequest `json:"certificate,omitempty" validate:"omitempty"`
	ActorID     string           `json:"actor_id,omitempty"`
}

// AttachCertificateDTO is the body of PUT /api/requests/{id}/certificate.
type AttachCertificateDTO struct {
	DocumentRequest
	ActorID string `json:"actor_id,omitempty"`
}

// EvaluateRequestDTO is the body of POST /api/requests/{id}/evaluate.
type EvaluateRequestDTO struct {
	Decision    string `json:"decision" validate:"required"`
	Comment     string `json:"comment" validate:"max=2000"`
	EvaluatorID string `json:"evaluator_id" validate:"required"`
}

type CertificateDTO struct {
	ID          string    `json:"id"`
	DocumentRef string    `json:"document_ref,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Validated   bool      `json:"validated"`
}

// RequestDTO is a request with its status and live certificate.
type RequestDTO struct {
	ID                string          `json:"id"`
	EmployeeID        string          `json:"employee_id"`
	PolicyID          string          `json:"policy_id"`
	StartDate         string          `json:"start_date"`
	EndDate           string          `json:"end_date"`
	RequiredDays      int             `json:"required_days"`
	RequestDate       string          `json:"request_date"`
	ClosingDate       string          `json:"closing_date,omitempty"`
	EvaluatorID       string          `json:"evaluator_id,omitempty"`
	Information       string          `json:"information,omitempty"`
	State             string          `json:"state"`
	EvaluationDate    string          `json:"evaluation_date,omitempty"`
	EvaluationComment string          `json:"evaluation_comment,omitempty"`
	Certificate       *CertificateDTO `json:"certificate,omitempty"`
}

func toRequestDTO(d license.RequestDetail) RequestDTO {
	r := d.Request
	dto := RequestDTO{
		ID:                string(r.ID),
		EmployeeID:        string(r.EmployeeID),
		PolicyID:          string(r.PolicyID),
		StartDate:         r.StartDate.String(),
		EndDate:           r.EndDate.String(),
		RequiredDays:      r.RequiredDays,
		RequestDate:       r.RequestDate.String(),
		ClosingDate:       dateString(r.ClosingDate),
		EvaluatorID:       r.EvaluatorID,
		Information:       r.Information,
		State:             string(d.Status.State),
		EvaluationDate:    dateString(d.Status.EvaluationDate),
		EvaluationComment: d.Status.EvaluationComment,
	}
	if c := d.Certificate; c != nil {
		dto.Certificate = &CertificateDTO{
			ID:          c.ID,
			DocumentRef: c.DocumentRef,
			ContentType: c.ContentType,
			UploadedAt:  c.UploadedAt,
			Validated:   c.Validated,
		}
	}
	return dto
}

// OutcomeDTO answers create, update and attach. A policy rejection is sent
// with 422 and Accepted false.
type OutcomeDTO struct {
	Accepted    bool                    `json:"accepted"`
	Reason      string                  `json:"reason,omitempty"`
	Message     string                  `json:"message,omitempty"`
	Request     *RequestDTO             `json:"request,omitempty"`
	Suggestions []license.CategoryScore `json:"suggestions,omitempty"`
}

func toOutcomeDTO(o license.Outcome) OutcomeDTO {
	if !o.Result.OK() {
		return OutcomeDTO{Reason: string(o.Result.Reason), Message: o.Result.Message}
	}
	req := toRequestDTO(o.Detail)
	return OutcomeDTO{Accepted: true, Request: &req, Suggestions: o.Suggestions}
}

type AuditEntryDTO struct {
	At      time.Time `json:"at"`
	ActorID string    `json:"actor_id,omitempty"`
	Action  string    `json:"action"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Comment string    `json:"comment,omitempty"`
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO reports day amounts as decimal strings. Entitled and Remaining
// are absent when the policy has no day cap.
type BalanceDTO struct {
	EmployeeID    string `json:"employee_id"`
	PolicyID      string `json:"policy_id"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
	Entitled      string `json:"entitled,omitempty"`
	Consumed      string `json:"consumed"`
	Remaining     string `json:"remaining,omitempty"`
	ApprovedCount int    `json:"approved_count"`
	Quota         *int   `json:"quota,omitempty"`
}

func toBalanceDTO(b license.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:    string(b.EmployeeID),
		PolicyID:      string(b.PolicyID),
		PeriodStart:   b.Period.Start.String(),
		PeriodEnd:     b.Period.End.String(),
		Entitled:      amountString(b.Entitled),
		Consumed:      b.Consumed.Value.String(),
		Remaining:     amountString(b.Remaining),
		ApprovedCount: b.ApprovedCount,
		Quota:         b.Quota,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

func dateString(d *generic.TimePoint) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func amountString(a *generic.Amount) string {
	if a == nil {
		return ""
	}
	return a.Value.String()
}
