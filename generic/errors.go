/*
errors.go - Centralized error types for the license engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Lookup errors - Unknown policy, request or employee
  2. Input errors - Malformed intervals, malformed policies
  3. Lifecycle errors - Transitions attempted from a disallowed state
  4. Document errors - Certificate text does not match the request

NOT AN ERROR:
  A validation rejection (insufficient notice, quota reached, ...) is an
  ordinary outcome and travels as a license.Result value. ErrValidationRejected
  exists only so the HTTP layer can carry a rejection through an error path.

USAGE:
    if errors.Is(err, generic.ErrIllegalTransition) {
        // someone else already resolved the request
    }

SEE ALSO:
  - license/service.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPolicyNotFound is returned for an unknown or retired category.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrRequestNotFound is returned when a request does not exist or was retired.
	ErrRequestNotFound = errors.New("request not found")

	// ErrEmployeeNotFound is returned when the employee record does not exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrInvalidInterval is returned when the end date precedes the start date.
	ErrInvalidInterval = errors.New("invalid interval: end before start")

	// ErrIllegalTransition is returned when a lifecycle operation is attempted
	// from a state that does not allow it.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrMissingEmploymentRecord is returned when entitlement needs a hire date
	// that the employee record lacks.
	ErrMissingEmploymentRecord = errors.New("missing employment record: no hire date")

	// ErrCertificateInconsistent is returned when certificate text does not
	// name the employee or carry a date inside the requested interval.
	ErrCertificateInconsistent = errors.New("certificate inconsistent with request")

	// ErrCertificateNotRequired is returned when attaching a certificate to a
	// request whose policy does not take one.
	ErrCertificateNotRequired = errors.New("policy does not require a certificate")

	// ErrValidationRejected marks a policy rejection carried as an error.
	ErrValidationRejected = errors.New("request rejected by policy")

	// ErrMalformedPolicy is returned when a policy definition is inconsistent.
	ErrMalformedPolicy = errors.New("malformed policy")

	// ErrInvalidDecision is returned when an evaluation names a state an
	// evaluator may not choose.
	ErrInvalidDecision = errors.New("invalid evaluation decision")

	// ErrUnknownState is returned for a state name outside the lifecycle.
	ErrUnknownState = errors.New("unknown request state")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IllegalTransitionError provides details about a refused state change.
type IllegalTransitionError struct {
	RequestID string
	From      string
	To        string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for request %s: %s -> %s", e.RequestID, e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// CertificateInconsistentError tells which predicate failed.
type CertificateInconsistentError struct {
	RequestID string
	Reason    string // e.g. "date_out_of_range", "identity_mismatch", "no_text"
}

func (e *CertificateInconsistentError) Error() string {
	return fmt.Sprintf("certificate inconsistent for request %s: %s", e.RequestID, e.Reason)
}

func (e *CertificateInconsistentError) Unwrap() error {
	return ErrCertificateInconsistent
}

// RejectedError carries a validation rejection through an error return.
type RejectedError struct {
	Reason  string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return ErrValidationRejected
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrMalformedPolicy) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrUnknownState) ||
		errors.Is(err, ErrCertificateNotRequired)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}

// IsConflict returns true if the request's current state forbids the operation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrIllegalTransition)
}

// IsUnprocessable returns true for outcomes the caller must remediate
// (different request, new certificate, fixed employee record).
func IsUnprocessable(err error) bool {
	return errors.Is(err, ErrValidationRejected) ||
		errors.Is(err, ErrCertificateInconsistent) ||
		errors.Is(err, ErrMissingEmploymentRecord)
}
