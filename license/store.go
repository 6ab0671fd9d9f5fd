/*
store.go - Persistence ports of the license engine

PURPOSE:
  Defines what RequestService and ExpirationSweeper need from storage.
  Implementations live in store/sqlite (production) and store/memory (tests).

SOFT DELETE:
  Requests and certificates are never removed. Reads hide soft-deleted rows:
  GetRequest on a retired request returns ErrRequestNotFound and
  GetCertificate returns nil.

COMPARE-AND-SET:
  SetStatus only writes when the current state is one of change.From.
  Otherwise it returns *generic.IllegalTransitionError carrying the state it
  found, so two evaluators racing on one request cannot both win.

ATOMICITY:
  TxStore.WithTx runs fn against a transaction-scoped Store. Everything fn
  writes commits together or not at all. Reads through the scoped Store see
  the transaction's own writes.

SEE ALSO:
  - store/sqlite/sqlite.go
  - store/memory/memory.go
*/
package license

import (
	"context"

	"github.com/warp/license-engine/generic"
)

// =============================================================================
// PORTS
// =============================================================================

// RequestFilter selects requests for listing. Zero fields do not filter.
// Limit 0 means no limit.
type RequestFilter struct {
	EmployeeID EmployeeID
	PolicyID   PolicyID
	State      State
	Limit      int
	Offset     int
}

// RequestDetail is a request with its status and live certificate.
type RequestDetail struct {
	Request     Request
	Status      Status
	Certificate *Certificate
}

// StatusChange is a compare-and-set on a request status.
type StatusChange struct {
	RequestID      RequestID
	From           []State
	To             State
	EvaluationDate *generic.TimePoint
	Comment        string
}

type EmployeeStore interface {
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error)
	SaveEmployee(ctx context.Context, e Employee) error
}

type Store interface {
	ApprovedReader
	EmployeeStore

	GetRequest(ctx context.Context, id RequestID) (Request, error)
	GetStatus(ctx context.Context, id RequestID) (Status, error)
	// GetCertificate returns nil when the request has no live certificate.
	GetCertificate(ctx context.Context, id RequestID) (*Certificate, error)
	// ListRequests orders by start date, newest first. Certificates are not loaded.
	ListRequests(ctx context.Context, f RequestFilter) ([]RequestDetail, error)

	InsertRequest(ctx context.Context, r Request, s Status) error
	UpdateRequest(ctx context.Context, r Request) error
	SetStatus(ctx context.Context, c StatusChange) error
	// PutCertificate soft-deletes any live certificate of the request first.
	PutCertificate(ctx context.Context, c Certificate) error
	DeleteCertificate(ctx context.Context, id RequestID) error
	// RetireRequest soft-deletes the request and its certificate.
	RetireRequest(ctx context.Context, id RequestID) error

	// RecordReminder returns true the first time (request, kind, day) is seen.
	RecordReminder(ctx context.Context, id RequestID, kind ReminderKind, day generic.TimePoint) (bool, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, id RequestID) ([]AuditEntry, error)
}

type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
