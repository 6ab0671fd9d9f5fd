package license

import (
	"context"
	"fmt"

	"github.com/warp/license-engine/generic"
)

// =============================================================================
// USAGE LEDGER - Approved usage per employee and category
// =============================================================================

// Usage is derived, never stored.
type Usage struct {
	Period        generic.Period
	DaysConsumed  int
	ApprovedCount int
}

// ApprovedReader is the read side the ledger aggregates over.
type ApprovedReader interface {
	// ListApproved returns the employee's Approved, non-deleted requests of
	// the policy whose start date falls in period.
	ListApproved(ctx context.Context, employeeID EmployeeID, policyID PolicyID, period generic.Period) ([]Request, error)
}

// UsageLedger is read-only. Construct it over a transaction-scoped store to
// read a snapshot consistent with the write that follows.
type UsageLedger struct {
	reader ApprovedReader
}

func NewUsageLedger(reader ApprovedReader) *UsageLedger {
	return &UsageLedger{reader: reader}
}

// Snapshot aggregates usage in the policy period containing at.
func (l *UsageLedger) Snapshot(ctx context.Context, employeeID EmployeeID, policy Policy, at generic.TimePoint) (Usage, error) {
	period := policy.Period.PeriodFor(at)
	approved, err := l.reader.ListApproved(ctx, employeeID, policy.ID, period)
	if err != nil {
		return Usage{}, fmt.Errorf("load approved requests: %w", err)
	}

	usage := Usage{Period: period}
	for _, r := range approved {
		usage.DaysConsumed += r.RequiredDays
		usage.ApprovedCount++
	}
	return usage, nil
}
