package license

import (
	"slices"

	"github.com/warp/license-engine/generic"
)

// =============================================================================
// LIFECYCLE STATE MACHINE
// =============================================================================
//
//   AwaitingDocument --(certificate attached)--> Pending
//   Pending          --(approve)---------------> Approved
//   Pending          --(reject)----------------> Rejected
//   Pending          --(mark missing document)-> AwaitingDocument
//   AwaitingDocument --(deadline passed)-------> Expired
//
// Approved, Rejected and Expired are terminal.

// Event names what moves a request between states.
type Event string

const (
	EventAttachCertificate Event = "attach_certificate"
	EventEvaluate          Event = "evaluate"
	EventUpdate            Event = "update"
	EventExpire            Event = "expire"
)

// sources lists the states each event may start from.
var sources = map[Event][]State{
	EventAttachCertificate: {StateAwaitingDocument, StatePending},
	EventEvaluate:          {StatePending},
	EventUpdate:            {StateAwaitingDocument, StatePending},
	EventExpire:            {StateAwaitingDocument},
}

// decisions an evaluator may choose.
var decisions = []State{StateApproved, StateRejected, StateAwaitingDocument}

func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateRejected || s == StateExpired
}

func (s State) Valid() bool {
	switch s {
	case StateAwaitingDocument, StatePending, StateApproved, StateRejected, StateExpired:
		return true
	}
	return false
}

// SourcesFor returns the states from which event is legal.
func SourcesFor(e Event) []State {
	return slices.Clone(sources[e])
}

// CheckTransition returns an IllegalTransitionError when event cannot fire
// from the current state.
func CheckTransition(id RequestID, from State, e Event, to State) error {
	if slices.Contains(sources[e], from) {
		return nil
	}
	return &generic.IllegalTransitionError{RequestID: string(id), From: string(from), To: string(to)}
}

// IsDecision reports whether an evaluator may choose s.
func IsDecision(s State) bool { return slices.Contains(decisions, s) }

// InitialState is assigned after a successful create.
func InitialState(p Policy, hasCertificate bool) State {
	if p.RequiresCertificate && !hasCertificate {
		return StateAwaitingDocument
	}
	return StatePending
}

// StateAfterUpdate recomputes the state of a non-terminal request after an
// update. discard is true when the (possibly new) policy no longer takes a
// certificate and an existing one must be dropped.
func StateAfterUpdate(p Policy, hasCertificate bool) (next State, discard bool) {
	switch {
	case !p.RequiresCertificate:
		return StatePending, hasCertificate
	case !hasCertificate:
		return StateAwaitingDocument, false
	default:
		return StatePending, false
	}
}

// =============================================================================
// CERTIFICATE DEADLINE
// =============================================================================

// ReminderKind identifies a deadline reminder.
type ReminderKind string

const (
	ReminderDueTomorrow ReminderKind = "due_tomorrow"
	ReminderDueToday    ReminderKind = "due_today"
)

// CertificateDeadline is the last day a certificate is accepted. The request
// day counts as the first day of the tolerance window, so tolerances 0 and 1
// both end on the request day and such requests expire the day after.
func CertificateDeadline(requestDate generic.TimePoint, toleranceDays int) generic.TimePoint {
	if toleranceDays <= 0 {
		return requestDate
	}
	return requestDate.AddDays(toleranceDays - 1)
}

// SweepAction is what the expiration sweep does to one request on one day.
type SweepAction int

const (
	SweepNothing SweepAction = iota
	SweepRemindTomorrow
	SweepRemindToday
	SweepExpire
)

// SweepActionFor decides the sweep action for an awaiting request.
func SweepActionFor(deadline, today generic.TimePoint) SweepAction {
	switch {
	case today.After(deadline):
		return SweepExpire
	case today.Equal(deadline):
		return SweepRemindToday
	case today.Equal(deadline.AddDays(-1)):
		return SweepRemindTomorrow
	default:
		return SweepNothing
	}
}
