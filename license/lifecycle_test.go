package license_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
)

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestCheckTransition(t *testing.T) {
	all := []license.State{
		license.StateAwaitingDocument,
		license.StatePending,
		license.StateApproved,
		license.StateRejected,
		license.StateExpired,
	}
	allowed := map[license.Event][]license.State{
		license.EventAttachCertificate: {license.StateAwaitingDocument, license.StatePending},
		license.EventEvaluate:          {license.StatePending},
		license.EventUpdate:            {license.StateAwaitingDocument, license.StatePending},
		license.EventExpire:            {license.StateAwaitingDocument},
	}

	for event, from := range allowed {
		for _, s := range all {
			err := license.CheckTransition("req-1", s, event, license.StatePending)
			legal := false
			for _, f := range from {
				legal = legal || f == s
			}
			if legal {
				assert.NoError(t, err, "%s from %s", event, s)
				continue
			}
			require.Error(t, err, "%s from %s", event, s)
			assert.True(t, errors.Is(err, generic.ErrIllegalTransition))

			var ite *generic.IllegalTransitionError
			require.ErrorAs(t, err, &ite)
			assert.Equal(t, "req-1", ite.RequestID)
			assert.Equal(t, string(s), ite.From)
		}
	}
}

func TestTerminalStatesAcceptNoEvent(t *testing.T) {
	for _, s := range []license.State{license.StateApproved, license.StateRejected, license.StateExpired} {
		assert.True(t, s.IsTerminal())
		for _, e := range []license.Event{
			license.EventAttachCertificate, license.EventEvaluate, license.EventUpdate, license.EventExpire,
		} {
			assert.Error(t, license.CheckTransition("r", s, e, s))
		}
	}
	assert.False(t, license.StatePending.IsTerminal())
	assert.False(t, license.StateAwaitingDocument.IsTerminal())
}

func TestStateValidityAndDecisions(t *testing.T) {
	assert.True(t, license.StateExpired.Valid())
	assert.False(t, license.State("cancelled").Valid())

	assert.True(t, license.IsDecision(license.StateApproved))
	assert.True(t, license.IsDecision(license.StateRejected))
	assert.True(t, license.IsDecision(license.StateAwaitingDocument))
	assert.False(t, license.IsDecision(license.StateExpired))
	assert.False(t, license.IsDecision(license.StatePending))
}

func TestSourcesFor_ReturnsCopy(t *testing.T) {
	s := license.SourcesFor(license.EventUpdate)
	s[0] = license.StateApproved
	assert.Equal(t, license.StateAwaitingDocument, license.SourcesFor(license.EventUpdate)[0])
}

// =============================================================================
// INITIAL AND UPDATED STATE
// =============================================================================

func TestInitialState(t *testing.T) {
	withCert := license.Policy{RequiresCertificate: true}
	noCert := license.Policy{}

	assert.Equal(t, license.StateAwaitingDocument, license.InitialState(withCert, false))
	assert.Equal(t, license.StatePending, license.InitialState(withCert, true))
	assert.Equal(t, license.StatePending, license.InitialState(noCert, false))
	assert.Equal(t, license.StatePending, license.InitialState(noCert, true))
}

func TestStateAfterUpdate(t *testing.T) {
	withCert := license.Policy{RequiresCertificate: true}
	noCert := license.Policy{}

	next, discard := license.StateAfterUpdate(noCert, true)
	assert.Equal(t, license.StatePending, next)
	assert.True(t, discard)

	next, discard = license.StateAfterUpdate(noCert, false)
	assert.Equal(t, license.StatePending, next)
	assert.False(t, discard)

	next, discard = license.StateAfterUpdate(withCert, false)
	assert.Equal(t, license.StateAwaitingDocument, next)
	assert.False(t, discard)

	next, discard = license.StateAfterUpdate(withCert, true)
	assert.Equal(t, license.StatePending, next)
	assert.False(t, discard)
}

// =============================================================================
// DEADLINE AND SWEEP ACTIONS
// =============================================================================

func TestCertificateDeadline(t *testing.T) {
	requested := date(2024, time.January, 1)

	assert.Equal(t, "2024-01-03", license.CertificateDeadline(requested, 3).String())
	assert.Equal(t, "2024-01-01", license.CertificateDeadline(requested, 1).String())
	assert.Equal(t, "2024-01-01", license.CertificateDeadline(requested, 0).String())
	assert.Equal(t, "2024-01-07", license.CertificateDeadline(requested, 7).String())
}

func TestCertificateDeadline_ZeroAndOneDayTolerance(t *testing.T) {
	// GIVEN: Requests filed 2024-01-01 with tolerance 0 and 1
	// WHEN: Swept on the request day and the day after
	// THEN: Both are due that same day and both expire the next day
	requested := date(2024, time.January, 1)

	for _, tolerance := range []int{0, 1} {
		deadline := license.CertificateDeadline(requested, tolerance)
		assert.True(t, deadline.Equal(requested), "tolerance %d", tolerance)
		assert.Equal(t, license.SweepRemindToday, license.SweepActionFor(deadline, requested), "tolerance %d", tolerance)
		assert.Equal(t, license.SweepExpire, license.SweepActionFor(deadline, requested.AddDays(1)), "tolerance %d", tolerance)
	}
	assert.Equal(t, "2024-01-02", license.CertificateDeadline(requested, 2).String())
}

func TestSweepActionFor(t *testing.T) {
	// Requested 2024-01-01 with 3 days tolerance
	deadline := license.CertificateDeadline(date(2024, time.January, 1), 3)

	tests := []struct {
		today generic.TimePoint
		want  license.SweepAction
	}{
		{date(2024, time.January, 1), license.SweepNothing},
		{date(2024, time.January, 2), license.SweepRemindTomorrow},
		{date(2024, time.January, 3), license.SweepRemindToday},
		{date(2024, time.January, 4), license.SweepExpire},
		{date(2024, time.January, 5), license.SweepExpire},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, license.SweepActionFor(deadline, tt.today), tt.today.String())
	}
}
