package license_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/license"
)

var newYear = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

// awaitingBirthRequest is requested on 2024-01-01 under a policy with three
// days of certificate tolerance, so its deadline is 2024-01-03.
func awaitingBirthRequest(t *testing.T, f *fixture) license.RequestDetail {
	t.Helper()
	d := f.create(t, "birth", date(2024, time.January, 1), date(2024, time.January, 2), nil)
	require.Equal(t, license.StateAwaitingDocument, d.Status.State)
	return d
}

// =============================================================================
// REMINDERS AND EXPIRATION
// =============================================================================

func TestSweep_RemindsThenExpires(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()
	d := awaitingBirthRequest(t, f)
	sweeper := f.sweeper()

	// Request day: nothing due
	report, err := sweeper.Run(ctx, date(2024, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Zero(t, report.RemindersSent)

	// Day before the deadline
	report, err = sweeper.Run(ctx, date(2024, time.January, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, report.RemindersSent)

	// Deadline day
	report, err = sweeper.Run(ctx, date(2024, time.January, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, report.RemindersSent)
	assert.Zero(t, report.Expired)

	got, err := f.svc.Get(ctx, d.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StateAwaitingDocument, got.Status.State)

	// Past the deadline
	report, err = sweeper.Run(ctx, date(2024, time.January, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	got, err = f.svc.Get(ctx, d.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StateExpired, got.Status.State)
	assert.Equal(t, license.ExpiredComment, got.Status.EvaluationComment)
	require.NotNil(t, got.Request.ClosingDate)
	assert.Equal(t, "2024-01-05", got.Request.ClosingDate.String())

	assert.Equal(t, []license.EventKind{
		license.EventAwaitingDocument,
		license.EventDueTomorrow,
		license.EventDueToday,
		license.EventExpired,
	}, f.notifier.kinds())

	history, err := f.svc.History(ctx, d.Request.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, license.AuditExpired, last.Action)
	assert.Equal(t, "system", last.ActorID)
}

func TestSweep_SameDayTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()
	awaitingBirthRequest(t, f)
	sweeper := f.sweeper()

	for i := 0; i < 2; i++ {
		_, err := sweeper.Run(ctx, date(2024, time.January, 3))
		require.NoError(t, err)
	}
	assert.Equal(t, []license.EventKind{license.EventAwaitingDocument, license.EventDueToday}, f.notifier.kinds())

	first, err := sweeper.Run(ctx, date(2024, time.January, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Expired)

	second, err := sweeper.Run(ctx, date(2024, time.January, 5))
	require.NoError(t, err)
	assert.Zero(t, second.Examined)
	assert.Zero(t, second.Expired)
}

func TestSweep_CertificateArrivedInTime(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()
	d := awaitingBirthRequest(t, f)

	note := "Partida de nacimiento. Padre: Ana Perez DNI 30111222. Fecha 01/01/2024"
	_, err := f.svc.AttachCertificate(ctx, d.Request.ID, *text(note), "emp-ana")
	require.NoError(t, err)

	report, err := f.sweeper().Run(ctx, date(2024, time.January, 9))
	require.NoError(t, err)
	assert.Zero(t, report.Examined)

	got, err := f.svc.Get(ctx, d.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatePending, got.Status.State)
}

// =============================================================================
// PARTIAL FAILURE
// =============================================================================

func TestSweep_ContinuesPastBrokenRequests(t *testing.T) {
	// GIVEN: Three awaiting requests past their deadline
	//   one under a policy the sweeper's catalog no longer knows
	//   one under a policy without a tolerance
	// WHEN: Swept
	// THEN: The healthy one expires and the other two are counted as failures
	f := newFixture(t, newYear)
	ctx := context.Background()

	require.NoError(t, f.catalog.SavePolicy(ctx, license.Policy{
		ID: "court", Category: license.CategoryPublicDuty, Name: "Court summons",
		RequiresCertificate: true, CertificateToleranceDays: license.Limit(1),
	}))
	require.NoError(t, f.catalog.SavePolicy(ctx, license.Policy{
		ID: "loose", Category: license.CategoryOther, Name: "Loose",
		RequiresCertificate: true,
	}))

	healthy := awaitingBirthRequest(t, f)
	f.create(t, "court", date(2024, time.January, 1), date(2024, time.January, 1), nil)
	f.create(t, "loose", date(2024, time.January, 1), date(2024, time.January, 1), nil)

	catalog := license.NewMemoryCatalog(license.DefaultPolicies()...)
	require.NoError(t, catalog.SavePolicy(ctx, license.Policy{
		ID: "loose", Category: license.CategoryOther, Name: "Loose", RequiresCertificate: true,
	}))
	sweeper := license.NewExpirationSweeper(f.store, catalog, f.notifier, nil, nil)

	report, err := sweeper.Run(ctx, date(2024, time.January, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 2, report.Failures)

	got, err := f.svc.Get(ctx, healthy.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StateExpired, got.Status.State)
}

func TestSweep_CancelledContextStops(t *testing.T) {
	f := newFixture(t, newYear)
	awaitingBirthRequest(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sweeper().Run(ctx, date(2024, time.January, 5))
	assert.ErrorIs(t, err, context.Canceled)
}
