package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
	"github.com/warp/license-engine/store/memory"
)

func newTestScheduler(t *testing.T, now time.Time) (*SweepScheduler, *memory.Memory) {
	t.Helper()
	store := memory.New()
	catalog := license.NewMemoryCatalog(license.DefaultPolicies()...)
	s := NewSweepScheduler(license.NewExpirationSweeper(store, catalog, nil, nil, nil), nil)
	s.Now = func() time.Time { return now }
	return s, store
}

// awaitingSince stores a birth request awaiting its certificate since day.
func awaitingSince(t *testing.T, store *memory.Memory, day generic.TimePoint) {
	t.Helper()
	req, err := license.NewRequest("req-1", "emp-ana", "birth", day, day.AddDays(1), day, "")
	require.NoError(t, err)
	require.NoError(t, store.InsertRequest(context.Background(), req, license.Status{State: license.StateAwaitingDocument}))
}

func TestSweepScheduler_RunNow(t *testing.T) {
	// GIVEN: A birth request awaiting its certificate since 2025-03-03
	// WHEN: The scheduler sweeps on 2025-03-10
	// THEN: It expires and LastRun is recorded
	now := time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC)
	s, store := newTestScheduler(t, now)
	ctx := context.Background()

	awaitingSince(t, store, generic.NewTimePoint(2025, time.March, 3))

	assert.True(t, s.LastRun().IsZero())

	report, err := s.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, now, s.LastRun())

	st, err := store.GetStatus(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, license.StateExpired, st.State)
}

func TestSweepScheduler_FailedRunKeepsLastRun(t *testing.T) {
	s, store := newTestScheduler(t, time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC))
	awaitingSince(t, store, generic.NewTimePoint(2025, time.March, 3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunNow(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.LastRun().IsZero())
}

func TestSweepScheduler_StartStop(t *testing.T) {
	now := time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)
	s.CheckInterval = time.Hour

	s.Start()
	s.Start() // second start is a no-op
	require.Eventually(t, func() bool { return !s.LastRun().IsZero() }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	assert.Equal(t, now.Add(time.Hour), s.GetNextRunTime())
}

func TestSweepScheduler_Disabled(t *testing.T) {
	s, _ := newTestScheduler(t, time.Now())
	s.Enabled = false

	s.Start()
	s.Stop()
	assert.NoError(t, s.Run(context.Background()))
	assert.True(t, s.LastRun().IsZero())
}

func TestSweepScheduler_RunReturnsOnCancel(t *testing.T) {
	s, _ := newTestScheduler(t, time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC))
	s.CheckInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return !s.LastRun().IsZero() }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
