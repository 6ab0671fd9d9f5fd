/*
scheduler.go - Automated expiration sweep scheduler

PURPOSE:
  Periodically runs the ExpirationSweeper so requests awaiting a certificate
  get their reminders and expire without anyone pressing a button.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sweeps once immediately on start, then on every tick
  - The sweeper is idempotent per day, so an extra tick costs nothing
  - Stops on Stop() or when the Run context is cancelled

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(sweeper, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

  // or, under an errgroup:
  g.Go(func() error { return scheduler.Run(ctx) })

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - license/sweeper.go: ExpirationSweeper
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
	"github.com/warp/license-engine/observability"
)

// SweepScheduler handles automated expiration sweeps.
type SweepScheduler struct {
	Sweeper       *license.ExpirationSweeper
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool
	// Now defaults to time.Now.
	Now func() time.Time

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(sweeper *license.ExpirationSweeper, logger *zap.Logger) *SweepScheduler {
	return &SweepScheduler{
		Sweeper:       sweeper,
		Logger:        observability.OrNop(logger),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler in its own goroutine.
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("sweep scheduler disabled, not starting")
		return
	}
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop stops the scheduler and waits for an in-flight sweep.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
		s.Logger.Info("sweep scheduler stopped")
	}
}

// Run blocks until ctx is cancelled. It never returns an error of its own;
// the signature fits errgroup.
func (s *SweepScheduler) Run(ctx context.Context) error {
	if !s.Enabled {
		s.Logger.Info("sweep scheduler disabled, not starting")
		return nil
	}
	s.loop(ctx)
	return nil
}

func (s *SweepScheduler) loop(ctx context.Context) {
	s.Logger.Info("sweep scheduler started", zap.Duration("interval", s.CheckInterval))

	ticker := time.NewTicker(s.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow sweeps once as of today (for testing/admin).
func (s *SweepScheduler) RunNow(ctx context.Context) (license.SweepReport, error) {
	now := s.Now()
	report, err := s.Sweeper.Run(ctx, generic.DateOf(now))
	if err != nil {
		s.Logger.Error("expiration sweep failed", zap.Error(err))
		return report, err
	}

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()
	return report, nil
}

// LastRun returns when the last successful sweep started.
func (s *SweepScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// GetNextRunTime returns when the next scheduled check will occur.
func (s *SweepScheduler) GetNextRunTime() time.Time {
	return s.Now().Add(s.CheckInterval)
}
