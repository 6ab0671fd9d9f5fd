/*
sweeper.go - Time-driven expiration of requests awaiting a certificate

PURPOSE:
  Runs periodically over every AwaitingDocument request:
    deadline - 1 day:  "due tomorrow" reminder, no transition
    deadline:          "due today" reminder, no transition
    after deadline:    transition to Expired

IDEMPOTENCY:
  Expiration is a compare-and-set from AwaitingDocument, so a second run on
  the same day finds nothing to expire. Reminders are recorded per
  (request, kind, day) and sent only the first time.

PARTIAL FAILURE:
  A request that cannot be processed (retired policy lookup failing, no
  tolerance configured, store error) is logged and counted. The sweep moves
  on to the remaining requests.

SEE ALSO:
  - lifecycle.go: CertificateDeadline, SweepActionFor
  - api/scheduler.go: Runs the sweeper on a ticker
*/
package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/observability"
)

// ExpiredComment is the evaluation comment of a request expired by the sweep.
const ExpiredComment = "expired: certificate not submitted in time"

// SweepReport summarizes one run.
type SweepReport struct {
	Day           generic.TimePoint `json:"day"`
	Examined      int               `json:"examined"`
	Expired       int               `json:"expired"`
	RemindersSent int               `json:"reminders_sent"`
	Failures      int               `json:"failures"`
}

type ExpirationSweeper struct {
	Store    TxStore
	Catalog  Catalog
	Notifier Notifier
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

func NewExpirationSweeper(store TxStore, catalog Catalog, notifier Notifier, logger *zap.Logger, metrics *observability.Metrics) *ExpirationSweeper {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ExpirationSweeper{
		Store:    store,
		Catalog:  catalog,
		Notifier: notifier,
		Logger:   observability.OrNop(logger),
		Metrics:  metrics,
	}
}

// Run sweeps as of today. It only returns an error when the candidate list
// itself cannot be loaded.
func (s *ExpirationSweeper) Run(ctx context.Context, today generic.TimePoint) (SweepReport, error) {
	start := time.Now()
	report := SweepReport{Day: today}

	awaiting, err := s.Store.ListRequests(ctx, RequestFilter{State: StateAwaitingDocument})
	if err != nil {
		return report, fmt.Errorf("list awaiting requests: %w", err)
	}

	for _, d := range awaiting {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++

		action, err := s.sweepOne(ctx, d.Request, today)
		if err != nil {
			report.Failures++
			s.Logger.Warn("sweep failed for request",
				zap.String("request_id", string(d.Request.ID)),
				zap.Error(err))
			continue
		}
		switch action {
		case SweepExpire:
			report.Expired++
		case SweepRemindToday, SweepRemindTomorrow:
			report.RemindersSent++
		}
	}

	s.Metrics.ObserveSweep(start, report.Failures)
	s.Logger.Info("expiration sweep finished",
		zap.String("day", today.String()),
		zap.Int("examined", report.Examined),
		zap.Int("expired", report.Expired),
		zap.Int("reminders", report.RemindersSent),
		zap.Int("failures", report.Failures))
	return report, nil
}

// sweepOne returns the action actually performed. SweepNothing covers both
// "not due" and "already handled today".
func (s *ExpirationSweeper) sweepOne(ctx context.Context, req Request, today generic.TimePoint) (SweepAction, error) {
	policy, err := s.Catalog.GetPolicy(ctx, req.PolicyID)
	if err != nil {
		return SweepNothing, err
	}
	if policy.CertificateToleranceDays == nil {
		return SweepNothing, fmt.Errorf("policy %s has no certificate tolerance", policy.ID)
	}

	deadline := CertificateDeadline(req.RequestDate, *policy.CertificateToleranceDays)
	switch action := SweepActionFor(deadline, today); action {
	case SweepExpire:
		expired, err := s.expire(ctx, req, today)
		if err != nil || !expired {
			return SweepNothing, err
		}
		return action, nil
	case SweepRemindToday:
		return s.remind(ctx, req, ReminderDueToday, today, action)
	case SweepRemindTomorrow:
		return s.remind(ctx, req, ReminderDueTomorrow, today, action)
	default:
		return SweepNothing, nil
	}
}

func (s *ExpirationSweeper) expire(ctx context.Context, req Request, today generic.TimePoint) (bool, error) {
	err := s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SetStatus(ctx, StatusChange{
			RequestID:      req.ID,
			From:           SourcesFor(EventExpire),
			To:             StateExpired,
			EvaluationDate: &today,
			Comment:        ExpiredComment,
		}); err != nil {
			return err
		}
		current, err := tx.GetRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		current.ClosingDate = &today
		if err := tx.UpdateRequest(ctx, current); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, AuditEntry{
			RequestID: req.ID, At: time.Now(), ActorID: "system",
			Action: AuditExpired, From: StateAwaitingDocument, To: StateExpired, Comment: ExpiredComment,
		})
	})
	if errors.Is(err, generic.ErrIllegalTransition) {
		// A certificate arrived between listing and expiring.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.Metrics.Transition(string(StateAwaitingDocument), string(StateExpired))
	deliver(ctx, s.Notifier, s.Logger, s.Metrics, Notification{
		EmployeeID: req.EmployeeID, Kind: EventExpired, RequestID: req.ID, At: time.Now(),
	})
	return true, nil
}

func (s *ExpirationSweeper) remind(ctx context.Context, req Request, kind ReminderKind, today generic.TimePoint, action SweepAction) (SweepAction, error) {
	first, err := s.Store.RecordReminder(ctx, req.ID, kind, today)
	if err != nil {
		return SweepNothing, fmt.Errorf("record reminder: %w", err)
	}
	if !first {
		return SweepNothing, nil
	}
	s.Metrics.ReminderSent(string(kind))
	deliver(ctx, s.Notifier, s.Logger, s.Metrics, Notification{
		EmployeeID: req.EmployeeID, Kind: eventForReminder(kind), RequestID: req.ID, At: time.Now(),
	})
	return action, nil
}
