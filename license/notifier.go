package license

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warp/license-engine/observability"
)

// =============================================================================
// NOTIFIER - Fire-and-forget events on transitions
// =============================================================================

type EventKind string

const (
	EventCreated EventKind = "created"

	// EventAwaitingDocument replaces EventCreated when a request is filed
	// without its certificate, and follows a "missing document" evaluation.
	EventAwaitingDocument EventKind = "awaiting_document"
	EventApproved         EventKind = "approved"
	EventRejected         EventKind = "rejected"
	EventExpired          EventKind = "expired"
	EventDueTomorrow      EventKind = "due_tomorrow"
	EventDueToday         EventKind = "due_today"
)

// Notification is what a Notifier delivers.
type Notification struct {
	EmployeeID EmployeeID `json:"employee_id"`
	Kind       EventKind  `json:"kind"`
	RequestID  RequestID  `json:"request_id"`
	At         time.Time  `json:"at"`
}

// Notifier delivers notifications. A failed delivery never undoes the
// transition that produced it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier drops everything.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

// deliver sends n and swallows the error after logging and counting it.
func deliver(ctx context.Context, notifier Notifier, logger *zap.Logger, metrics *observability.Metrics, n Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		metrics.NotifyFailure()
		logger.Warn("notification failed",
			zap.String("request_id", string(n.RequestID)),
			zap.String("kind", string(n.Kind)),
			zap.Error(err))
	}
}

func eventForDecision(s State) (EventKind, bool) {
	switch s {
	case StateApproved:
		return EventApproved, true
	case StateRejected:
		return EventRejected, true
	case StateAwaitingDocument:
		return EventAwaitingDocument, true
	}
	return "", false
}

func eventForReminder(k ReminderKind) EventKind {
	if k == ReminderDueToday {
		return EventDueToday
	}
	return EventDueTomorrow
}
