package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the license engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsCreated      prometheus.Counter
	ValidationRejections *prometheus.CounterVec
	Transitions          *prometheus.CounterVec
	SweepRuns            prometheus.Counter
	SweepFailures        prometheus.Counter
	RemindersSent        *prometheus.CounterVec
	NotifyFailures       prometheus.Counter
	SweepDuration        prometheus.Histogram
}

// NewMetrics registers every license metric with reg.
// Pass prometheus.NewRegistry() in tests to keep them isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "license_requests_created_total",
			Help: "Total number of leave requests accepted and stored",
		}),
		ValidationRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "license_validation_rejections_total",
			Help: "Leave requests rejected by policy, by reason code",
		}, []string{"reason"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "license_transitions_total",
			Help: "Request state transitions",
		}, []string{"from", "to"}),
		SweepRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "license_sweep_runs_total",
			Help: "Completed expiration sweeps",
		}),
		SweepFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "license_sweep_failures_total",
			Help: "Requests the expiration sweep could not process",
		}),
		RemindersSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "license_reminders_sent_total",
			Help: "Certificate deadline reminders sent, by kind",
		}, []string{"kind"}),
		NotifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "license_notify_failures_total",
			Help: "Notifications that could not be delivered",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "license_sweep_duration_seconds",
			Help:    "Duration of expiration sweeps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

// IncrementCreated records an accepted request.
func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.RequestsCreated.Inc()
}

// Rejection records a policy rejection.
func (m *Metrics) Rejection(reason string) {
	if m == nil {
		return
	}
	m.ValidationRejections.WithLabelValues(reason).Inc()
}

// Transition records a state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// ObserveSweep records one sweep. Call with time.Now() at its start.
func (m *Metrics) ObserveSweep(start time.Time, failures int) {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
	m.SweepFailures.Add(float64(failures))
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

// ReminderSent records a deadline reminder.
func (m *Metrics) ReminderSent(kind string) {
	if m == nil {
		return
	}
	m.RemindersSent.WithLabelValues(kind).Inc()
}

// NotifyFailure records a failed notification.
func (m *Metrics) NotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
