package license_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
	"github.com/warp/license-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

func datePtr(year int, month time.Month, day int) *generic.TimePoint {
	d := date(year, month, day)
	return &d
}

// monday is the fixed "now" of service tests.
var monday = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func ana() license.Employee {
	return license.Employee{
		ID:         "emp-ana",
		FirstName:  "Ana",
		LastName:   "Pérez",
		NationalID: "30111222",
		Email:      "ana@example.com",
		HireDate:   datePtr(2018, time.January, 15),
	}
}

// recorder collects notifications.
type recorder struct {
	mu   sync.Mutex
	sent []license.Notification
	err  error
}

func (r *recorder) Notify(_ context.Context, n license.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recorder) kinds() []license.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]license.EventKind, 0, len(r.sent))
	for _, n := range r.sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

type fixture struct {
	store    *memory.Memory
	catalog  *license.MemoryCatalog
	svc      *license.RequestService
	notifier *recorder
	now      time.Time
}

// newFixture wires a service over the memory store and the preset catalog,
// with ana already on file and the clock fixed at now.
func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		catalog:  license.NewMemoryCatalog(license.DefaultPolicies()...),
		notifier: &recorder{},
		now:      now,
	}
	if err := f.store.SaveEmployee(context.Background(), ana()); err != nil {
		t.Fatalf("Failed to save employee: %v", err)
	}

	f.svc = license.NewRequestService(f.store, f.catalog, nil, nil)
	f.svc.Notifier = f.notifier
	f.svc.Classifier = license.NewKeywordClassifier()
	f.svc.Now = func() time.Time { return f.now }
	seq := 0
	f.svc.NewID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return f
}

func (f *fixture) sweeper() *license.ExpirationSweeper {
	return license.NewExpirationSweeper(f.store, f.catalog, f.notifier, nil, nil)
}

// create submits a request for ana and fails the test on error or rejection.
func (f *fixture) create(t *testing.T, policy license.PolicyID, start, end generic.TimePoint, doc *license.Document) license.RequestDetail {
	t.Helper()
	out, err := f.svc.Create(context.Background(), license.CreateInput{
		EmployeeID:  "emp-ana",
		PolicyID:    policy,
		StartDate:   start,
		EndDate:     end,
		Certificate: doc,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !out.Result.OK() {
		t.Fatalf("Create rejected: %s (%s)", out.Result.Reason, out.Result.Message)
	}
	return out.Detail
}

func (f *fixture) approve(t *testing.T, id license.RequestID) {
	t.Helper()
	if _, err := f.svc.Evaluate(context.Background(), license.EvaluateInput{
		RequestID: id, Decision: license.StateApproved, EvaluatorID: "boss",
	}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
}

func text(s string) *license.Document {
	return &license.Document{Ref: "scan.txt", ContentType: "text/plain", Content: []byte(s)}
}
