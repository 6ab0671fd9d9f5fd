// Package memory provides an in-memory license.TxStore for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.Mutex
	st *state
}

type reminderKey struct {
	RequestID license.RequestID
	Kind      license.ReminderKind
	Day       string
}

// state holds the data and implements license.Store without locking.
type state struct {
	employees    map[license.EmployeeID]license.Employee
	requests     map[license.RequestID]license.Request
	statuses     map[license.RequestID]license.Status
	certificates map[license.RequestID][]license.Certificate
	reminders    map[reminderKey]bool
	audit        map[license.RequestID][]license.AuditEntry
}

func New() *Memory {
	return &Memory{st: &state{
		employees:    make(map[license.EmployeeID]license.Employee),
		requests:     make(map[license.RequestID]license.Request),
		statuses:     make(map[license.RequestID]license.Status),
		certificates: make(map[license.RequestID][]license.Certificate),
		reminders:    make(map[reminderKey]bool),
		audit:        make(map[license.RequestID][]license.AuditEntry),
	}}
}

// WithTx runs fn against the live state under the lock and restores a copy
// taken beforehand when fn fails.
func (m *Memory) WithTx(_ context.Context, fn func(license.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = backup
		return err
	}
	return nil
}

func (s *state) clone() *state {
	c := &state{
		employees:    make(map[license.EmployeeID]license.Employee, len(s.employees)),
		requests:     make(map[license.RequestID]license.Request, len(s.requests)),
		statuses:     make(map[license.RequestID]license.Status, len(s.statuses)),
		certificates: make(map[license.RequestID][]license.Certificate, len(s.certificates)),
		reminders:    make(map[reminderKey]bool, len(s.reminders)),
		audit:        make(map[license.RequestID][]license.AuditEntry, len(s.audit)),
	}
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.statuses {
		c.statuses[k] = v
	}
	for k, v := range s.certificates {
		c.certificates[k] = slices.Clone(v)
	}
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	for k, v := range s.audit {
		c.audit[k] = slices.Clone(v)
	}
	return c
}

// =============================================================================
// LOCKED WRAPPERS
// =============================================================================

func (m *Memory) GetEmployee(ctx context.Context, id license.EmployeeID) (license.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetEmployee(ctx, id)
}

func (m *Memory) SaveEmployee(ctx context.Context, e license.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveEmployee(ctx, e)
}

func (m *Memory) GetRequest(ctx context.Context, id license.RequestID) (license.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetRequest(ctx, id)
}

func (m *Memory) GetStatus(ctx context.Context, id license.RequestID) (license.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetStatus(ctx, id)
}

func (m *Memory) GetCertificate(ctx context.Context, id license.RequestID) (*license.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetCertificate(ctx, id)
}

func (m *Memory) ListRequests(ctx context.Context, f license.RequestFilter) ([]license.RequestDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListRequests(ctx, f)
}

func (m *Memory) ListApproved(ctx context.Context, employeeID license.EmployeeID, policyID license.PolicyID, period generic.Period) ([]license.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListApproved(ctx, employeeID, policyID, period)
}

func (m *Memory) InsertRequest(ctx context.Context, r license.Request, s license.Status) error {
	return m.WithTx(ctx, func(tx license.Store) error { return tx.InsertRequest(ctx, r, s) })
}

func (m *Memory) UpdateRequest(ctx context.Context, r license.Request) error {
	return m.WithTx(ctx, func(tx license.Store) error { return tx.UpdateRequest(ctx, r) })
}

func (m *Memory) SetStatus(ctx context.Context, c license.StatusChange) error {
	return m.WithTx(ctx, func(tx license.Store) error { return tx.SetStatus(ctx, c) })
}

func (m *Memory) PutCertificate(ctx context.Context, c license.Certificate) error {
	return m.WithTx(ctx, func(tx license.Store) error { return tx.PutCertificate(ctx, c) })
}

func (m *Memory) DeleteCertificate(ctx context.Context, id license.RequestID) error {
	return m.WithTx(ctx, func(tx license.Store) error { return tx.DeleteCertificate(ctx, id) })
}

func (m *Memory) RetireRequest(ctx context.Context, id license.RequestID) error {
	return m.WithTx(ctx, func(tx license.Store) error { return tx.RetireRequest(ctx, id) })
}

func (m *Memory) RecordReminder(ctx context.Context, id license.RequestID, kind license.ReminderKind, day generic.TimePoint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.RecordReminder(ctx, id, kind, day)
}

func (m *Memory) AppendAudit(ctx context.Context, e license.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.AppendAudit(ctx, e)
}

func (m *Memory) ListAudit(ctx context.Context, id license.RequestID) ([]license.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListAudit(ctx, id)
}

// =============================================================================
// STATE (license.Store)
// =============================================================================

func (s *state) GetEmployee(_ context.Context, id license.EmployeeID) (license.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return license.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return e, nil
}

func (s *state) SaveEmployee(_ context.Context, e license.Employee) error {
	s.employees[e.ID] = e
	return nil
}

func (s *state) GetRequest(_ context.Context, id license.RequestID) (license.Request, error) {
	r, ok := s.requests[id]
	if !ok || r.Deleted {
		return license.Request{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return r, nil
}

func (s *state) GetStatus(ctx context.Context, id license.RequestID) (license.Status, error) {
	if _, err := s.GetRequest(ctx, id); err != nil {
		return license.Status{}, err
	}
	return s.statuses[id], nil
}

func (s *state) GetCertificate(_ context.Context, id license.RequestID) (*license.Certificate, error) {
	for _, c := range s.certificates[id] {
		if !c.Deleted {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *state) ListRequests(_ context.Context, f license.RequestFilter) ([]license.RequestDetail, error) {
	var result []license.RequestDetail
	for id, r := range s.requests {
		if r.Deleted {
			continue
		}
		st := s.statuses[id]
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.PolicyID != "" && r.PolicyID != f.PolicyID {
			continue
		}
		if f.State != "" && st.State != f.State {
			continue
		}
		result = append(result, license.RequestDetail{Request: r, Status: st})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Request, result[j].Request
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.After(b.StartDate)
		}
		return a.ID < b.ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return nil, nil
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *state) ListApproved(_ context.Context, employeeID license.EmployeeID, policyID license.PolicyID, period generic.Period) ([]license.Request, error) {
	var result []license.Request
	for id, r := range s.requests {
		if r.Deleted || r.EmployeeID != employeeID || r.PolicyID != policyID {
			continue
		}
		if s.statuses[id].State != license.StateApproved || !period.Contains(r.StartDate) {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *state) InsertRequest(_ context.Context, r license.Request, st license.Status) error {
	if _, exists := s.requests[r.ID]; exists {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	st.RequestID = r.ID
	s.requests[r.ID] = r
	s.statuses[r.ID] = st
	return nil
}

func (s *state) UpdateRequest(ctx context.Context, r license.Request) error {
	if _, err := s.GetRequest(ctx, r.ID); err != nil {
		return err
	}
	s.requests[r.ID] = r
	return nil
}

func (s *state) SetStatus(ctx context.Context, c license.StatusChange) error {
	current, err := s.GetStatus(ctx, c.RequestID)
	if err != nil {
		return err
	}
	if !slices.Contains(c.From, current.State) {
		return &generic.IllegalTransitionError{
			RequestID: string(c.RequestID), From: string(current.State), To: string(c.To),
		}
	}
	s.statuses[c.RequestID] = license.Status{
		RequestID:         c.RequestID,
		State:             c.To,
		EvaluationDate:    c.EvaluationDate,
		EvaluationComment: c.Comment,
	}
	return nil
}

func (s *state) PutCertificate(ctx context.Context, c license.Certificate) error {
	if err := s.DeleteCertificate(ctx, c.RequestID); err != nil {
		return err
	}
	s.certificates[c.RequestID] = append(s.certificates[c.RequestID], c)
	return nil
}

func (s *state) DeleteCertificate(ctx context.Context, id license.RequestID) error {
	if _, err := s.GetRequest(ctx, id); err != nil {
		return err
	}
	certs := s.certificates[id]
	for i := range certs {
		certs[i].Deleted = true
	}
	return nil
}

func (s *state) RetireRequest(ctx context.Context, id license.RequestID) error {
	r, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if err := s.DeleteCertificate(ctx, id); err != nil {
		return err
	}
	r.Deleted = true
	s.requests[id] = r
	return nil
}

func (s *state) RecordReminder(_ context.Context, id license.RequestID, kind license.ReminderKind, day generic.TimePoint) (bool, error) {
	k := reminderKey{RequestID: id, Kind: kind, Day: day.String()}
	if s.reminders[k] {
		return false, nil
	}
	s.reminders[k] = true
	return true, nil
}

func (s *state) AppendAudit(_ context.Context, e license.AuditEntry) error {
	s.audit[e.RequestID] = append(s.audit[e.RequestID], e)
	return nil
}

func (s *state) ListAudit(_ context.Context, id license.RequestID) ([]license.AuditEntry, error) {
	return slices.Clone(s.audit[id]), nil
}

var _ license.TxStore = (*Memory)(nil)
