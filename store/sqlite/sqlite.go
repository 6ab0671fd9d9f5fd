/*
Package sqlite provides a SQLite-backed implementation of the license ports.

PURPOSE:
  Implements license.TxStore (requests, statuses, certificates, employees,
  reminders, audit log) and license.PolicyAdmin (the policy catalog) on one
  SQLite database.

KEY TABLES:
  policies:          Category policies, soft-deleted
  employees:         Identity and hire date
  requests:          Leave requests, soft-deleted
  request_statuses:  1:1 lifecycle record per request
  certificates:      Supporting documents, at most one live per request
  reminders:         (request, kind, day) already notified
  audit_log:         Who moved which request when

SOFT DELETE:
  No DELETE statement touches requests, certificates or policies. Retiring
  sets deleted = 1 and every read filters on it.

COMPARE-AND-SET:
  Status writes are UPDATE ... WHERE state IN (...). Zero affected rows
  becomes *generic.IllegalTransitionError.

CONCURRENCY:
  One connection, writers serialized by a mutex. Everything run inside
  WithTx goes through the *sql.Tx, including reads, so a transaction never
  waits on the connection it holds.

DATES:
  Calendar dates are stored as YYYY-MM-DD text, which sorts correctly.
  Instants use RFC 3339.

USAGE:
  store, err := sqlite.New("./data/licenses.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - license/store.go: The ports implemented here
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
)

// Store implements license.TxStore and license.PolicyAdmin.
type Store struct {
	*repo
	db *sql.DB
	mu sync.Mutex
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo holds every query. Store wraps it over the database, WithTx over a
// transaction.
type repo struct {
	q queryer
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would be a different database.
	db.SetMaxOpenConns(1)

	store := &Store{repo: &repo{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		requires_certificate BOOLEAN NOT NULL DEFAULT FALSE,
		requires_immediate_certificate BOOLEAN NOT NULL DEFAULT FALSE,
		certificate_tolerance_days INTEGER,
		min_advance_notice_days INTEGER NOT NULL DEFAULT 0,
		total_days_granted INTEGER,
		max_consecutive_days INTEGER,
		yearly_approved_quota INTEGER,
		period_type TEXT NOT NULL DEFAULT '',
		fiscal_start_month INTEGER NOT NULL DEFAULT 0,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		national_id TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		hire_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		policy_id TEXT NOT NULL REFERENCES policies(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		required_days INTEGER NOT NULL,
		request_date TEXT NOT NULL,
		closing_date TEXT,
		evaluator_id TEXT NOT NULL DEFAULT '',
		information TEXT NOT NULL DEFAULT '',
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_date >= start_date)
	);

	-- Usage aggregation (hot path of validation)
	CREATE INDEX IF NOT EXISTS idx_requests_employee_policy_start
		ON requests(employee_id, policy_id, start_date);

	CREATE TABLE IF NOT EXISTS request_statuses (
		request_id TEXT PRIMARY KEY REFERENCES requests(id),
		state TEXT NOT NULL,
		evaluation_date TEXT,
		evaluation_comment TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	-- Expiration sweep scans by state
	CREATE INDEX IF NOT EXISTS idx_request_statuses_state
		ON request_statuses(state);

	CREATE TABLE IF NOT EXISTS certificates (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id),
		document_ref TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		uploaded_at TEXT NOT NULL,
		validated BOOLEAN NOT NULL DEFAULT FALSE,
		deleted BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- At most one live certificate per request
	CREATE UNIQUE INDEX IF NOT EXISTS idx_certificates_live
		ON certificates(request_id) WHERE deleted = 0;

	CREATE TABLE IF NOT EXISTS reminders (
		request_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		day TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		PRIMARY KEY (request_id, kind, day)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		from_state TEXT NOT NULL DEFAULT '',
		to_state TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_request
		ON audit_log(request_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(license.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&repo{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Single writes outside WithTx still take the writer lock.

func (s *Store) SaveEmployee(ctx context.Context, e license.Employee) error {
	return s.WithTx(ctx, func(tx license.Store) error { return tx.SaveEmployee(ctx, e) })
}

func (s *Store) InsertRequest(ctx context.Context, r license.Request, st license.Status) error {
	return s.WithTx(ctx, func(tx license.Store) error { return tx.InsertRequest(ctx, r, st) })
}

func (s *Store) UpdateRequest(ctx context.Context, r license.Request) error {
	return s.WithTx(ctx, func(tx license.Store) error { return tx.UpdateRequest(ctx, r) })
}

func (s *Store) SetStatus(ctx context.Context, c license.StatusChange) error {
	return s.WithTx(ctx, func(tx license.Store) error { return tx.SetStatus(ctx, c) })
}

func (s *Store) PutCertificate(ctx context.Context, c license.Certificate) error {
	return s.WithTx(ctx, func(tx license.Store) error { return tx.PutCertificate(ctx, c) })
}

func (s *Store) DeleteCertificate(ctx context.Context, id license.RequestID) error {
	return s.WithTx(ctx, func(tx license.Store) error { return tx.DeleteCertificate(ctx, id) })
}

func (s *Store) RetireRequest(ctx context.Context, id license.RequestID) error {
	return s.WithTx(ctx, func(tx license.Store) error { return tx.RetireRequest(ctx, id) })
}

func (s *Store) RecordReminder(ctx context.Context, id license.RequestID, kind license.ReminderKind, day generic.TimePoint) (bool, error) {
	var first bool
	err := s.WithTx(ctx, func(tx license.Store) error {
		var err error
		first, err = tx.RecordReminder(ctx, id, kind, day)
		return err
	})
	return first, err
}

func (s *Store) AppendAudit(ctx context.Context, e license.AuditEntry) error {
	return s.WithTx(ctx, func(tx license.Store) error { return tx.AppendAudit(ctx, e) })
}

func (s *Store) SavePolicy(ctx context.Context, p license.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.savePolicy(ctx, p)
}

func (s *Store) DeletePolicy(ctx context.Context, id license.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.deletePolicy(ctx, id)
}

var (
	_ license.TxStore     = (*Store)(nil)
	_ license.PolicyAdmin = (*Store)(nil)
	_ license.Store       = (*repo)(nil)
)

// =============================================================================
// POLICY CATALOG
// =============================================================================

const policyColumns = `id, category, name, description, requires_certificate, requires_immediate_certificate,
	certificate_tolerance_days, min_advance_notice_days, total_days_granted, max_consecutive_days,
	yearly_approved_quota, period_type, fiscal_start_month, deleted`

func (r *repo) savePolicy(ctx context.Context, p license.Policy) error {
	query := `
		INSERT INTO policies (` + policyColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			name = excluded.name,
			description = excluded.description,
			requires_certificate = excluded.requires_certificate,
			requires_immediate_certificate = excluded.requires_immediate_certificate,
			certificate_tolerance_days = excluded.certificate_tolerance_days,
			min_advance_notice_days = excluded.min_advance_notice_days,
			total_days_granted = excluded.total_days_granted,
			max_consecutive_days = excluded.max_consecutive_days,
			yearly_approved_quota = excluded.yearly_approved_quota,
			period_type = excluded.period_type,
			fiscal_start_month = excluded.fiscal_start_month,
			deleted = excluded.deleted,
			version = policies.version + 1,
			updated_at = excluded.updated_at
	`
	now := nowText()
	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.Category, p.Name, p.Description,
		p.RequiresCertificate, p.RequiresImmediateCertificate,
		nullInt(p.CertificateToleranceDays), p.MinAdvanceNoticeDays,
		nullInt(p.TotalDaysGrantedPerPeriod), nullInt(p.MaxConsecutiveDays),
		nullInt(p.YearlyApprovedRequestQuota),
		string(p.Period.Type), int(p.Period.FiscalYearStartMonth), p.Deleted,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("save policy %s: %w", p.ID, err)
	}
	return nil
}

// GetPolicy resolves retired policies too.
func (r *repo) GetPolicy(ctx context.Context, id license.PolicyID) (license.Policy, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+policyColumns+" FROM policies WHERE id = ?", id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return license.Policy{}, fmt.Errorf("%w: %s", generic.ErrPolicyNotFound, id)
	}
	return p, err
}

// ListPolicies returns active policies ordered by name.
func (r *repo) ListPolicies(ctx context.Context) ([]license.Policy, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+policyColumns+" FROM policies WHERE deleted = 0 ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []license.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (r *repo) deletePolicy(ctx context.Context, id license.PolicyID) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE policies SET deleted = 1, updated_at = ? WHERE id = ?", nowText(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrPolicyNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (license.Policy, error) {
	var p license.Policy
	var tolerance, total, consecutive, quota sql.NullInt64
	var periodType string
	var fiscalMonth int
	err := row.Scan(&p.ID, &p.Category, &p.Name, &p.Description,
		&p.RequiresCertificate, &p.RequiresImmediateCertificate,
		&tolerance, &p.MinAdvanceNoticeDays, &total, &consecutive, &quota,
		&periodType, &fiscalMonth, &p.Deleted)
	if err != nil {
		return license.Policy{}, err
	}
	p.CertificateToleranceDays = intPtr(tolerance)
	p.TotalDaysGrantedPerPeriod = intPtr(total)
	p.MaxConsecutiveDays = intPtr(consecutive)
	p.YearlyApprovedRequestQuota = intPtr(quota)
	p.Period = generic.PeriodConfig{Type: generic.PeriodType(periodType), FiscalYearStartMonth: time.Month(fiscalMonth)}
	return p, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (r *repo) SaveEmployee(ctx context.Context, e license.Employee) error {
	query := `
		INSERT INTO employees (id, first_name, last_name, national_id, email, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			national_id = excluded.national_id,
			email = excluded.email,
			hire_date = excluded.hire_date
	`
	_, err := r.q.ExecContext(ctx, query,
		e.ID, e.FirstName, e.LastName, e.NationalID, e.Email, nullDate(e.HireDate), nowText())
	if err != nil {
		return fmt.Errorf("save employee %s: %w", e.ID, err)
	}
	return nil
}

func (r *repo) GetEmployee(ctx context.Context, id license.EmployeeID) (license.Employee, error) {
	var e license.Employee
	var hire sql.NullString
	err := r.q.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, national_id, email, hire_date FROM employees WHERE id = ?", id,
	).Scan(&e.ID, &e.FirstName, &e.LastName, &e.NationalID, &e.Email, &hire)
	if errors.Is(err, sql.ErrNoRows) {
		return license.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	if err != nil {
		return license.Employee{}, err
	}
	if e.HireDate, err = datePtr(hire); err != nil {
		return license.Employee{}, err
	}
	return e, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `r.id, r.employee_id, r.policy_id, r.start_date, r.end_date, r.required_days,
	r.request_date, r.closing_date, r.evaluator_id, r.information, r.deleted`

const statusColumns = `s.state, s.evaluation_date, s.evaluation_comment`

func (r *repo) InsertRequest(ctx context.Context, req license.Request, st license.Status) error {
	now := nowText()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO requests
		(id, employee_id, policy_id, start_date, end_date, required_days, request_date,
		 closing_date, evaluator_id, information, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		req.ID, req.EmployeeID, req.PolicyID,
		req.StartDate.String(), req.EndDate.String(), req.RequiredDays, req.RequestDate.String(),
		nullDate(req.ClosingDate), req.EvaluatorID, req.Information, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.ID, err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO request_statuses (request_id, state, evaluation_date, evaluation_comment, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		req.ID, st.State, nullDate(st.EvaluationDate), st.EvaluationComment, now,
	)
	if err != nil {
		return fmt.Errorf("insert status %s: %w", req.ID, err)
	}
	return nil
}

func (r *repo) UpdateRequest(ctx context.Context, req license.Request) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE requests SET
			policy_id = ?, start_date = ?, end_date = ?, required_days = ?,
			closing_date = ?, evaluator_id = ?, information = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`,
		req.PolicyID, req.StartDate.String(), req.EndDate.String(), req.RequiredDays,
		nullDate(req.ClosingDate), req.EvaluatorID, req.Information, nowText(),
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("update request %s: %w", req.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrRequestNotFound, req.ID)
	}
	return nil
}

func (r *repo) GetRequest(ctx context.Context, id license.RequestID) (license.Request, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests r WHERE r.id = ? AND r.deleted = 0", id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return license.Request{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	return req, err
}

func (r *repo) GetStatus(ctx context.Context, id license.RequestID) (license.Status, error) {
	st := license.Status{RequestID: id}
	var evalDate sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT `+statusColumns+`
		FROM request_statuses s JOIN requests r ON r.id = s.request_id
		WHERE s.request_id = ? AND r.deleted = 0`, id,
	).Scan(&st.State, &evalDate, &st.EvaluationComment)
	if errors.Is(err, sql.ErrNoRows) {
		return license.Status{}, fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	if err != nil {
		return license.Status{}, err
	}
	if st.EvaluationDate, err = datePtr(evalDate); err != nil {
		return license.Status{}, err
	}
	return st, nil
}

// ListRequests returns requests newest start date first.
func (r *repo) ListRequests(ctx context.Context, f license.RequestFilter) ([]license.RequestDetail, error) {
	var where []string
	var args []any
	where = append(where, "r.deleted = 0")
	if f.EmployeeID != "" {
		where = append(where, "r.employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.PolicyID != "" {
		where = append(where, "r.policy_id = ?")
		args = append(args, f.PolicyID)
	}
	if f.State != "" {
		where = append(where, "s.state = ?")
		args = append(args, f.State)
	}

	query := "SELECT " + requestColumns + ", " + statusColumns + `
		FROM requests r JOIN request_statuses s ON s.request_id = r.id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY r.start_date DESC, r.id ASC`
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []license.RequestDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// ListApproved feeds the usage ledger.
func (r *repo) ListApproved(ctx context.Context, employeeID license.EmployeeID, policyID license.PolicyID, period generic.Period) ([]license.Request, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests r JOIN request_statuses s ON s.request_id = r.id
		WHERE r.employee_id = ? AND r.policy_id = ? AND r.deleted = 0
		  AND s.state = ?
		  AND r.start_date >= ? AND r.start_date <= ?
		ORDER BY r.start_date`,
		employeeID, policyID, license.StateApproved, period.Start.String(), period.End.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []license.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (r *repo) RetireRequest(ctx context.Context, id license.RequestID) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE requests SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0", nowText(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrRequestNotFound, id)
	}
	_, err = r.q.ExecContext(ctx,
		"UPDATE certificates SET deleted = 1 WHERE request_id = ? AND deleted = 0", id)
	return err
}

func scanRequest(row scanner) (license.Request, error) {
	var req license.Request
	var start, end, requested string
	var closing sql.NullString
	err := row.Scan(&req.ID, &req.EmployeeID, &req.PolicyID, &start, &end, &req.RequiredDays,
		&requested, &closing, &req.EvaluatorID, &req.Information, &req.Deleted)
	if err != nil {
		return license.Request{}, err
	}
	return fillRequestDates(req, start, end, requested, closing)
}

func scanDetail(row scanner) (license.RequestDetail, error) {
	var d license.RequestDetail
	var start, end, requested string
	var closing, evalDate sql.NullString
	req := &d.Request
	err := row.Scan(&req.ID, &req.EmployeeID, &req.PolicyID, &start, &end, &req.RequiredDays,
		&requested, &closing, &req.EvaluatorID, &req.Information, &req.Deleted,
		&d.Status.State, &evalDate, &d.Status.EvaluationComment)
	if err != nil {
		return license.RequestDetail{}, err
	}
	if d.Request, err = fillRequestDates(d.Request, start, end, requested, closing); err != nil {
		return license.RequestDetail{}, err
	}
	d.Status.RequestID = d.Request.ID
	if d.Status.EvaluationDate, err = datePtr(evalDate); err != nil {
		return license.RequestDetail{}, err
	}
	return d, nil
}

func fillRequestDates(req license.Request, start, end, requested string, closing sql.NullString) (license.Request, error) {
	var err error
	if req.StartDate, err = generic.ParseDate(start); err != nil {
		return license.Request{}, err
	}
	if req.EndDate, err = generic.ParseDate(end); err != nil {
		return license.Request{}, err
	}
	if req.RequestDate, err = generic.ParseDate(requested); err != nil {
		return license.Request{}, err
	}
	if req.ClosingDate, err = datePtr(closing); err != nil {
		return license.Request{}, err
	}
	return req, nil
}

// =============================================================================
// STATUS (compare-and-set)
// =============================================================================

func (r *repo) SetStatus(ctx context.Context, c license.StatusChange) error {
	if len(c.From) == 0 {
		return fmt.Errorf("status change for %s has no source states", c.RequestID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(c.From)), ", ")
	args := []any{c.To, nullDate(c.EvaluationDate), c.Comment, nowText(), c.RequestID}
	for _, s := range c.From {
		args = append(args, s)
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE request_statuses
		SET state = ?, evaluation_date = ?, evaluation_comment = ?, updated_at = ?
		WHERE request_id = ?
		  AND state IN (`+placeholders+`)
		  AND request_id IN (SELECT id FROM requests WHERE deleted = 0)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("set status %s: %w", c.RequestID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	current, err := r.GetStatus(ctx, c.RequestID)
	if err != nil {
		return err
	}
	return &generic.IllegalTransitionError{
		RequestID: string(c.RequestID), From: string(current.State), To: string(c.To),
	}
}

// =============================================================================
// CERTIFICATES
// =============================================================================

func (r *repo) GetCertificate(ctx context.Context, id license.RequestID) (*license.Certificate, error) {
	var c license.Certificate
	var uploaded string
	err := r.q.QueryRowContext(ctx, `
		SELECT id, request_id, document_ref, content_type, text, uploaded_at, validated, deleted
		FROM certificates WHERE request_id = ? AND deleted = 0`, id,
	).Scan(&c.ID, &c.RequestID, &c.DocumentRef, &c.ContentType, &c.Text, &uploaded, &c.Validated, &c.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.UploadedAt, _ = time.Parse(time.RFC3339, uploaded)
	return &c, nil
}

// PutCertificate replaces the live certificate of the request.
func (r *repo) PutCertificate(ctx context.Context, c license.Certificate) error {
	if _, err := r.GetRequest(ctx, c.RequestID); err != nil {
		return err
	}
	if err := r.DeleteCertificate(ctx, c.RequestID); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO certificates (id, request_id, document_ref, content_type, text, uploaded_at, validated, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		c.ID, c.RequestID, c.DocumentRef, c.ContentType, c.Text,
		c.UploadedAt.UTC().Format(time.RFC3339), c.Validated,
	)
	if err != nil {
		return fmt.Errorf("insert certificate for %s: %w", c.RequestID, err)
	}
	return nil
}

func (r *repo) DeleteCertificate(ctx context.Context, id license.RequestID) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE certificates SET deleted = 1 WHERE request_id = ? AND deleted = 0", id)
	return err
}

// =============================================================================
// REMINDERS AND AUDIT
// =============================================================================

func (r *repo) RecordReminder(ctx context.Context, id license.RequestID, kind license.ReminderKind, day generic.TimePoint) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO reminders (request_id, kind, day, sent_at) VALUES (?, ?, ?, ?)",
		id, kind, day.String(), nowText())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *repo) AppendAudit(ctx context.Context, e license.AuditEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_log (request_id, at, actor_id, action, from_state, to_state, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.At.UTC().Format(time.RFC3339), e.ActorID, e.Action, e.From, e.To, e.Comment)
	return err
}

func (r *repo) ListAudit(ctx context.Context, id license.RequestID) ([]license.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT request_id, at, actor_id, action, from_state, to_state, comment
		FROM audit_log WHERE request_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []license.AuditEntry
	for rows.Next() {
		var e license.AuditEntry
		var at string
		if err := rows.Scan(&e.RequestID, &at, &e.ActorID, &e.Action, &e.From, &e.To, &e.Comment); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nowText() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullDate(d *generic.TimePoint) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func datePtr(v sql.NullString) (*generic.TimePoint, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := generic.ParseDate(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
