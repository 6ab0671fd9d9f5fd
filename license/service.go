package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/observability"
)

// =============================================================================
// REQUEST SERVICE - Request lifecycle with transactional guarantees
// =============================================================================

// RequestService orchestrates validation, the state machine, certificate
// checks and persistence. Every operation that writes more than one row runs
// inside Store.WithTx. Notifications go out only after commit.
//
// Policies are resolved before a transaction opens; the catalog is never
// read through a transaction-scoped store.
type RequestService struct {
	Store     TxStore
	Catalog   Catalog
	Validator *ValidationEngine
	Checker   *ConsistencyChecker
	Extractor TextExtractor
	// Classifier is advisory. Nil disables suggestions.
	Classifier *KeywordClassifier
	Notifier   Notifier
	Logger     *zap.Logger
	Metrics    *observability.Metrics

	Now   func() time.Time
	NewID func() string
}

func NewRequestService(store TxStore, catalog Catalog, logger *zap.Logger, metrics *observability.Metrics) *RequestService {
	return &RequestService{
		Store:     store,
		Catalog:   catalog,
		Validator: NewValidationEngine(nil),
		Checker:   NewConsistencyChecker(),
		Extractor: PlainTextExtractor{},
		Notifier:  NopNotifier{},
		Logger:    observability.OrNop(logger),
		Metrics:   metrics,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// Outcome is returned by operations that may be rejected by policy. When
// Result is not OK nothing was written and Detail is empty.
type Outcome struct {
	Result      Result
	Detail      RequestDetail
	Suggestions []CategoryScore
}

// =============================================================================
// CREATE
// =============================================================================

type CreateInput struct {
	EmployeeID  EmployeeID
	PolicyID    PolicyID
	StartDate   generic.TimePoint
	EndDate     generic.TimePoint
	Information string
	Certificate *Document
}

// Create validates a new request and stores it with its initial status and
// optional certificate in one transaction.
func (s *RequestService) Create(ctx context.Context, in CreateInput) (Outcome, error) {
	now := s.Now()
	today := generic.DateOf(now)

	req, err := NewRequest(RequestID(s.NewID()), in.EmployeeID, in.PolicyID, in.StartDate, in.EndDate, today, in.Information)
	if err != nil {
		return Outcome{}, err
	}
	policy, err := ActivePolicy(ctx, s.Catalog, in.PolicyID)
	if err != nil {
		return Outcome{}, err
	}
	emp, err := s.Store.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return Outcome{}, err
	}
	text := s.extract(ctx, req.ID, in.Certificate)

	var out Outcome
	err = s.Store.WithTx(ctx, func(tx Store) error {
		usage, err := NewUsageLedger(tx).Snapshot(ctx, emp.ID, policy, req.StartDate)
		if err != nil {
			return err
		}
		result, err := s.Validator.Validate(Candidate{
			Request:        req,
			Policy:         policy,
			Employee:       emp,
			Usage:          usage,
			HasCertificate: in.Certificate != nil,
		}, today)
		if err != nil {
			return err
		}
		if !result.OK() {
			out.Result = result
			return nil
		}

		var cert *Certificate
		if in.Certificate != nil && policy.RequiresCertificate {
			validated, err := s.verify(req, policy, emp, text)
			if err != nil {
				return err
			}
			cert = s.newCertificate(req.ID, in.Certificate, text, validated, now)
		}

		status := Status{RequestID: req.ID, State: InitialState(policy, cert != nil)}
		if err := tx.InsertRequest(ctx, req, status); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		if cert != nil {
			if err := tx.PutCertificate(ctx, *cert); err != nil {
				return fmt.Errorf("store certificate: %w", err)
			}
		}
		if err := tx.AppendAudit(ctx, AuditEntry{
			RequestID: req.ID, At: now, ActorID: string(emp.ID),
			Action: AuditCreated, To: status.State,
		}); err != nil {
			return err
		}

		out.Detail = RequestDetail{Request: req, Status: status, Certificate: cert}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if !out.Result.OK() {
		s.Metrics.Rejection(string(out.Result.Reason))
		s.Logger.Info("request rejected",
			zap.String("employee_id", string(emp.ID)),
			zap.String("policy_id", string(policy.ID)),
			zap.String("reason", string(out.Result.Reason)))
		return out, nil
	}

	s.Metrics.IncrementCreated()
	s.Logger.Info("request created",
		zap.String("request_id", string(req.ID)),
		zap.String("state", string(out.Detail.Status.State)))
	kind := EventCreated
	if out.Detail.Status.State == StateAwaitingDocument {
		kind = EventAwaitingDocument
	}
	deliver(ctx, s.Notifier, s.Logger, s.Metrics, Notification{
		EmployeeID: emp.ID, Kind: kind, RequestID: req.ID, At: now,
	})
	out.Suggestions = s.suggest(req.ID, text)
	return out, nil
}

// =============================================================================
// UPDATE
// =============================================================================

type UpdateInput struct {
	RequestID RequestID
	// PolicyID switches category; empty keeps the current one.
	PolicyID    PolicyID
	StartDate   generic.TimePoint
	EndDate     generic.TimePoint
	Information *string
	Certificate *Document
	ActorID     string
}

// Update changes a non-terminal request, re-validates it and recomputes its
// state: no certificate needed means Pending (an existing certificate is
// discarded), needed but missing means AwaitingDocument, otherwise Pending.
func (s *RequestService) Update(ctx context.Context, in UpdateInput) (Outcome, error) {
	now := s.Now()
	today := generic.DateOf(now)

	current, err := s.Store.GetRequest(ctx, in.RequestID)
	if err != nil {
		return Outcome{}, err
	}

	policyID := in.PolicyID
	if policyID == "" {
		policyID = current.PolicyID
	}
	var policy Policy
	if policyID == current.PolicyID {
		policy, err = s.Catalog.GetPolicy(ctx, policyID)
	} else {
		policy, err = ActivePolicy(ctx, s.Catalog, policyID)
	}
	if err != nil {
		return Outcome{}, err
	}

	emp, err := s.Store.GetEmployee(ctx, current.EmployeeID)
	if err != nil {
		return Outcome{}, err
	}

	updated := current
	updated.PolicyID = policy.ID
	if err := updated.Reschedule(in.StartDate, in.EndDate); err != nil {
		return Outcome{}, err
	}
	if in.Information != nil {
		updated.Information = *in.Information
	}
	text := s.extract(ctx, current.ID, in.Certificate)

	var out Outcome
	var from State
	err = s.Store.WithTx(ctx, func(tx Store) error {
		st, err := tx.GetStatus(ctx, current.ID)
		if err != nil {
			return err
		}
		from = st.State
		if err := CheckTransition(current.ID, st.State, EventUpdate, st.State); err != nil {
			return err
		}

		existing, err := tx.GetCertificate(ctx, current.ID)
		if err != nil {
			return err
		}
		hasCert := existing != nil || in.Certificate != nil

		usage, err := NewUsageLedger(tx).Snapshot(ctx, emp.ID, policy, updated.StartDate)
		if err != nil {
			return err
		}
		result, err := s.Validator.Validate(Candidate{
			Request: updated, Policy: policy, Employee: emp, Usage: usage, HasCertificate: hasCert,
		}, today)
		if err != nil {
			return err
		}
		if !result.OK() {
			out.Result = result
			return nil
		}

		next, discard := StateAfterUpdate(policy, hasCert)
		cert := existing
		switch {
		case discard:
			if existing != nil {
				if err := tx.DeleteCertificate(ctx, current.ID); err != nil {
					return err
				}
			}
			cert = nil
		case in.Certificate != nil:
			validated, err := s.verify(updated, policy, emp, text)
			if err != nil {
				return err
			}
			cert = s.newCertificate(current.ID, in.Certificate, text, validated, now)
			if err := tx.PutCertificate(ctx, *cert); err != nil {
				return err
			}
		case existing != nil:
			// Dates or category may have changed under the stored document.
			if _, err := s.verify(updated, policy, emp, existing.Text); err != nil {
				return err
			}
		}

		if err := tx.UpdateRequest(ctx, updated); err != nil {
			return err
		}
		status := Status{
			RequestID:         current.ID,
			State:             next,
			EvaluationDate:    st.EvaluationDate,
			EvaluationComment: st.EvaluationComment,
		}
		if err := tx.SetStatus(ctx, StatusChange{
			RequestID:      current.ID,
			From:           SourcesFor(EventUpdate),
			To:             next,
			EvaluationDate: st.EvaluationDate,
			Comment:        st.EvaluationComment,
		}); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, AuditEntry{
			RequestID: current.ID, At: now, ActorID: in.ActorID,
			Action: AuditUpdated, From: st.State, To: next,
		}); err != nil {
			return err
		}

		out.Detail = RequestDetail{Request: updated, Status: status, Certificate: cert}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if !out.Result.OK() {
		s.Metrics.Rejection(string(out.Result.Reason))
		return out, nil
	}
	if from != out.Detail.Status.State {
		s.Metrics.Transition(string(from), string(out.Detail.Status.State))
	}
	out.Suggestions = s.suggest(current.ID, text)
	return out, nil
}

// =============================================================================
// ATTACH CERTIFICATE
// =============================================================================

// AttachCertificate stores (or replaces) the certificate of a non-terminal
// request and moves it to Pending. An inconsistent certificate leaves the
// request untouched.
func (s *RequestService) AttachCertificate(ctx context.Context, id RequestID, doc Document, actorID string) (Outcome, error) {
	now := s.Now()

	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	policy, err := s.Catalog.GetPolicy(ctx, req.PolicyID)
	if err != nil {
		return Outcome{}, err
	}
	if !policy.RequiresCertificate {
		return Outcome{}, fmt.Errorf("%w: %s", generic.ErrCertificateNotRequired, policy.ID)
	}
	st, err := s.Store.GetStatus(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if err := CheckTransition(id, st.State, EventAttachCertificate, StatePending); err != nil {
		return Outcome{}, err
	}
	emp, err := s.Store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return Outcome{}, err
	}

	text := s.extract(ctx, id, &doc)
	validated, err := s.verify(req, policy, emp, text)
	if err != nil {
		return Outcome{}, err
	}
	cert := s.newCertificate(id, &doc, text, validated, now)

	var status Status
	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.PutCertificate(ctx, *cert); err != nil {
			return err
		}
		change := StatusChange{
			RequestID:      id,
			From:           SourcesFor(EventAttachCertificate),
			To:             StatePending,
			EvaluationDate: st.EvaluationDate,
			Comment:        st.EvaluationComment,
		}
		if err := tx.SetStatus(ctx, change); err != nil {
			return err
		}
		status = Status{RequestID: id, State: StatePending, EvaluationDate: st.EvaluationDate, EvaluationComment: st.EvaluationComment}
		return tx.AppendAudit(ctx, AuditEntry{
			RequestID: id, At: now, ActorID: actorID,
			Action: AuditCertificateAttached, From: st.State, To: StatePending,
		})
	})
	if err != nil {
		return Outcome{}, err
	}

	if st.State != StatePending {
		s.Metrics.Transition(string(st.State), string(StatePending))
	}
	s.Logger.Info("certificate attached", zap.String("request_id", string(id)), zap.Bool("validated", validated))
	return Outcome{
		Detail:      RequestDetail{Request: req, Status: status, Certificate: cert},
		Suggestions: s.suggest(id, text),
	}, nil
}

// =============================================================================
// EVALUATE
// =============================================================================

type EvaluateInput struct {
	RequestID   RequestID
	Decision    State
	Comment     string
	EvaluatorID string
}

// Evaluate resolves a Pending request. Of two concurrent evaluators exactly
// one succeeds; the other gets an IllegalTransitionError.
func (s *RequestService) Evaluate(ctx context.Context, in EvaluateInput) (RequestDetail, error) {
	if !IsDecision(in.Decision) {
		return RequestDetail{}, fmt.Errorf("%w: %q", generic.ErrInvalidDecision, in.Decision)
	}
	now := s.Now()
	today := generic.DateOf(now)

	var detail RequestDetail
	err := s.Store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		st, err := tx.GetStatus(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if err := CheckTransition(req.ID, st.State, EventEvaluate, in.Decision); err != nil {
			return err
		}
		if in.Decision == StateAwaitingDocument {
			policy, err := s.Catalog.GetPolicy(ctx, req.PolicyID)
			if err != nil {
				return err
			}
			if !policy.RequiresCertificate {
				return fmt.Errorf("%w: %s", generic.ErrCertificateNotRequired, policy.ID)
			}
		}

		if err := tx.SetStatus(ctx, StatusChange{
			RequestID:      req.ID,
			From:           SourcesFor(EventEvaluate),
			To:             in.Decision,
			EvaluationDate: &today,
			Comment:        in.Comment,
		}); err != nil {
			return err
		}
		req.EvaluatorID = in.EvaluatorID
		req.ClosingDate = &today
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, AuditEntry{
			RequestID: req.ID, At: now, ActorID: in.EvaluatorID,
			Action: AuditEvaluated, From: st.State, To: in.Decision, Comment: in.Comment,
		}); err != nil {
			return err
		}

		cert, err := tx.GetCertificate(ctx, req.ID)
		if err != nil {
			return err
		}
		detail = RequestDetail{
			Request:     req,
			Status:      Status{RequestID: req.ID, State: in.Decision, EvaluationDate: &today, EvaluationComment: in.Comment},
			Certificate: cert,
		}
		return nil
	})
	if err != nil {
		return RequestDetail{}, err
	}

	s.Metrics.Transition(string(StatePending), string(in.Decision))
	s.Logger.Info("request evaluated",
		zap.String("request_id", string(in.RequestID)),
		zap.String("decision", string(in.Decision)),
		zap.String("evaluator_id", in.EvaluatorID))
	if kind, ok := eventForDecision(in.Decision); ok {
		deliver(ctx, s.Notifier, s.Logger, s.Metrics, Notification{
			EmployeeID: detail.Request.EmployeeID, Kind: kind, RequestID: in.RequestID, At: now,
		})
	}
	return detail, nil
}

// =============================================================================
// RETIRE
// =============================================================================

// Retire soft-deletes a request and its certificate in one transaction.
func (s *RequestService) Retire(ctx context.Context, id RequestID, actorID string) error {
	now := s.Now()
	return s.Store.WithTx(ctx, func(tx Store) error {
		st, err := tx.GetStatus(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.RetireRequest(ctx, id); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, AuditEntry{
			RequestID: id, At: now, ActorID: actorID,
			Action: AuditRetired, From: st.State, To: st.State,
		})
	})
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *RequestService) Get(ctx context.Context, id RequestID) (RequestDetail, error) {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return RequestDetail{}, err
	}
	st, err := s.Store.GetStatus(ctx, id)
	if err != nil {
		return RequestDetail{}, err
	}
	cert, err := s.Store.GetCertificate(ctx, id)
	if err != nil {
		return RequestDetail{}, err
	}
	return RequestDetail{Request: req, Status: st, Certificate: cert}, nil
}

func (s *RequestService) List(ctx context.Context, f RequestFilter) ([]RequestDetail, error) {
	if f.State != "" && !f.State.Valid() {
		return nil, fmt.Errorf("%w: %q", generic.ErrUnknownState, f.State)
	}
	return s.Store.ListRequests(ctx, f)
}

func (s *RequestService) History(ctx context.Context, id RequestID) ([]AuditEntry, error) {
	if _, err := s.Store.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListAudit(ctx, id)
}

// Balance is the usage view of one employee under one policy. Entitled and
// Remaining are nil when the policy has no day cap.
type Balance struct {
	EmployeeID    EmployeeID
	PolicyID      PolicyID
	Period        generic.Period
	Entitled      *generic.Amount
	Consumed      generic.Amount
	Remaining     *generic.Amount
	ApprovedCount int
	Quota         *int
}

func (s *RequestService) Balance(ctx context.Context, employeeID EmployeeID, policyID PolicyID) (Balance, error) {
	today := generic.DateOf(s.Now())

	policy, err := s.Catalog.GetPolicy(ctx, policyID)
	if err != nil {
		return Balance{}, err
	}
	emp, err := s.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return Balance{}, err
	}
	usage, err := NewUsageLedger(s.Store).Snapshot(ctx, emp.ID, policy, today)
	if err != nil {
		return Balance{}, err
	}

	b := Balance{
		EmployeeID:    emp.ID,
		PolicyID:      policy.ID,
		Period:        usage.Period,
		Consumed:      generic.Days(usage.DaysConsumed),
		ApprovedCount: usage.ApprovedCount,
		Quota:         policy.YearlyApprovedRequestQuota,
	}

	var entitled *generic.Amount
	switch {
	case policy.IsVacation():
		days, err := s.Validator.Entitlement.VacationDaysEntitled(emp, today)
		if err != nil {
			return Balance{}, err
		}
		a := generic.Days(days)
		entitled = &a
	case policy.TotalDaysGrantedPerPeriod != nil:
		a := generic.Days(*policy.TotalDaysGrantedPerPeriod)
		entitled = &a
	}
	if entitled != nil {
		remaining := entitled.Sub(b.Consumed)
		b.Entitled = entitled
		b.Remaining = &remaining
	}
	return b, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// extract returns "" when there is no document or no usable text; the
// consistency check then reports no_text.
func (s *RequestService) extract(ctx context.Context, id RequestID, doc *Document) string {
	if doc == nil || s.Extractor == nil {
		return ""
	}
	text, err := s.Extractor.Extract(ctx, *doc)
	if err != nil {
		if !errors.Is(err, ErrNoText) {
			s.Logger.Warn("text extraction failed", zap.String("request_id", string(id)), zap.Error(err))
		}
		return ""
	}
	return text
}

// verify runs the consistency check unless the category is exempt. The
// returned flag tells whether the text was actually checked.
func (s *RequestService) verify(req Request, policy Policy, emp Employee, text string) (bool, error) {
	if s.Checker.Exempt(policy.Category) {
		return false, nil
	}
	v := s.Checker.Check(text, emp, req.Interval())
	if !v.Consistent {
		s.Logger.Info("certificate inconsistent",
			zap.String("request_id", string(req.ID)),
			zap.String("reason", v.Reason))
		return false, &generic.CertificateInconsistentError{RequestID: string(req.ID), Reason: v.Reason}
	}
	return true, nil
}

func (s *RequestService) newCertificate(id RequestID, doc *Document, text string, validated bool, now time.Time) *Certificate {
	return &Certificate{
		ID:          s.NewID(),
		RequestID:   id,
		DocumentRef: doc.Ref,
		ContentType: doc.ContentType,
		Text:        text,
		UploadedAt:  now.UTC(),
		Validated:   validated,
	}
}

func (s *RequestService) suggest(id RequestID, text string) []CategoryScore {
	if s.Classifier == nil || text == "" {
		return nil
	}
	top := s.Classifier.TopCategories(text)
	if len(top) > 0 {
		s.Logger.Debug("certificate classified",
			zap.String("request_id", string(id)),
			zap.String("top_category", string(top[0].Category)),
			zap.Float64("confidence", top[0].Confidence))
	}
	return top
}
