/*
handlers.go - HTTP API handlers for the leave request engine

PURPOSE:
  Exposes the license engine via REST. Handles HTTP request/response, JSON
  serialization and input validation, and delegates every decision to
  license.RequestService and license.ExpirationSweeper.

ENDPOINTS:
  Policies:
    GET    /api/policies                    List active policies
    POST   /api/policies                    Create or replace a policy
    GET    /api/policies/{id}               Get a policy (retired included)
    DELETE /api/policies/{id}               Retire a policy

  Employees:
    POST   /api/employees                   Create or replace an employee
    GET    /api/employees/{id}              Get employee
    GET    /api/employees/{id}/balance      Usage under ?policy_id=
    GET    /api/employees/{id}/requests     List (?state=&policy_id=&limit=&offset=)
    POST   /api/employees/{id}/requests     Submit a request

  Requests:
    GET    /api/requests/{id}               Request, status and certificate
    GET    /api/requests/{id}/history       Audit trail
    PUT    /api/requests/{id}               Update a non-terminal request
    DELETE /api/requests/{id}               Retire (soft delete)
    PUT    /api/requests/{id}/certificate   Attach a certificate
    POST   /api/requests/{id}/evaluate      Approve, reject or ask for a document

  Admin:
    POST   /api/admin/sweep                 Run the expiration sweep (?date=)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid body, invalid interval, malformed policy, unknown decision
  - 404: Policy, employee or request not found
  - 409: The request's state forbids the operation
  - 422: Rejected by policy, certificate inconsistent, missing hire date
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Actor and evaluator IDs are taken from the body or the
  X-Actor-ID header as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/license-engine/factory"
	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
	"github.com/warp/license-engine/observability"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *license.RequestService
	Sweeper       *license.ExpirationSweeper
	Policies      license.PolicyAdmin
	Employees     license.EmployeeStore
	PolicyFactory *factory.PolicyFactory
	Logger        *zap.Logger

	// Ping backs /healthz. Nil always reports healthy.
	Ping func(ctx context.Context) error

	validate *validator.Validate
}

// NewHandler wires handlers over an already built service and sweeper.
func NewHandler(svc *license.RequestService, sweeper *license.ExpirationSweeper, policies license.PolicyAdmin, employees license.EmployeeStore, logger *zap.Logger) *Handler {
	return &Handler{
		Service:       svc,
		Sweeper:       sweeper,
		Policies:      policies,
		Employees:     employees,
		PolicyFactory: factory.NewPolicyFactory(),
		Logger:        observability.OrNop(logger),
		validate:      validator.New(),
	}
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Policies.ListPolicies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}
	dtos := make([]PolicyDTO, 0, len(policies))
	for _, p := range policies {
		dtos = append(dtos, toPolicyDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.Policies.GetPolicy(r.Context(), license.PolicyID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(p))
}

// CreatePolicy creates or replaces a policy from its JSON definition.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var pj factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	policy, err := h.PolicyFactory.FromJSON(pj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy configuration", err)
		return
	}
	if err := h.Policies.SavePolicy(r.Context(), policy); err != nil {
		h.writeServiceError(w, "Failed to save policy", err)
		return
	}
	h.Logger.Info("policy saved", zap.String("policy_id", string(policy.ID)))
	writeJSON(w, http.StatusCreated, toPolicyDTO(policy))
}

// DeletePolicy retires a policy. Existing requests keep resolving it.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id := license.PolicyID(chi.URLParam(r, "id"))
	if err := h.Policies.DeletePolicy(r.Context(), id); err != nil {
		h.writeServiceError(w, "Failed to retire policy", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retired", "id": string(id)})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Employees.GetEmployee(r.Context(), license.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(e))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	emp := license.Employee{
		ID:         license.EmployeeID(req.ID),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		NationalID: req.NationalID,
		Email:      req.Email,
	}
	if req.HireDate != "" {
		hire, err := generic.ParseDate(req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
			return
		}
		emp.HireDate = &hire
	}

	if err := h.Employees.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetBalance returns usage of one policy in its current period.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	policyID := r.URL.Query().Get("policy_id")
	if policyID == "" {
		writeError(w, http.StatusBadRequest, "policy_id query parameter is required", nil)
		return
	}
	b, err := h.Service.Balance(r.Context(), license.EmployeeID(chi.URLParam(r, "id")), license.PolicyID(policyID))
	if err != nil {
		h.writeServiceError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListRequests lists an employee's requests, newest start date first.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := license.RequestFilter{
		EmployeeID: license.EmployeeID(chi.URLParam(r, "id")),
		PolicyID:   license.PolicyID(q.Get("policy_id")),
		State:      license.State(q.Get("state")),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset", err)
		return
	}

	details, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "Failed to list requests", err)
		return
	}
	dtos := make([]RequestDTO, 0, len(details))
	for _, d := range details {
		dtos = append(dtos, toRequestDTO(d))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitRequest creates a leave request for the employee in the path.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	start, end, ok := parseInterval(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	outcome, err := h.Service.Create(r.Context(), license.CreateInput{
		EmployeeID:  license.EmployeeID(chi.URLParam(r, "id")),
		PolicyID:    license.PolicyID(req.PolicyID),
		StartDate:   start,
		EndDate:     end,
		Information: req.Information,
		Certificate: req.Certificate.toDocument(),
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create request", err)
		return
	}
	writeOutcome(w, http.StatusCreated, outcome)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Get(r.Context(), license.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(d))
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.History(r.Context(), license.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get history", err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, AuditEntryDTO{
			At: e.At, ActorID: e.ActorID, Action: string(e.Action),
			From: string(e.From), To: string(e.To), Comment: e.Comment,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	start, end, ok := parseInterval(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	outcome, err := h.Service.Update(r.Context(), license.UpdateInput{
		RequestID:   license.RequestID(chi.URLParam(r, "id")),
		PolicyID:    license.PolicyID(req.PolicyID),
		StartDate:   start,
		EndDate:     end,
		Information: req.Information,
		Certificate: req.Certificate.toDocument(),
		ActorID:     actor(r, req.ActorID),
	})
	if err != nil {
		h.writeServiceError(w, "Failed to update request", err)
		return
	}
	writeOutcome(w, http.StatusOK, outcome)
}

// RetireRequest soft-deletes a request and its certificate.
func (h *Handler) RetireRequest(w http.ResponseWriter, r *http.Request) {
	id := license.RequestID(chi.URLParam(r, "id"))
	if err := h.Service.Retire(r.Context(), id, actor(r, "")); err != nil {
		h.writeServiceError(w, "Failed to retire request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retired", "id": string(id)})
}

func (h *Handler) AttachCertificate(w http.ResponseWriter, r *http.Request) {
	var req AttachCertificateDTO
	if !h.decode(w, r, &req) {
		return
	}
	outcome, err := h.Service.AttachCertificate(r.Context(),
		license.RequestID(chi.URLParam(r, "id")), *req.DocumentRequest.toDocument(), actor(r, req.ActorID))
	if err != nil {
		h.writeServiceError(w, "Failed to attach certificate", err)
		return
	}
	writeOutcome(w, http.StatusOK, outcome)
}

// EvaluateRequest records an evaluator's decision on a pending request.
func (h *Handler) EvaluateRequest(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.Service.Evaluate(r.Context(), license.EvaluateInput{
		RequestID:   license.RequestID(chi.URLParam(r, "id")),
		Decision:    license.State(req.Decision),
		Comment:     req.Comment,
		EvaluatorID: req.EvaluatorID,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to evaluate request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(d))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs the expiration sweep now, as of ?date= or today.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	today := generic.DateOf(h.Service.Now())
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := generic.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		today = d
	}
	report, err := h.Sweeper.Run(r.Context(), today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		resp.Reason = reasonOf(err)
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsUnprocessable(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeOutcome(w http.ResponseWriter, okStatus int, o license.Outcome) {
	if !o.Result.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, toOutcomeDTO(o))
		return
	}
	writeJSON(w, okStatus, toOutcomeDTO(o))
}

func reasonOf(err error) string {
	var rejected *generic.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason
	}
	var inconsistent *generic.CertificateInconsistentError
	if errors.As(err, &inconsistent) {
		return inconsistent.Reason
	}
	return ""
}

// decode reads a JSON body into dst and validates it. On failure the 400 is
// already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", errors.New(validationDetails(err)))
		return false
	}
	return true
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(e.Field()), e.Tag()))
	}
	return strings.Join(parts, "; ")
}

func parseInterval(w http.ResponseWriter, startRaw, endRaw string) (generic.TimePoint, generic.TimePoint, bool) {
	start, err := generic.ParseDate(startRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return generic.TimePoint{}, generic.TimePoint{}, false
	}
	end, err := generic.ParseDate(endRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return generic.TimePoint{}, generic.TimePoint{}, false
	}
	return start, end, true
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer, got %q", raw)
	}
	return n, nil
}

func actor(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("X-Actor-ID")
}
