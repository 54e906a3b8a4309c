package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/masarpro/Masar-sub000/pkg/runs"
)

// CreateRunRequest opens a run for a month (YYYY-MM).
type CreateRunRequest struct {
	Month string `json:"month"`
}

// PayrollRunsHandler handles payroll run endpoints.
type PayrollRunsHandler struct {
	runs *runs.Service
}

// NewPayrollRunsHandler creates a new PayrollRunsHandler.
func NewPayrollRunsHandler(s *runs.Service) *PayrollRunsHandler {
	return &PayrollRunsHandler{runs: s}
}

// List handles GET /api/v1/payroll-runs.
func (h *PayrollRunsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.runs.ListPayrollRuns(r.Context(), organizationID(r))
	respond(w, r, http.StatusOK, "payroll_runs", list, err)
}

// Create handles POST /api/v1/payroll-runs.
func (h *PayrollRunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Month == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing month")
		return
	}
	run, err := h.runs.CreatePayrollRun(r.Context(), organizationID(r), req.Month)
	respond(w, r, http.StatusCreated, "payroll_run", run, err)
}

// Get handles GET /api/v1/payroll-runs/{id}.
func (h *PayrollRunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetPayrollRun(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "payroll_run", run, err)
}

// Populate handles POST /api/v1/payroll-runs/{id}/populate.
func (h *PayrollRunsHandler) Populate(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.PopulatePayrollRun(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "payroll_run", run, err)
}

// Post handles POST /api/v1/payroll-runs/{id}/post.
func (h *PayrollRunsHandler) Post(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.PostPayrollRun(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "payroll_run", run, err)
}

// Cancel handles POST /api/v1/payroll-runs/{id}/cancel.
func (h *PayrollRunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.CancelPayrollRun(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "payroll_run", run, err)
}

// UpdateItem handles PATCH /api/v1/payroll-runs/{id}/items/{itemId}.
func (h *PayrollRunsHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req runs.PayrollItemUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	run, err := h.runs.UpdatePayrollItem(r.Context(), organizationID(r), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), req)
	respond(w, r, http.StatusOK, "payroll_run", run, err)
}

// ExpenseRunsHandler handles expense run endpoints.
type ExpenseRunsHandler struct {
	runs *runs.Service
}

// NewExpenseRunsHandler creates a new ExpenseRunsHandler.
func NewExpenseRunsHandler(s *runs.Service) *ExpenseRunsHandler {
	return &ExpenseRunsHandler{runs: s}
}

// List handles GET /api/v1/expense-runs.
func (h *ExpenseRunsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.runs.ListExpenseRuns(r.Context(), organizationID(r))
	respond(w, r, http.StatusOK, "expense_runs", list, err)
}

// Create handles POST /api/v1/expense-runs.
func (h *ExpenseRunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Month == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing month")
		return
	}
	run, err := h.runs.CreateExpenseRun(r.Context(), organizationID(r), req.Month)
	respond(w, r, http.StatusCreated, "expense_run", run, err)
}

// Get handles GET /api/v1/expense-runs/{id}.
func (h *ExpenseRunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetExpenseRun(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "expense_run", run, err)
}

// Populate handles POST /api/v1/expense-runs/{id}/populate.
func (h *ExpenseRunsHandler) Populate(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.PopulateExpenseRun(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "expense_run", run, err)
}

// Approve handles POST /api/v1/expense-runs/{id}/approve.
func (h *ExpenseRunsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.ApproveExpenseRun(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "expense_run", run, err)
}

// Cancel handles POST /api/v1/expense-runs/{id}/cancel.
func (h *ExpenseRunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.CancelExpenseRun(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "expense_run", run, err)
}

// UpdateItem handles PATCH /api/v1/expense-runs/{id}/items/{itemId}.
func (h *ExpenseRunsHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req runs.ExpenseRunItemUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	run, err := h.runs.UpdateExpenseRunItem(r.Context(), organizationID(r), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), req)
	respond(w, r, http.StatusOK, "expense_run", run, err)
}
