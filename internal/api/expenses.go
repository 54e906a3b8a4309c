package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/masarpro/Masar-sub000/pkg/ledger"
)

// ExpensesHandler handles expense endpoints.
type ExpensesHandler struct {
	ledger *ledger.Ledger
}

// NewExpensesHandler creates a new ExpensesHandler.
func NewExpensesHandler(l *ledger.Ledger) *ExpensesHandler {
	return &ExpensesHandler{ledger: l}
}

// List handles GET /api/v1/expenses with optional status, account_id and
// project_id filters.
func (h *ExpensesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.ExpenseFilter{
		Status:    ledger.Status(q.Get("status")),
		AccountID: q.Get("account_id"),
		ProjectID: q.Get("project_id"),
	}

	expenses, err := h.ledger.ListExpenses(r.Context(), organizationID(r), filter)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"expenses": expenses})
}

// Create handles POST /api/v1/expenses. Run-generated source types are
// reserved for the run orchestrators.
func (h *ExpensesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateExpenseInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SourceType.Generated() {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "source_type "+string(req.SourceType)+" is reserved for runs")
		return
	}
	req.SourceType = ledger.SourceManual
	req.SourceID = ""

	expense, err := h.ledger.CreateExpense(r.Context(), organizationID(r), req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"expense": expense})
}

// Get handles GET /api/v1/expenses/{id}.
func (h *ExpensesHandler) Get(w http.ResponseWriter, r *http.Request) {
	expense, err := h.ledger.GetExpense(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"expense": expense})
}

// Pay handles POST /api/v1/expenses/{id}/pay. An empty body pays the
// remaining amount from the expense's source account.
func (h *ExpensesHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req ledger.PayExpenseInput
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	expense, err := h.ledger.PayExpense(r.Context(), organizationID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"expense": expense})
}

// Cancel handles POST /api/v1/expenses/{id}/cancel.
func (h *ExpensesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	expense, err := h.ledger.CancelExpense(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"expense": expense})
}

// Delete handles DELETE /api/v1/expenses/{id}.
func (h *ExpensesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteExpense(r.Context(), organizationID(r), chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
