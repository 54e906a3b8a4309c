package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/reconcile"
)

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	ledger    *ledger.Ledger
	reconcile *reconcile.Engine
	currency  string
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(l *ledger.Ledger, e *reconcile.Engine, currency string) *AccountsHandler {
	return &AccountsHandler{ledger: l, reconcile: e, currency: currency}
}

// List handles GET /api/v1/accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.ListAccounts(r.Context(), organizationID(r))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

// Create handles POST /api/v1/accounts.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateAccountInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Currency == "" {
		req.Currency = h.currency
	}

	account, err := h.ledger.CreateAccount(r.Context(), organizationID(r), req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"account": account})
}

// Get handles GET /api/v1/accounts/{id}.
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.GetAccount(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": account})
}

// SetDefault handles POST /api/v1/accounts/{id}/default.
func (h *AccountsHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.ledger.SetDefaultAccount)
}

// Deactivate handles POST /api/v1/accounts/{id}/deactivate.
func (h *AccountsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.ledger.DeactivateAccount)
}

func (h *AccountsHandler) change(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) error) {
	org, id := organizationID(r), chi.URLParam(r, "id")
	if err := op(r.Context(), org, id); err != nil {
		writeLedgerError(w, r, err)
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), org, id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": account})
}

// Reconcile handles GET /api/v1/accounts/{id}/reconcile.
func (h *AccountsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcile.Reconcile(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

// ReconcileAll handles GET /api/v1/reconcile.
func (h *AccountsHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reconcile.ReconcileAll(r.Context(), organizationID(r))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	balanced := true
	for _, report := range reports {
		balanced = balanced && report.IsBalanced
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports":     reports,
		"is_balanced": balanced,
	})
}
