package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/masarpro/Masar-sub000/pkg/ledger"
)

// PaymentsHandler handles incoming payment endpoints.
type PaymentsHandler struct {
	ledger *ledger.Ledger
}

// NewPaymentsHandler creates a new PaymentsHandler.
func NewPaymentsHandler(l *ledger.Ledger) *PaymentsHandler {
	return &PaymentsHandler{ledger: l}
}

// List handles GET /api/v1/payments with an optional account_id filter.
func (h *PaymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	payments, err := h.ledger.ListPayments(r.Context(), organizationID(r), r.URL.Query().Get("account_id"))
	respond(w, r, http.StatusOK, "payments", payments, err)
}

// Create handles POST /api/v1/payments.
func (h *PaymentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreatePaymentInput
	if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := h.ledger.CreatePayment(r.Context(), organizationID(r), req)
	respond(w, r, http.StatusCreated, "payment", payment, err)
}

// Get handles GET /api/v1/payments/{id}.
func (h *PaymentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	payment, err := h.ledger.GetPayment(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "payment", payment, err)
}

// Complete handles POST /api/v1/payments/{id}/complete.
func (h *PaymentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	payment, err := h.ledger.CompletePayment(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "payment", payment, err)
}

// Cancel handles POST /api/v1/payments/{id}/cancel.
func (h *PaymentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	payment, err := h.ledger.CancelPayment(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "payment", payment, err)
}

// Delete handles DELETE /api/v1/payments/{id}.
func (h *PaymentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeletePayment(r.Context(), organizationID(r), chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubcontractPaymentsHandler handles outgoing subcontract payment endpoints.
type SubcontractPaymentsHandler struct {
	ledger *ledger.Ledger
}

// NewSubcontractPaymentsHandler creates a new SubcontractPaymentsHandler.
func NewSubcontractPaymentsHandler(l *ledger.Ledger) *SubcontractPaymentsHandler {
	return &SubcontractPaymentsHandler{ledger: l}
}

// List handles GET /api/v1/subcontract-payments with an optional subcontract_id filter.
func (h *SubcontractPaymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	payments, err := h.ledger.ListSubcontractPayments(r.Context(), organizationID(r), r.URL.Query().Get("subcontract_id"))
	respond(w, r, http.StatusOK, "subcontract_payments", payments, err)
}

// Create handles POST /api/v1/subcontract-payments.
func (h *SubcontractPaymentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateSubcontractPaymentInput
	if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := h.ledger.CreateSubcontractPayment(r.Context(), organizationID(r), req)
	respond(w, r, http.StatusCreated, "subcontract_payment", payment, err)
}

// Get handles GET /api/v1/subcontract-payments/{id}.
func (h *SubcontractPaymentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	payment, err := h.ledger.GetSubcontractPayment(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "subcontract_payment", payment, err)
}

// Complete handles POST /api/v1/subcontract-payments/{id}/complete.
func (h *SubcontractPaymentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	payment, err := h.ledger.CompleteSubcontractPayment(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "subcontract_payment", payment, err)
}

// Cancel handles POST /api/v1/subcontract-payments/{id}/cancel.
func (h *SubcontractPaymentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	payment, err := h.ledger.CancelSubcontractPayment(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "subcontract_payment", payment, err)
}

// Delete handles DELETE /api/v1/subcontract-payments/{id}.
func (h *SubcontractPaymentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteSubcontractPayment(r.Context(), organizationID(r), chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransfersHandler handles transfer endpoints.
type TransfersHandler struct {
	ledger *ledger.Ledger
}

// NewTransfersHandler creates a new TransfersHandler.
func NewTransfersHandler(l *ledger.Ledger) *TransfersHandler {
	return &TransfersHandler{ledger: l}
}

// List handles GET /api/v1/transfers with an optional account_id filter.
func (h *TransfersHandler) List(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.ledger.ListTransfers(r.Context(), organizationID(r), r.URL.Query().Get("account_id"))
	respond(w, r, http.StatusOK, "transfers", transfers, err)
}

// Create handles POST /api/v1/transfers.
func (h *TransfersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateTransferInput
	if !decodeJSON(w, r, &req) {
		return
	}
	transfer, err := h.ledger.CreateTransfer(r.Context(), organizationID(r), req)
	respond(w, r, http.StatusCreated, "transfer", transfer, err)
}

// Get handles GET /api/v1/transfers/{id}.
func (h *TransfersHandler) Get(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.ledger.GetTransfer(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "transfer", transfer, err)
}

// Complete handles POST /api/v1/transfers/{id}/complete.
func (h *TransfersHandler) Complete(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.ledger.CompleteTransfer(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "transfer", transfer, err)
}

// Cancel handles POST /api/v1/transfers/{id}/cancel.
func (h *TransfersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.ledger.CancelTransfer(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "transfer", transfer, err)
}
