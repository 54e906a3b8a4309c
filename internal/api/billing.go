package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/billing"
)

// CalculateRequest is the body of POST /api/v1/calculate.
type CalculateRequest struct {
	Items           []billing.Item   `json:"items"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	VATPercent      *decimal.Decimal `json:"vat_percent,omitempty"`
}

// InvoicesHandler handles invoice and calculation endpoints.
type InvoicesHandler struct {
	billing *billing.Service
}

// NewInvoicesHandler creates a new InvoicesHandler.
func NewInvoicesHandler(s *billing.Service) *InvoicesHandler {
	return &InvoicesHandler{billing: s}
}

// Calculate handles POST /api/v1/calculate. Nothing is persisted.
func (h *InvoicesHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	totals, err := h.billing.Calculate(req.Items, req.DiscountPercent, req.VATPercent)
	respond(w, r, http.StatusOK, "totals", totals, err)
}

// List handles GET /api/v1/invoices.
func (h *InvoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.billing.ListInvoices(r.Context(), organizationID(r))
	respond(w, r, http.StatusOK, "invoices", invoices, err)
}

// Create handles POST /api/v1/invoices.
func (h *InvoicesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req billing.CreateInvoiceInput
	if !decodeJSON(w, r, &req) {
		return
	}
	invoice, err := h.billing.CreateInvoice(r.Context(), organizationID(r), req)
	respond(w, r, http.StatusCreated, "invoice", invoice, err)
}

// Get handles GET /api/v1/invoices/{id}.
func (h *InvoicesHandler) Get(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.billing.GetInvoice(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "invoice", invoice, err)
}

// UpdateItems handles PUT /api/v1/invoices/{id}/items.
func (h *InvoicesHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	var req billing.UpdateItemsInput
	if !decodeJSON(w, r, &req) {
		return
	}
	invoice, err := h.billing.UpdateInvoiceItems(r.Context(), organizationID(r), chi.URLParam(r, "id"), req)
	respond(w, r, http.StatusOK, "invoice", invoice, err)
}

// Issue handles POST /api/v1/invoices/{id}/issue.
func (h *InvoicesHandler) Issue(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.billing.IssueInvoice(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "invoice", invoice, err)
}

// Cancel handles POST /api/v1/invoices/{id}/cancel.
func (h *InvoicesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.billing.CancelInvoice(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "invoice", invoice, err)
}

// CreditNote handles POST /api/v1/invoices/{id}/credit-note.
func (h *InvoicesHandler) CreditNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.billing.IssueCreditNote(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusCreated, "invoice", note, err)
}

// QuotationsHandler handles quotation endpoints.
type QuotationsHandler struct {
	billing *billing.Service
}

// NewQuotationsHandler creates a new QuotationsHandler.
func NewQuotationsHandler(s *billing.Service) *QuotationsHandler {
	return &QuotationsHandler{billing: s}
}

// Create handles POST /api/v1/quotations.
func (h *QuotationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req billing.CreateInvoiceInput
	if !decodeJSON(w, r, &req) {
		return
	}
	quotation, err := h.billing.CreateQuotation(r.Context(), organizationID(r), req)
	respond(w, r, http.StatusCreated, "quotation", quotation, err)
}

// Get handles GET /api/v1/quotations/{id}.
func (h *QuotationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	quotation, err := h.billing.GetQuotation(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "quotation", quotation, err)
}

// UpdateItems handles PUT /api/v1/quotations/{id}/items.
func (h *QuotationsHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	var req billing.UpdateItemsInput
	if !decodeJSON(w, r, &req) {
		return
	}
	quotation, err := h.billing.UpdateQuotationItems(r.Context(), organizationID(r), chi.URLParam(r, "id"), req)
	respond(w, r, http.StatusOK, "quotation", quotation, err)
}

// Convert handles POST /api/v1/quotations/{id}/convert.
func (h *QuotationsHandler) Convert(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.billing.ConvertQuotation(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusCreated, "invoice", invoice, err)
}

// Cancel handles POST /api/v1/quotations/{id}/cancel.
func (h *QuotationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	quotation, err := h.billing.CancelQuotation(r.Context(), organizationID(r), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, "quotation", quotation, err)
}
