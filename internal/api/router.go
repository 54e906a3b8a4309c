// Package api exposes the ledger over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/masarpro/Masar-sub000/pkg/billing"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/reconcile"
	"github.com/masarpro/Masar-sub000/pkg/runs"
)

// Services are the domain services the router dispatches to.
type Services struct {
	Ledger    *ledger.Ledger
	Runs      *runs.Service
	Reconcile *reconcile.Engine
	Billing   *billing.Service

	// DefaultCurrency is used for new accounts that name none.
	DefaultCurrency string
}

// NewRouter builds the HTTP handler tree.
func NewRouter(s Services) http.Handler {
	accounts := NewAccountsHandler(s.Ledger, s.Reconcile, s.DefaultCurrency)
	expenses := NewExpensesHandler(s.Ledger)
	payments := NewPaymentsHandler(s.Ledger)
	subcontract := NewSubcontractPaymentsHandler(s.Ledger)
	transfers := NewTransfersHandler(s.Ledger)
	payroll := NewPayrollRunsHandler(s.Runs)
	expenseRuns := NewExpenseRunsHandler(s.Runs)
	invoices := NewInvoicesHandler(s.Billing)
	quotations := NewQuotationsHandler(s.Billing)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Pure engine, no organization needed.
		r.Post("/calculate", invoices.Calculate)

		r.Group(func(r chi.Router) {
			r.Use(TenantMiddleware)

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", accounts.List)
				r.Post("/", accounts.Create)
				r.Get("/{id}", accounts.Get)
				r.Post("/{id}/default", accounts.SetDefault)
				r.Post("/{id}/deactivate", accounts.Deactivate)
				r.Get("/{id}/reconcile", accounts.Reconcile)
			})

			r.Get("/reconcile", accounts.ReconcileAll)

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", expenses.List)
				r.Post("/", expenses.Create)
				r.Get("/{id}", expenses.Get)
				r.Delete("/{id}", expenses.Delete)
				r.Post("/{id}/pay", expenses.Pay)
				r.Post("/{id}/cancel", expenses.Cancel)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", payments.List)
				r.Post("/", payments.Create)
				r.Get("/{id}", payments.Get)
				r.Delete("/{id}", payments.Delete)
				r.Post("/{id}/complete", payments.Complete)
				r.Post("/{id}/cancel", payments.Cancel)
			})

			r.Route("/subcontract-payments", func(r chi.Router) {
				r.Get("/", subcontract.List)
				r.Post("/", subcontract.Create)
				r.Get("/{id}", subcontract.Get)
				r.Delete("/{id}", subcontract.Delete)
				r.Post("/{id}/complete", subcontract.Complete)
				r.Post("/{id}/cancel", subcontract.Cancel)
			})

			r.Route("/transfers", func(r chi.Router) {
				r.Get("/", transfers.List)
				r.Post("/", transfers.Create)
				r.Get("/{id}", transfers.Get)
				r.Post("/{id}/complete", transfers.Complete)
				r.Post("/{id}/cancel", transfers.Cancel)
			})

			r.Route("/payroll-runs", func(r chi.Router) {
				r.Get("/", payroll.List)
				r.Post("/", payroll.Create)
				r.Get("/{id}", payroll.Get)
				r.Post("/{id}/populate", payroll.Populate)
				r.Post("/{id}/post", payroll.Post)
				r.Post("/{id}/cancel", payroll.Cancel)
				r.Patch("/{id}/items/{itemId}", payroll.UpdateItem)
			})

			r.Route("/expense-runs", func(r chi.Router) {
				r.Get("/", expenseRuns.List)
				r.Post("/", expenseRuns.Create)
				r.Get("/{id}", expenseRuns.Get)
				r.Post("/{id}/populate", expenseRuns.Populate)
				r.Post("/{id}/approve", expenseRuns.Approve)
				r.Post("/{id}/cancel", expenseRuns.Cancel)
				r.Patch("/{id}/items/{itemId}", expenseRuns.UpdateItem)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", invoices.List)
				r.Post("/", invoices.Create)
				r.Get("/{id}", invoices.Get)
				r.Put("/{id}/items", invoices.UpdateItems)
				r.Post("/{id}/issue", invoices.Issue)
				r.Post("/{id}/cancel", invoices.Cancel)
				r.Post("/{id}/credit-note", invoices.CreditNote)
			})

			r.Route("/quotations", func(r chi.Router) {
				r.Post("/", quotations.Create)
				r.Get("/{id}", quotations.Get)
				r.Put("/{id}/items", quotations.UpdateItems)
				r.Post("/{id}/convert", quotations.Convert)
				r.Post("/{id}/cancel", quotations.Cancel)
			})
		})
	})

	return r
}
