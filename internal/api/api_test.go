package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masarpro/Masar-sub000/pkg/billing"
	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
	"github.com/masarpro/Masar-sub000/pkg/reconcile"
	"github.com/masarpro/Masar-sub000/pkg/runs"
)

const testOrg = "org-1"

type testServer struct {
	handler http.Handler
	ledger  *ledger.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	conn, err := db.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	seq, err := numbering.Open(filepath.Join(dir, "seq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = seq.Close() })

	l := ledger.New(conn, seq)
	l.SetClock(func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) })

	return &testServer{
		handler: NewRouter(Services{
			Ledger:    l,
			Runs:      runs.New(l, nil),
			Reconcile: reconcile.New(conn),
			Billing:   billing.New(conn, seq),

			DefaultCurrency: "SAR",
		}),
		ledger: l,
	}
}

// do sends a request as org and decodes a JSON response into out when non-nil.
func (s *testServer) do(t *testing.T, org, method, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if org != "" {
		req.Header.Set(OrganizationHeader, org)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (s *testServer) createAccount(t *testing.T, name, opening string) ledger.Account {
	t.Helper()

	var resp struct {
		Account ledger.Account `json:"account"`
	}
	rec := s.do(t, testOrg, http.MethodPost, "/api/v1/accounts", map[string]interface{}{
		"name":            name,
		"type":            "BANK",
		"opening_balance": opening,
	}, &resp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return resp.Account
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "", http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestOrganizationHeaderRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "", http.MethodGet, "/api/v1/accounts", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_organization", errorCode(t, rec))
}

func TestAccountsEndpoints(t *testing.T) {
	s := newTestServer(t)
	main := s.createAccount(t, "Main", "1000")
	cash := s.createAccount(t, "Cash", "0")

	assert.True(t, main.IsDefault)
	assert.False(t, cash.IsDefault)

	var got struct {
		Account ledger.Account `json:"account"`
	}
	rec := s.do(t, testOrg, http.MethodPost, "/api/v1/accounts/"+cash.ID+"/default", nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.Account.IsDefault)

	var list struct {
		Accounts []ledger.Account `json:"accounts"`
	}
	rec = s.do(t, testOrg, http.MethodGet, "/api/v1/accounts", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, list.Accounts, 2)

	// Another organization cannot see the account.
	rec = s.do(t, "org-2", http.MethodGet, "/api/v1/accounts/"+main.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	// Deactivation needs a zero balance.
	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/accounts/"+main.ID+"/deactivate", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", errorCode(t, rec))

	// Missing fields are bad requests, not conflicts.
	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/accounts", map[string]string{"type": "BANK"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))

	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/expenses", map[string]string{"amount": "10", "category": "fuel", "date": "05/03/2026"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", bytes.NewBufferString("{not json"))
	req.Header.Set(OrganizationHeader, testOrg)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestExpenseLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	main := s.createAccount(t, "Main", "100")

	var created struct {
		Expense ledger.Expense `json:"expense"`
	}
	rec := s.do(t, testOrg, http.MethodPost, "/api/v1/expenses", map[string]interface{}{
		"amount":            "150",
		"category":          "RENT",
		"description":       "Office rent",
		"source_account_id": main.ID,
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, ledger.StatusPending, created.Expense.Status)
	assert.Equal(t, ledger.SourceManual, created.Expense.SourceType)

	// More than the balance is refused.
	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/expenses/"+created.Expense.ID+"/pay", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_balance", errorCode(t, rec))

	var paid struct {
		Expense ledger.Expense `json:"expense"`
	}
	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/expenses/"+created.Expense.ID+"/pay",
		map[string]interface{}{"amount": "60"}, &paid)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, paid.Expense.PaidAmount.Equal(decimal.NewFromInt(60)))

	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/expenses/"+created.Expense.ID+"/pay",
		map[string]interface{}{"amount": "-1"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_amount", errorCode(t, rec))

	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/expenses/"+created.Expense.ID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/expenses/"+created.Expense.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_cancelled", errorCode(t, rec))

	var account struct {
		Account ledger.Account `json:"account"`
	}
	s.do(t, testOrg, http.MethodGet, "/api/v1/accounts/"+main.ID, nil, &account)
	assert.True(t, account.Account.Balance.Equal(decimal.NewFromInt(100)))

	var report struct {
		Report reconcile.Report `json:"report"`
	}
	rec = s.do(t, testOrg, http.MethodGet, "/api/v1/accounts/"+main.ID+"/reconcile", nil, &report)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, report.Report.IsBalanced)
}

func TestCreateExpenseRejectsRunSource(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, testOrg, http.MethodPost, "/api/v1/expenses", map[string]interface{}{
		"amount":      "10",
		"category":    "SALARIES",
		"source_type": "PAYROLL",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransfersOverHTTP(t *testing.T) {
	s := newTestServer(t)
	main := s.createAccount(t, "Main", "100")
	cash := s.createAccount(t, "Cash", "0")

	rec := s.do(t, testOrg, http.MethodPost, "/api/v1/transfers", map[string]interface{}{
		"from_account_id": main.ID,
		"to_account_id":   main.ID,
		"amount":          "10",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "same_account", errorCode(t, rec))

	var created struct {
		Transfer ledger.Transfer `json:"transfer"`
	}
	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/transfers", map[string]interface{}{
		"from_account_id": main.ID,
		"to_account_id":   cash.ID,
		"amount":          "40",
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, ledger.StatusCompleted, created.Transfer.Status)

	var reconciled struct {
		Reports    []reconcile.Report `json:"reports"`
		IsBalanced bool               `json:"is_balanced"`
	}
	rec = s.do(t, testOrg, http.MethodGet, "/api/v1/reconcile", nil, &reconciled)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, reconciled.Reports, 2)
	assert.True(t, reconciled.IsBalanced)

	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/transfers/"+created.Transfer.ID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var account struct {
		Account ledger.Account `json:"account"`
	}
	s.do(t, testOrg, http.MethodGet, "/api/v1/accounts/"+cash.ID, nil, &account)
	assert.True(t, account.Account.Balance.IsZero())
}

func TestPaymentsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	main := s.createAccount(t, "Main", "0")

	var created struct {
		Payment ledger.Payment `json:"payment"`
	}
	rec := s.do(t, testOrg, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"account_id":  main.ID,
		"client_name": "Acme",
		"amount":      "250.50",
		"status":      "PENDING",
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/payments/"+created.Payment.ID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sub struct {
		Payment ledger.SubcontractPayment `json:"subcontract_payment"`
	}
	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/subcontract-payments", map[string]interface{}{
		"account_id":     main.ID,
		"subcontract_id": "sc-1",
		"amount":         "50.50",
	}, &sub)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var account struct {
		Account ledger.Account `json:"account"`
	}
	s.do(t, testOrg, http.MethodGet, "/api/v1/accounts/"+main.ID, nil, &account)
	assert.True(t, account.Account.Balance.Equal(decimal.NewFromInt(200)))

	rec = s.do(t, testOrg, http.MethodDelete, "/api/v1/subcontract-payments/"+sub.Payment.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPayrollRunOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, err := s.ledger.Conn().ExecContext(context.Background(), `
		INSERT INTO employees (id, organization_id, name, basic_salary, allowances, deductions, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`, uuid.NewString(), testOrg, "Aisha", 500000, 100000, 50000)
	require.NoError(t, err)

	var created struct {
		Run runs.PayrollRun `json:"payroll_run"`
	}
	rec := s.do(t, testOrg, http.MethodPost, "/api/v1/payroll-runs", map[string]string{"month": "2026-02"}, &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	base := "/api/v1/payroll-runs/" + created.Run.ID

	// Posting an empty run is refused.
	rec = s.do(t, testOrg, http.MethodPost, base+"/post", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "empty_run", errorCode(t, rec))

	var populated struct {
		Run runs.PayrollRun `json:"payroll_run"`
	}
	rec = s.do(t, testOrg, http.MethodPost, base+"/populate", nil, &populated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, populated.Run.Items, 1)
	assert.True(t, populated.Run.TotalNet.Equal(decimal.NewFromInt(5500)))

	var updated struct {
		Run runs.PayrollRun `json:"payroll_run"`
	}
	rec = s.do(t, testOrg, http.MethodPatch, fmt.Sprintf("%s/items/%s", base, populated.Run.Items[0].ID),
		map[string]string{"deductions": "0"}, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, updated.Run.TotalNet.Equal(decimal.NewFromInt(6000)))

	rec = s.do(t, testOrg, http.MethodPost, base+"/post", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var expenses struct {
		Expenses []ledger.Expense `json:"expenses"`
	}
	s.do(t, testOrg, http.MethodGet, "/api/v1/expenses?status=PENDING", nil, &expenses)
	require.Len(t, expenses.Expenses, 1)
	assert.Equal(t, ledger.SourcePayroll, expenses.Expenses[0].SourceType)
	assert.Equal(t, "2026-02-28", expenses.Expenses[0].Date)

	// Generated expenses cannot be deleted directly.
	rec = s.do(t, testOrg, http.MethodDelete, "/api/v1/expenses/"+expenses.Expenses[0].ID, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "protected_source", errorCode(t, rec))

	// Nor cancelled outside their run.
	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/expenses/"+expenses.Expenses[0].ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "protected_source", errorCode(t, rec))

	rec = s.do(t, testOrg, http.MethodPost, base+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.do(t, testOrg, http.MethodGet, "/api/v1/expenses?status=PENDING", nil, &expenses)
	assert.Empty(t, expenses.Expenses)
}

func TestCalculateEndpoint(t *testing.T) {
	s := newTestServer(t)

	var resp struct {
		Totals billing.Totals `json:"totals"`
	}
	rec := s.do(t, "", http.MethodPost, "/api/v1/calculate", map[string]interface{}{
		"items": []map[string]string{
			{"description": "Consulting", "quantity": "3", "unit_price": "33.33"},
		},
	}, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "99.99", resp.Totals.Subtotal.StringFixed(2))
	assert.Equal(t, "15.00", resp.Totals.VATAmount.StringFixed(2))
	assert.Equal(t, "114.99", resp.Totals.TotalAmount.StringFixed(2))

	rec = s.do(t, "", http.MethodPost, "/api/v1/calculate", map[string]interface{}{
		"items": []map[string]string{
			{"description": "Broken", "quantity": "0", "unit_price": "10"},
		},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, "", http.MethodPost, "/api/v1/calculate", map[string]interface{}{
		"items": []map[string]string{
			{"description": "Too much", "quantity": "1", "unit_price": "184467440737095517.16"},
		},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_amount", errorCode(t, rec))
}

func TestInvoicesAndQuotationsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	items := []map[string]string{{"description": "Design", "quantity": "2", "unit_price": "50"}}

	var quotation struct {
		Quotation billing.Quotation `json:"quotation"`
	}
	rec := s.do(t, testOrg, http.MethodPost, "/api/v1/quotations", map[string]interface{}{
		"client_name": "Acme",
		"items":       items,
		"vat_percent": "5",
	}, &quotation)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var converted struct {
		Invoice billing.Invoice `json:"invoice"`
	}
	rec = s.do(t, testOrg, http.MethodPost, "/api/v1/quotations/"+quotation.Quotation.ID+"/convert", nil, &converted)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, billing.InvoiceDraft, converted.Invoice.Status)
	assert.Equal(t, "105.00", converted.Invoice.TotalAmount.StringFixed(2))

	base := "/api/v1/invoices/" + converted.Invoice.ID
	rec = s.do(t, testOrg, http.MethodPost, base+"/credit-note", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, testOrg, http.MethodPost, base+"/issue", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var note struct {
		Invoice billing.Invoice `json:"invoice"`
	}
	rec = s.do(t, testOrg, http.MethodPost, base+"/credit-note", nil, &note)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, billing.KindCreditNote, note.Invoice.Kind)
	assert.Equal(t, "-105.00", note.Invoice.TotalAmount.StringFixed(2))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", ledger.NewNotFound("account", "a"), http.StatusNotFound},
		{"empty run", ledger.NewStateError("payroll run", "r", "DRAFT", "post", ledger.ErrEmptyRun), http.StatusUnprocessableEntity},
		{"already cancelled", ledger.NewAlreadyCancelled("expense", "e", "cancel"), http.StatusConflict},
		{"wrapped invalid state", fmt.Errorf("op: %w", ledger.ErrInvalidState), http.StatusConflict},
		{"validation", fmt.Errorf("account name is required: %w", ledger.ErrValidation), http.StatusBadRequest},
		{"protected source", ledger.NewStateError("expense", "e", "PENDING", "cancel", ledger.ErrProtectedSource), http.StatusConflict},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := classify(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}
