// Package reconcile recomputes account balances from their transaction
// history and reports drift against the stored balance. It never writes.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
)

// Components are the per-source sums that make up an account's expected balance.
type Components struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	PaymentsIn     decimal.Decimal `json:"payments_in"`
	ExpensesOut    decimal.Decimal `json:"expenses_out"`
	SubcontractOut decimal.Decimal `json:"subcontract_out"`
	TransfersIn    decimal.Decimal `json:"transfers_in"`
	TransfersOut   decimal.Decimal `json:"transfers_out"`
}

// Expected is opening + payments in - expenses - subcontract payments
// + transfers in - transfers out.
func (c Components) Expected() decimal.Decimal {
	return c.OpeningBalance.
		Add(c.PaymentsIn).
		Sub(c.ExpensesOut).
		Sub(c.SubcontractOut).
		Add(c.TransfersIn).
		Sub(c.TransfersOut)
}

// Report is the reconciliation result for one account.
type Report struct {
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	Currency    string          `json:"currency"`
	Components                  // every component sum, for audit
	Expected    decimal.Decimal `json:"expected"`
	Stored      decimal.Decimal `json:"stored"`
	Delta       decimal.Decimal `json:"delta"`
	IsBalanced  bool            `json:"is_balanced"`
}

// Evaluate compares the stored balance with the expected one. Delta is
// stored - expected; the account is balanced within one minor unit.
func Evaluate(c Components, stored decimal.Decimal) (expected, delta decimal.Decimal, balanced bool) {
	expected = c.Expected()
	delta = stored.Sub(expected)
	return expected, delta, delta.Abs().LessThanOrEqual(money.Tolerance)
}

// Engine runs reconciliations against the ledger store.
type Engine struct {
	conn *db.Connection
}

// New creates an Engine over conn.
func New(conn *db.Connection) *Engine {
	return &Engine{conn: conn}
}

// All component sums come from one statement so they describe a single
// snapshot of the account.
const reconcileQuery = `
	SELECT
		a.id,
		a.name,
		a.currency,
		a.opening_balance,
		a.balance,
		(SELECT COALESCE(SUM(p.amount), 0) FROM payments p
			WHERE p.account_id = a.id AND p.organization_id = a.organization_id AND p.status = 'COMPLETED'),
		(SELECT COALESCE(SUM(e.paid_amount), 0) FROM expenses e
			WHERE e.source_account_id = a.id AND e.organization_id = a.organization_id AND e.status <> 'CANCELLED'),
		(SELECT COALESCE(SUM(s.amount), 0) FROM subcontract_payments s
			WHERE s.account_id = a.id AND s.organization_id = a.organization_id AND s.status = 'COMPLETED'),
		(SELECT COALESCE(SUM(t.amount), 0) FROM transfers t
			WHERE t.to_account_id = a.id AND t.organization_id = a.organization_id AND t.status = 'COMPLETED'),
		(SELECT COALESCE(SUM(t.amount), 0) FROM transfers t
			WHERE t.from_account_id = a.id AND t.organization_id = a.organization_id AND t.status = 'COMPLETED')
	FROM accounts a
	WHERE a.organization_id = ? AND (? = '' OR a.id = ?)
	ORDER BY a.is_default DESC, a.name`

// Reconcile reports on one account of the organization.
func (e *Engine) Reconcile(ctx context.Context, organizationID, accountID string) (*Report, error) {
	if accountID == "" {
		return nil, ledger.NewNotFound("account", accountID)
	}
	reports, err := e.query(ctx, organizationID, accountID)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ledger.NewNotFound("account", accountID)
	}
	return &reports[0], nil
}

// ReconcileAll reports on every account of the organization.
func (e *Engine) ReconcileAll(ctx context.Context, organizationID string) ([]Report, error) {
	return e.query(ctx, organizationID, "")
}

func (e *Engine) query(ctx context.Context, organizationID, accountID string) ([]Report, error) {
	rows, err := e.conn.QueryContext(ctx, reconcileQuery, organizationID, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile accounts: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation: %w", err)
		}
		if !r.IsBalanced {
			slog.Warn("account balance drift detected",
				"org_id", organizationID,
				"account_id", r.AccountID,
				"stored", money.Format(r.Stored),
				"expected", money.Format(r.Expected),
				"delta", money.Format(r.Delta),
			)
		} else {
			slog.Debug("account reconciled", "org_id", organizationID, "account_id", r.AccountID)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func scanReport(rows *sql.Rows) (*Report, error) {
	var r Report
	var opening, stored, paymentsIn, expensesOut, subcontractOut, transfersIn, transfersOut int64

	if err := rows.Scan(
		&r.AccountID,
		&r.AccountName,
		&r.Currency,
		&opening,
		&stored,
		&paymentsIn,
		&expensesOut,
		&subcontractOut,
		&transfersIn,
		&transfersOut,
	); err != nil {
		return nil, err
	}

	r.Components = Components{
		OpeningBalance: money.FromMinor(opening),
		PaymentsIn:     money.FromMinor(paymentsIn),
		ExpensesOut:    money.FromMinor(expensesOut),
		SubcontractOut: money.FromMinor(subcontractOut),
		TransfersIn:    money.FromMinor(transfersIn),
		TransfersOut:   money.FromMinor(transfersOut),
	}
	r.Stored = money.FromMinor(stored)
	r.Expected, r.Delta, r.IsBalanced = Evaluate(r.Components, r.Stored)
	return &r, nil
}
