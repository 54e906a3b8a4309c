package db

import (
	"context"
	"fmt"
)

// Stats represents ledger row counts.
type Stats struct {
	Accounts            int
	Expenses            int
	PendingExpenses     int
	Payments            int
	Transfers           int
	SubcontractPayments int
	PayrollRuns         int
	ExpenseRuns         int
	Invoices            int
	Quotations          int
}

// GetStats retrieves ledger statistics, optionally scoped to one organization.
func GetStats(ctx context.Context, conn *Connection, organizationID string) (*Stats, error) {
	var stats Stats

	counts := []struct {
		dest  *int
		query string
	}{
		{&stats.Accounts, `SELECT COUNT(*) FROM accounts WHERE (? = '' OR organization_id = ?)`},
		{&stats.Expenses, `SELECT COUNT(*) FROM expenses WHERE (? = '' OR organization_id = ?)`},
		{&stats.PendingExpenses, `SELECT COUNT(*) FROM expenses WHERE status = 'PENDING' AND (? = '' OR organization_id = ?)`},
		{&stats.Payments, `SELECT COUNT(*) FROM payments WHERE (? = '' OR organization_id = ?)`},
		{&stats.Transfers, `SELECT COUNT(*) FROM transfers WHERE (? = '' OR organization_id = ?)`},
		{&stats.SubcontractPayments, `SELECT COUNT(*) FROM subcontract_payments WHERE (? = '' OR organization_id = ?)`},
		{&stats.PayrollRuns, `SELECT COUNT(*) FROM payroll_runs WHERE (? = '' OR organization_id = ?)`},
		{&stats.ExpenseRuns, `SELECT COUNT(*) FROM expense_runs WHERE (? = '' OR organization_id = ?)`},
		{&stats.Invoices, `SELECT COUNT(*) FROM invoices WHERE (? = '' OR organization_id = ?)`},
		{&stats.Quotations, `SELECT COUNT(*) FROM quotations WHERE (? = '' OR organization_id = ?)`},
	}

	for _, c := range counts {
		if err := conn.QueryRowContext(ctx, c.query, organizationID, organizationID).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to get stats: %w", err)
		}
	}

	return &stats, nil
}
