package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

const testOrg = "org-1"

func dec(s string) decimal.Decimal {
	return money.MustParse(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func setup(t *testing.T) (*ledger.Ledger, *Engine) {
	t.Helper()

	dir := t.TempDir()
	conn, err := db.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	seq, err := numbering.Open(filepath.Join(dir, "seq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = seq.Close() })

	return ledger.New(conn, seq), New(conn)
}

func newAccount(t *testing.T, l *ledger.Ledger, name, opening string) *ledger.Account {
	t.Helper()

	a, err := l.CreateAccount(context.Background(), testOrg, ledger.CreateAccountInput{
		Name: name, Type: ledger.AccountTypeBank, Currency: "SAR", OpeningBalance: dec(opening),
	})
	require.NoError(t, err)
	return a
}

func TestEvaluate(t *testing.T) {
	c := Components{
		OpeningBalance: dec("1000"),
		PaymentsIn:     dec("250"),
		ExpensesOut:    dec("400"),
		SubcontractOut: dec("100"),
		TransfersIn:    dec("50"),
		TransfersOut:   dec("75.50"),
	}
	assert.True(t, c.Expected().Equal(dec("724.50")))

	tests := []struct {
		stored   string
		delta    string
		balanced bool
	}{
		{"724.50", "0", true},
		{"724.51", "0.01", true},
		{"724.49", "-0.01", true},
		{"724.52", "0.02", false},
		{"700", "-24.50", false},
	}
	for _, tt := range tests {
		t.Run(tt.stored, func(t *testing.T) {
			expected, delta, balanced := Evaluate(c, dec(tt.stored))
			assert.True(t, expected.Equal(dec("724.50")))
			assert.True(t, delta.Equal(dec(tt.delta)), "delta = %s", delta)
			assert.Equal(t, tt.balanced, balanced)
		})
	}
}

func TestReconciliationIdentityHoldsAfterActivity(t *testing.T) {
	l, engine := setup(t)
	ctx := context.Background()

	main := newAccount(t, l, "Main", "1000")
	cash := newAccount(t, l, "Cash", "200")

	_, err := l.CreatePayment(ctx, testOrg, ledger.CreatePaymentInput{Amount: dec("500"), AccountID: main.ID, ClientName: "ACME"})
	require.NoError(t, err)
	_, err = l.CreatePayment(ctx, testOrg, ledger.CreatePaymentInput{Amount: dec("999"), AccountID: main.ID, Status: ledger.StatusPending})
	require.NoError(t, err)
	cancelled, err := l.CreatePayment(ctx, testOrg, ledger.CreatePaymentInput{Amount: dec("30"), AccountID: main.ID})
	require.NoError(t, err)
	_, err = l.CancelPayment(ctx, testOrg, cancelled.ID)
	require.NoError(t, err)

	e, err := l.CreateExpense(ctx, testOrg, ledger.CreateExpenseInput{Amount: dec("600"), Category: "rent", SourceAccountID: main.ID})
	require.NoError(t, err)
	_, err = l.PayExpense(ctx, testOrg, e.ID, ledger.PayExpenseInput{Amount: decPtr("250.25")})
	require.NoError(t, err)

	refunded, err := l.CreateExpense(ctx, testOrg, ledger.CreateExpenseInput{
		Amount: dec("100"), Category: "fuel", Status: ledger.StatusCompleted, SourceAccountID: main.ID,
	})
	require.NoError(t, err)
	_, err = l.CancelExpense(ctx, testOrg, refunded.ID)
	require.NoError(t, err)

	_, err = l.CreateSubcontractPayment(ctx, testOrg, ledger.CreateSubcontractPaymentInput{
		Amount: dec("120"), AccountID: main.ID, SubcontractID: "sub-1",
	})
	require.NoError(t, err)

	_, err = l.CreateTransfer(ctx, testOrg, ledger.CreateTransferInput{FromAccountID: main.ID, ToAccountID: cash.ID, Amount: dec("300")})
	require.NoError(t, err)
	_, err = l.CreateTransfer(ctx, testOrg, ledger.CreateTransferInput{FromAccountID: cash.ID, ToAccountID: main.ID, Amount: dec("50")})
	require.NoError(t, err)
	undone, err := l.CreateTransfer(ctx, testOrg, ledger.CreateTransferInput{FromAccountID: cash.ID, ToAccountID: main.ID, Amount: dec("10")})
	require.NoError(t, err)
	_, err = l.CancelTransfer(ctx, testOrg, undone.ID)
	require.NoError(t, err)

	r, err := engine.Reconcile(ctx, testOrg, main.ID)
	require.NoError(t, err)

	assert.True(t, r.OpeningBalance.Equal(dec("1000")))
	assert.True(t, r.PaymentsIn.Equal(dec("500")))
	assert.True(t, r.ExpensesOut.Equal(dec("250.25")))
	assert.True(t, r.SubcontractOut.Equal(dec("120")))
	assert.True(t, r.TransfersIn.Equal(dec("50")))
	assert.True(t, r.TransfersOut.Equal(dec("300")))
	assert.True(t, r.Expected.Equal(dec("879.75")), "expected = %s", r.Expected)
	assert.True(t, r.Stored.Equal(r.Expected))
	assert.True(t, r.Delta.IsZero())
	assert.True(t, r.IsBalanced)

	all, err := engine.ReconcileAll(ctx, testOrg)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, report := range all {
		assert.True(t, report.IsBalanced, report.AccountName)
	}
	assert.Equal(t, main.ID, all[0].AccountID, "default account first")
	assert.True(t, all[1].Expected.Equal(dec("450")))
}

func TestReconcileReportsDriftWithoutCorrecting(t *testing.T) {
	l, engine := setup(t)
	ctx := context.Background()
	a := newAccount(t, l, "Main", "100")

	_, err := l.Conn().ExecContext(ctx, `UPDATE accounts SET balance = balance + 5 WHERE id = ?`, a.ID)
	require.NoError(t, err)

	r, err := engine.Reconcile(ctx, testOrg, a.ID)
	require.NoError(t, err)
	assert.False(t, r.IsBalanced)
	assert.True(t, r.Delta.Equal(dec("0.05")), "delta = %s", r.Delta)
	assert.True(t, r.Expected.Equal(dec("100")))

	stored, err := l.GetAccount(ctx, testOrg, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec("100.05")), "reconcile never writes")

	_, err = l.Conn().ExecContext(ctx, `UPDATE accounts SET balance = balance + 1 WHERE id = ?`, a.ID)
	require.NoError(t, err)
	r, err = engine.Reconcile(ctx, testOrg, a.ID)
	require.NoError(t, err)
	assert.False(t, r.IsBalanced)

	_, err = l.Conn().ExecContext(ctx, `UPDATE accounts SET balance = 10001 WHERE id = ?`, a.ID)
	require.NoError(t, err)
	r, err = engine.Reconcile(ctx, testOrg, a.ID)
	require.NoError(t, err)
	assert.True(t, r.IsBalanced, "one minor unit of drift is tolerated")
}

func TestReconcileUnknownAccount(t *testing.T) {
	l, engine := setup(t)
	ctx := context.Background()
	a := newAccount(t, l, "Main", "100")

	_, err := engine.Reconcile(ctx, testOrg, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = engine.Reconcile(ctx, "org-2", a.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	reports, err := engine.ReconcileAll(ctx, "org-2")
	require.NoError(t, err)
	assert.Empty(t, reports)
}
