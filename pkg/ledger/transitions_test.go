package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanExpensePayment(t *testing.T) {
	pending := Expense{ID: "e1", Amount: dec("1000"), PaidAmount: dec("0"), Status: StatusPending, SourceAccountID: "acc-1"}

	tests := []struct {
		name       string
		expense    Expense
		accountID  string
		amount     string
		wantErr    error
		wantPaid   string
		wantStatus Status
	}{
		{name: "partial", expense: pending, amount: "400", wantPaid: "400", wantStatus: StatusPending},
		{name: "full remaining by default", expense: pending, wantPaid: "1000", wantStatus: StatusCompleted},
		{name: "exact remaining", expense: pending, amount: "1000", wantPaid: "1000", wantStatus: StatusCompleted},
		{name: "over remaining", expense: pending, amount: "1000.01", wantErr: ErrInvalidAmount},
		{name: "zero", expense: pending, amount: "0", wantErr: ErrInvalidAmount},
		{name: "negative", expense: pending, amount: "-1", wantErr: ErrInvalidAmount},
		{name: "sub-cent", expense: pending, amount: "0.001", wantErr: ErrInvalidAmount},
		{
			name:    "cancelled",
			expense: Expense{ID: "e2", Amount: dec("10"), Status: StatusCancelled, SourceAccountID: "acc-1"},
			wantErr: ErrAlreadyCancelled,
		},
		{
			name:    "completed",
			expense: Expense{ID: "e3", Amount: dec("10"), PaidAmount: dec("10"), Status: StatusCompleted, SourceAccountID: "acc-1"},
			wantErr: ErrInvalidState,
		},
		{
			name:    "no account",
			expense: Expense{ID: "e4", Amount: dec("10"), Status: StatusPending},
			wantErr: ErrInvalidState,
		},
		{
			name:      "second account after partial payment",
			expense:   Expense{ID: "e5", Amount: dec("10"), PaidAmount: dec("4"), Status: StatusPending, SourceAccountID: "acc-1"},
			accountID: "acc-2",
			wantErr:   ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var amount *decimal.Decimal
			if tt.amount != "" {
				amount = ptr(dec(tt.amount))
			}

			got, err := PlanExpensePayment(tt.expense, tt.accountID, amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.PaidAmount.Equal(dec(tt.wantPaid)), "paid = %s", got.PaidAmount)
			assert.Equal(t, tt.wantStatus, got.Status)
			require.Len(t, got.Effects, 1)
			assert.Equal(t, EffectDebit, got.Effects[0].Kind)
			assert.Equal(t, "acc-1", got.Effects[0].AccountID)
		})
	}
}

func TestPlanExpenseCancelRestoresPaidAmount(t *testing.T) {
	e := Expense{ID: "e1", Amount: dec("1000"), PaidAmount: dec("400"), Status: StatusPending, SourceAccountID: "acc-1"}

	effects, err := PlanExpenseCancel(e)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, EffectCredit, effects[0].Kind)
	assert.True(t, effects[0].Amount.Equal(dec("400")))

	e.PaidAmount = dec("0")
	effects, err = PlanExpenseCancel(e)
	require.NoError(t, err)
	assert.Empty(t, effects)

	e.Status = StatusCancelled
	_, err = PlanExpenseCancel(e)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestPlanExpenseDelete(t *testing.T) {
	_, err := PlanExpenseDelete(Expense{ID: "e1", SourceType: SourcePayroll, Status: StatusPending})
	assert.ErrorIs(t, err, ErrProtectedSource)

	_, err = PlanExpenseDelete(Expense{ID: "e2", SourceType: SourceExpenseRun, Status: StatusCancelled})
	assert.ErrorIs(t, err, ErrProtectedSource)

	effects, err := PlanExpenseDelete(Expense{
		ID: "e3", SourceType: SourceManual, Status: StatusCompleted,
		Amount: dec("50"), PaidAmount: dec("50"), SourceAccountID: "acc-1",
	})
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, credit("acc-1", dec("50")), effects[0])
}

func TestPlanPostingTransitions(t *testing.T) {
	amount := dec("25")

	effects, err := PlanPostingCreate(Inflow, StatusCompleted, "acc-1", amount)
	require.NoError(t, err)
	assert.Equal(t, []Effect{credit("acc-1", amount)}, effects)

	effects, err = PlanPostingCreate(Outflow, StatusCompleted, "acc-1", amount)
	require.NoError(t, err)
	assert.Equal(t, []Effect{debit("acc-1", amount)}, effects)

	effects, err = PlanPostingCreate(Outflow, StatusPending, "acc-1", amount)
	require.NoError(t, err)
	assert.Empty(t, effects)

	_, err = PlanPostingCreate(Inflow, StatusCancelled, "acc-1", amount)
	assert.ErrorIs(t, err, ErrInvalidState)

	effects, err = PlanPostingCancel("payment", "p1", Inflow, StatusCompleted, "acc-1", amount)
	require.NoError(t, err)
	assert.Equal(t, []Effect{debit("acc-1", amount)}, effects, "reversing a receipt is a debit")

	effects, err = PlanPostingCancel("payment", "p1", Outflow, StatusCompleted, "acc-1", amount)
	require.NoError(t, err)
	assert.Equal(t, []Effect{credit("acc-1", amount)}, effects)

	effects, err = PlanPostingCancel("payment", "p1", Inflow, StatusPending, "acc-1", amount)
	require.NoError(t, err)
	assert.Empty(t, effects)

	_, err = PlanPostingCancel("payment", "p1", Inflow, StatusCancelled, "acc-1", amount)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = PlanPostingComplete("payment", "p1", Inflow, StatusCompleted, "acc-1", amount)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = PlanPostingComplete("payment", "p1", Inflow, StatusCancelled, "acc-1", amount)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	assert.Empty(t, PlanPostingDelete(Inflow, StatusCancelled, "acc-1", amount))
	assert.Equal(t, []Effect{debit("acc-1", amount)}, PlanPostingDelete(Inflow, StatusCompleted, "acc-1", amount))
}

func TestPlanTransfer(t *testing.T) {
	tr := Transfer{ID: "t1", FromAccountID: "a", ToAccountID: "b", Amount: dec("50"), Status: StatusCompleted}

	effects, err := PlanTransferCreate(tr)
	require.NoError(t, err)
	assert.Equal(t, []Effect{debit("a", dec("50")), credit("b", dec("50"))}, effects)

	effects, err = PlanTransferCancel(tr)
	require.NoError(t, err)
	assert.Equal(t, []Effect{debit("b", dec("50")), credit("a", dec("50"))}, effects)

	same := tr
	same.ToAccountID = "a"
	_, err = PlanTransferCreate(same)
	assert.ErrorIs(t, err, ErrSameAccount)

	pending := tr
	pending.Status = StatusPending
	effects, err = PlanTransferCancel(pending)
	require.NoError(t, err)
	assert.Empty(t, effects)

	effects, err = PlanTransferComplete(pending)
	require.NoError(t, err)
	assert.Len(t, effects, 2)

	cancelled := tr
	cancelled.Status = StatusCancelled
	_, err = PlanTransferCancel(cancelled)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	_, err = PlanTransferComplete(cancelled)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}
