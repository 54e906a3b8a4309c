package runs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masarpro/Masar-sub000/pkg/ledger"
)

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		month string
		first string
		last  string
	}{
		{"2026-01", "2026-01-01", "2026-01-31"},
		{"2026-02", "2026-02-01", "2026-02-28"},
		{"2028-02", "2028-02-01", "2028-02-29"},
		{"2026-12", "2026-12-01", "2026-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			first, last, err := MonthBounds(tt.month)
			require.NoError(t, err)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}

	_, _, err := MonthBounds("2026-2")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestRunStateChecks(t *testing.T) {
	assert.NoError(t, CheckDraft("payroll run", "r1", RunDraft, "populate"))
	assert.ErrorIs(t, CheckDraft("payroll run", "r1", RunPosted, "populate"), ledger.ErrInvalidState)

	assert.NoError(t, CheckFinalize("payroll run", "r1", RunDraft, "post", 3))
	assert.ErrorIs(t, CheckFinalize("payroll run", "r1", RunDraft, "post", 0), ledger.ErrEmptyRun)
	assert.ErrorIs(t, CheckFinalize("expense run", "r1", RunApproved, "approve", 3), ledger.ErrInvalidState)

	for _, s := range []RunStatus{RunDraft, RunPosted, RunApproved} {
		assert.NoError(t, CheckCancel("run", "r1", s), s)
	}
	assert.ErrorIs(t, CheckCancel("run", "r1", RunCancelled), ledger.ErrAlreadyCancelled)
}

func TestPayrollNet(t *testing.T) {
	assert.True(t, PayrollNet(dec("5000"), dec("1000.10"), dec("500.05")).Equal(dec("5500.05")))
	assert.True(t, PayrollNet(dec("100"), dec("0"), dec("150")).Equal(dec("-50")))
}
