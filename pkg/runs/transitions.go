package runs

import (
	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
)

// CheckDraft allows op only while the run is DRAFT.
func CheckDraft(entity, id string, status RunStatus, op string) error {
	if status == RunDraft {
		return nil
	}
	return ledger.NewInvalidState(entity, id, string(status), op)
}

// CheckFinalize allows posting or approving a DRAFT run with at least one item.
func CheckFinalize(entity, id string, status RunStatus, op string, itemCount int) error {
	if err := CheckDraft(entity, id, status, op); err != nil {
		return err
	}
	if itemCount == 0 {
		return ledger.NewStateError(entity, id, string(status), op, ledger.ErrEmptyRun)
	}
	return nil
}

// CheckCancel allows cancelling from every status except CANCELLED.
func CheckCancel(entity, id string, status RunStatus) error {
	switch status {
	case RunCancelled:
		return ledger.NewAlreadyCancelled(entity, id, "cancel")
	case RunDraft, RunPosted, RunApproved:
		return nil
	}
	return ledger.NewInvalidState(entity, id, string(status), "cancel")
}

// PayrollNet is basic + allowances - deductions.
func PayrollNet(basic, allowances, deductions decimal.Decimal) decimal.Decimal {
	return money.Round2(basic.Add(allowances).Sub(deductions))
}

// validateComponent accepts zero or positive amounts with at most two decimals.
func validateComponent(name string, d decimal.Decimal) error {
	if d.IsNegative() {
		return &ledger.AmountError{Requested: d, Reason: name + " must not be negative"}
	}
	if !money.IsMinorExact(d) {
		return &ledger.AmountError{Requested: d, Reason: name + " must not have more than two fractional digits"}
	}
	return nil
}
