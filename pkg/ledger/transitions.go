package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// EffectKind is a balance mutation requested by a status transition.
type EffectKind string

const (
	EffectCredit EffectKind = "CREDIT"
	EffectDebit  EffectKind = "DEBIT"
)

// Effect is one balance mutation the account store must perform for a
// transition to take place.
type Effect struct {
	Kind      EffectKind
	AccountID string
	Amount    decimal.Decimal
}

func credit(accountID string, amount decimal.Decimal) Effect {
	return Effect{Kind: EffectCredit, AccountID: accountID, Amount: amount}
}

func debit(accountID string, amount decimal.Decimal) Effect {
	return Effect{Kind: EffectDebit, AccountID: accountID, Amount: amount}
}

// Direction tells whether a posting brings money in or sends it out.
type Direction int

const (
	Inflow Direction = iota
	Outflow
)

// ExpensePayment is the outcome of settling (part of) an expense.
type ExpensePayment struct {
	Amount     decimal.Decimal
	PaidAmount decimal.Decimal
	Status     Status
	AccountID  string
	Effects    []Effect
}

// PlanExpensePayment computes the next state of e after paying amount from
// accountID. A nil amount pays the full remaining balance. An empty accountID
// falls back to the account the expense is already bound to.
func PlanExpensePayment(e Expense, accountID string, amount *decimal.Decimal) (ExpensePayment, error) {
	switch e.Status {
	case StatusCancelled:
		return ExpensePayment{}, NewAlreadyCancelled("expense", e.ID, "pay")
	case StatusCompleted:
		return ExpensePayment{}, NewInvalidState("expense", e.ID, string(e.Status), "pay")
	}

	if accountID == "" {
		accountID = e.SourceAccountID
	}
	if accountID == "" {
		return ExpensePayment{}, NewInvalidState("expense", e.ID, string(e.Status), "pay without a source account")
	}
	if e.PaidAmount.IsPositive() && e.SourceAccountID != "" && accountID != e.SourceAccountID {
		return ExpensePayment{}, NewInvalidState("expense", e.ID, string(e.Status), "pay from a second account")
	}

	remaining := e.Remaining()
	pay := remaining
	if amount != nil {
		pay = *amount
	}
	if err := ValidateAmount(pay); err != nil {
		var amountErr *AmountError
		if errors.As(err, &amountErr) {
			amountErr.Remaining = &remaining
		}
		return ExpensePayment{}, err
	}
	if pay.GreaterThan(remaining) {
		return ExpensePayment{}, &AmountError{Requested: pay, Remaining: &remaining, Reason: "exceeds remaining balance"}
	}

	paid := e.PaidAmount.Add(pay)
	status := StatusPending
	if paid.GreaterThanOrEqual(e.Amount) {
		status = StatusCompleted
	}

	return ExpensePayment{
		Amount:     pay,
		PaidAmount: paid,
		Status:     status,
		AccountID:  accountID,
		Effects:    []Effect{debit(accountID, pay)},
	}, nil
}

// PlanExpenseCancel returns the effects of cancelling e: exactly the amount
// already paid goes back to the source account, never the nominal amount.
func PlanExpenseCancel(e Expense) ([]Effect, error) {
	if e.Status == StatusCancelled {
		return nil, NewAlreadyCancelled("expense", e.ID, "cancel")
	}
	if e.PaidAmount.IsPositive() {
		return []Effect{credit(e.SourceAccountID, e.PaidAmount)}, nil
	}
	return nil, nil
}

// PlanExpenseDelete returns the effects of hard-deleting e. Only manual
// expenses may be deleted; generated ones are cancelled through their run.
func PlanExpenseDelete(e Expense) ([]Effect, error) {
	if e.SourceType != SourceManual {
		return nil, NewStateError("expense", e.ID, string(e.Status), "delete", ErrProtectedSource)
	}
	if e.Status == StatusCancelled {
		return nil, nil
	}
	if e.PaidAmount.IsPositive() {
		return []Effect{credit(e.SourceAccountID, e.PaidAmount)}, nil
	}
	return nil, nil
}

// settle is the balance effect of a completed posting.
func settle(dir Direction, accountID string, amount decimal.Decimal) Effect {
	if dir == Inflow {
		return credit(accountID, amount)
	}
	return debit(accountID, amount)
}

// reverse is the inverse of settle.
func reverse(dir Direction, accountID string, amount decimal.Decimal) Effect {
	if dir == Inflow {
		return debit(accountID, amount)
	}
	return credit(accountID, amount)
}

// PlanPostingCreate returns the effects of recording a payment in status.
func PlanPostingCreate(dir Direction, status Status, accountID string, amount decimal.Decimal) ([]Effect, error) {
	switch status {
	case StatusPending:
		return nil, nil
	case StatusCompleted:
		return []Effect{settle(dir, accountID, amount)}, nil
	}
	return nil, NewInvalidState("payment", "", string(status), "create")
}

// PlanPostingComplete returns the effects of moving a PENDING payment to COMPLETED.
func PlanPostingComplete(entity, id string, dir Direction, status Status, accountID string, amount decimal.Decimal) ([]Effect, error) {
	switch status {
	case StatusPending:
		return []Effect{settle(dir, accountID, amount)}, nil
	case StatusCancelled:
		return nil, NewAlreadyCancelled(entity, id, "complete")
	}
	return nil, NewInvalidState(entity, id, string(status), "complete")
}

// PlanPostingCancel returns the effects of cancelling a payment. Only a
// COMPLETED payment has a balance effect to reverse.
func PlanPostingCancel(entity, id string, dir Direction, status Status, accountID string, amount decimal.Decimal) ([]Effect, error) {
	switch status {
	case StatusCancelled:
		return nil, NewAlreadyCancelled(entity, id, "cancel")
	case StatusCompleted:
		return []Effect{reverse(dir, accountID, amount)}, nil
	}
	return nil, nil
}

// PlanPostingDelete returns the effects of hard-deleting a payment.
func PlanPostingDelete(dir Direction, status Status, accountID string, amount decimal.Decimal) []Effect {
	if status == StatusCompleted {
		return []Effect{reverse(dir, accountID, amount)}
	}
	return nil
}

// PlanTransferCreate returns the effects of recording t.
func PlanTransferCreate(t Transfer) ([]Effect, error) {
	if t.FromAccountID == t.ToAccountID {
		return nil, NewStateError("transfer", t.ID, string(t.Status), "create", ErrSameAccount)
	}
	switch t.Status {
	case StatusPending:
		return nil, nil
	case StatusCompleted:
		return transferLegs(t), nil
	}
	return nil, NewInvalidState("transfer", t.ID, string(t.Status), "create")
}

// PlanTransferComplete returns the effects of completing a PENDING transfer.
func PlanTransferComplete(t Transfer) ([]Effect, error) {
	switch t.Status {
	case StatusPending:
		return transferLegs(t), nil
	case StatusCancelled:
		return nil, NewAlreadyCancelled("transfer", t.ID, "complete")
	}
	return nil, NewInvalidState("transfer", t.ID, string(t.Status), "complete")
}

// PlanTransferCancel reverses both legs, but only if t was COMPLETED.
func PlanTransferCancel(t Transfer) ([]Effect, error) {
	switch t.Status {
	case StatusCancelled:
		return nil, NewAlreadyCancelled("transfer", t.ID, "cancel")
	case StatusCompleted:
		return []Effect{
			debit(t.ToAccountID, t.Amount),
			credit(t.FromAccountID, t.Amount),
		}, nil
	}
	return nil, nil
}

// transferLegs debits the source before crediting the destination.
func transferLegs(t Transfer) []Effect {
	return []Effect{
		debit(t.FromAccountID, t.Amount),
		credit(t.ToAccountID, t.Amount),
	}
}
