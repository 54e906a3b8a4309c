package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/money"
)

// Ledger error taxonomy. Every error returned by this package (and by the run
// orchestrators built on it) matches one of these with errors.Is.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrProtectedSource     = errors.New("protected source")
	ErrSameAccount         = errors.New("source and destination account are the same")
	ErrEmptyRun            = errors.New("run has no line items")
	ErrAlreadyCancelled    = errors.New("already cancelled")
	ErrValidation          = errors.New("validation failed")
)

// InsufficientBalanceError reports a rejected debit. Available is the balance
// observed when the debit was refused.
type InsufficientBalanceError struct {
	AccountID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on account %s: requested %s, available %s",
		e.AccountID, money.Format(e.Requested), money.Format(e.Available))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// AmountError reports a non-positive or over-remaining amount.
type AmountError struct {
	Requested decimal.Decimal
	// Remaining is the outstanding balance of the obligation, when one applies.
	Remaining *decimal.Decimal
	Reason    string
}

func (e *AmountError) Error() string {
	if e.Remaining != nil {
		return fmt.Sprintf("invalid amount %s: %s (remaining %s)",
			e.Requested.String(), e.Reason, money.Format(*e.Remaining))
	}
	return fmt.Sprintf("invalid amount %s: %s", e.Requested.String(), e.Reason)
}

func (e *AmountError) Unwrap() error { return ErrInvalidAmount }

// NotFoundError reports a missing entity, or one outside the caller's organization.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StateError reports an operation attempted outside its allowed lifecycle state.
// Err is ErrInvalidState, ErrAlreadyCancelled, ErrProtectedSource,
// ErrSameAccount or ErrEmptyRun.
type StateError struct {
	Entity string
	ID     string
	Status string
	Op     string
	Err    error
}

func (e *StateError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("cannot %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("cannot %s %s %s in status %s: %v", e.Op, e.Entity, e.ID, e.Status, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// NewNotFound returns a NotFoundError.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewInvalidState returns a StateError wrapping ErrInvalidState.
func NewInvalidState(entity, id, status, op string) error {
	return &StateError{Entity: entity, ID: id, Status: status, Op: op, Err: ErrInvalidState}
}

// NewAlreadyCancelled returns a StateError wrapping ErrAlreadyCancelled.
func NewAlreadyCancelled(entity, id, op string) error {
	return &StateError{Entity: entity, ID: id, Status: "CANCELLED", Op: op, Err: ErrAlreadyCancelled}
}

// NewStateError returns a StateError wrapping err.
func NewStateError(entity, id, status, op string, err error) error {
	return &StateError{Entity: entity, ID: id, Status: status, Op: op, Err: err}
}

func invalidAmount(requested decimal.Decimal, reason string) error {
	return &AmountError{Requested: requested, Reason: reason}
}

// ValidateAmount checks that amount is positive and fits the stored scale and range.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalidAmount(amount, "must be greater than zero")
	}
	return checkStorable(amount)
}

// checkStorable accepts any sign but rejects amounts money.ToMinor would refuse.
func checkStorable(amount decimal.Decimal) error {
	if !money.IsMinorExact(amount) {
		return invalidAmount(amount, "must not have more than two fractional digits")
	}
	if !money.InRange(amount) {
		return invalidAmount(amount, "must be below "+money.Limit.String())
	}
	return nil
}

// ToMinor converts an amount to its stored form, reporting ErrInvalidAmount
// when it cannot be stored exactly.
func ToMinor(amount decimal.Decimal) (int64, error) {
	if err := checkStorable(amount); err != nil {
		return 0, err
	}
	return money.ToMinor(amount)
}
