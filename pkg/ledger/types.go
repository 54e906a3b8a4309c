// Package ledger maintains organization account balances and records the
// events that move money: expenses, incoming payments, transfers and
// subcontract payments.
//
// Balances are written only by Credit and Debit, always inside the unit of
// work of the event that causes them. Debits are guarded twice: a fast
// pre-check before the unit of work, and a conditional decrement
// ("balance = balance - x WHERE balance >= x") whose affected-row count is
// authoritative.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the kind of money store.
type AccountType string

const (
	AccountTypeBank    AccountType = "BANK"
	AccountTypeCashBox AccountType = "CASH_BOX"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountTypeBank || t == AccountTypeCashBox
}

// Account is an organization-scoped store of money.
type Account struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
	IsActive       bool            `json:"is_active"`
	IsDefault      bool            `json:"is_default"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Status is shared by expenses, payments, transfers and subcontract payments.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// SourceType distinguishes manual expenses from run-generated ones.
type SourceType string

const (
	SourceManual     SourceType = "MANUAL"
	SourcePayroll    SourceType = "PAYROLL"
	SourceExpenseRun SourceType = "EXPENSE_RUN"
)

// Generated reports whether expenses of this source type are owned by a run.
func (s SourceType) Generated() bool {
	return s == SourcePayroll || s == SourceExpenseRun
}

// Expense is an obligation to pay out of an account.
type Expense struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id"`
	Number          string          `json:"number"`
	ProjectID       string          `json:"project_id,omitempty"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Date            string          `json:"date"`
	Amount          decimal.Decimal `json:"amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Status          Status          `json:"status"`
	SourceAccountID string          `json:"source_account_id,omitempty"`
	SourceType      SourceType      `json:"source_type"`
	SourceID        string          `json:"source_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Remaining is the unpaid part of the expense.
func (e Expense) Remaining() decimal.Decimal {
	return e.Amount.Sub(e.PaidAmount)
}

// Payment is money received into an account.
type Payment struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Number         string          `json:"number"`
	ProjectID      string          `json:"project_id,omitempty"`
	ClientName     string          `json:"client_name"`
	Description    string          `json:"description"`
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	AccountID      string          `json:"account_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SubcontractPayment is money paid out of an account against a subcontract.
type SubcontractPayment struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Number         string          `json:"number"`
	SubcontractID  string          `json:"subcontract_id"`
	Description    string          `json:"description"`
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	AccountID      string          `json:"account_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Transfer moves money between two accounts of the same organization.
type Transfer struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Number         string          `json:"number"`
	Description    string          `json:"description"`
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	FromAccountID  string          `json:"from_account_id"`
	ToAccountID    string          `json:"to_account_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
