package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/money"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

// CreateExpenseInput describes a new expense. Status defaults to PENDING and
// SourceType to MANUAL. A COMPLETED expense needs a source account and is
// deducted immediately.
type CreateExpenseInput struct {
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Date            string          `json:"date"`
	ProjectID       string          `json:"project_id"`
	SourceAccountID string          `json:"source_account_id"`
	Status          Status          `json:"status"`
	SourceType      SourceType      `json:"source_type"`
	SourceID        string          `json:"source_id"`
}

// PayExpenseInput settles part or all of an expense. A nil Amount pays the
// remaining balance; an empty AccountID uses the expense's source account.
type PayExpenseInput struct {
	AccountID string           `json:"account_id"`
	Amount    *decimal.Decimal `json:"amount"`
}

// ExpenseFilter narrows ListExpenses. Zero values match everything.
type ExpenseFilter struct {
	Status    Status
	AccountID string
	ProjectID string
	SourceID  string
}

const expenseColumns = `id, organization_id, number, project_id, category, description, expense_date,
	amount, paid_amount, status, source_account_id, source_type, source_id, created_at, updated_at`

// CreateExpense records an expense. PENDING expenses are obligations with no
// balance effect; COMPLETED ones debit the source account in the same unit of work.
func (l *Ledger) CreateExpense(ctx context.Context, organizationID string, in CreateExpenseInput) (*Expense, error) {
	in = normalizeExpenseInput(in)
	if in.Status == StatusCompleted && in.SourceAccountID != "" {
		if err := l.EnsureAvailable(ctx, organizationID, in.SourceAccountID, in.Amount); err != nil {
			return nil, err
		}
	}

	var created *Expense
	err := l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = l.CreateExpenseTx(ctx, tx, organizationID, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("expense created",
		"org_id", organizationID,
		"expense_id", created.ID,
		"number", created.Number,
		"status", created.Status,
		"amount", money.Format(created.Amount),
	)
	return created, nil
}

// CreateExpenseTx records an expense inside an existing unit of work. Run
// orchestrators use it to create many obligations atomically.
func (l *Ledger) CreateExpenseTx(ctx context.Context, tx *sql.Tx, organizationID string, in CreateExpenseInput) (*Expense, error) {
	in = normalizeExpenseInput(in)

	if err := ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.Category == "" {
		return nil, fmt.Errorf("expense category is required: %w", ErrValidation)
	}
	if in.Status != StatusPending && in.Status != StatusCompleted {
		return nil, NewInvalidState("expense", "", string(in.Status), "create")
	}
	if in.Status == StatusCompleted && in.SourceAccountID == "" {
		return nil, NewInvalidState("expense", "", string(in.Status), "create without a source account")
	}
	date, err := l.normalizeDate(in.Date)
	if err != nil {
		return nil, err
	}

	if in.SourceAccountID != "" {
		if _, err := getAccount(ctx, tx, organizationID, in.SourceAccountID); err != nil {
			return nil, err
		}
	}

	number, err := l.nextNumber(ctx, organizationID, numbering.KindExpense)
	if err != nil {
		return nil, err
	}

	amount, err := ToMinor(in.Amount)
	if err != nil {
		return nil, err
	}
	paid := int64(0)
	var effects []Effect
	if in.Status == StatusCompleted {
		paid = amount
		effects = []Effect{debit(in.SourceAccountID, in.Amount)}
	}

	id := newID()
	now := l.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, organization_id, number, project_id, category, description, expense_date,
			amount, paid_amount, status, source_account_id, source_type, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, organizationID, number, nullString(in.ProjectID), in.Category, in.Description, date,
		amount, paid, string(in.Status), nullString(in.SourceAccountID), string(in.SourceType),
		nullString(in.SourceID), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	if err := l.apply(ctx, tx, organizationID, effects); err != nil {
		return nil, err
	}

	return getExpense(ctx, tx, organizationID, id)
}

// PayExpense settles part or all of a PENDING expense, debiting the source
// account behind both guard layers. The expense flips to COMPLETED once the
// paid amount reaches the total.
func (l *Ledger) PayExpense(ctx context.Context, organizationID, expenseID string, in PayExpenseInput) (*Expense, error) {
	current, err := l.GetExpense(ctx, organizationID, expenseID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanExpensePayment(*current, in.AccountID, in.Amount)
	if err != nil {
		return nil, err
	}
	if err := l.precheck(ctx, organizationID, plan.Effects); err != nil {
		return nil, err
	}

	var paid *Expense
	err = l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		e, err := getExpense(ctx, tx, organizationID, expenseID)
		if err != nil {
			return err
		}
		// Re-plan against the row as seen inside the unit of work.
		plan, err = PlanExpensePayment(*e, in.AccountID, in.Amount)
		if err != nil {
			return err
		}
		if err := l.apply(ctx, tx, organizationID, plan.Effects); err != nil {
			return err
		}

		paidMinor, err := ToMinor(plan.PaidAmount)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE expenses SET paid_amount = ?, status = ?, source_account_id = ?, updated_at = ?
			WHERE id = ?
		`, paidMinor, string(plan.Status), plan.AccountID, l.now(), expenseID); err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}

		paid, err = getExpense(ctx, tx, organizationID, expenseID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("expense paid",
		"org_id", organizationID,
		"expense_id", expenseID,
		"account_id", plan.AccountID,
		"amount", money.Format(plan.Amount),
		"status", paid.Status,
	)
	return paid, nil
}

// CancelExpense cancels a manual expense and credits back exactly what was
// paid. Run-generated expenses are cancelled through their run.
func (l *Ledger) CancelExpense(ctx context.Context, organizationID, expenseID string) (*Expense, error) {
	var cancelled *Expense
	err := l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		e, err := getExpense(ctx, tx, organizationID, expenseID)
		if err != nil {
			return err
		}
		if e.SourceType.Generated() {
			return NewStateError("expense", e.ID, string(e.Status), "cancel", ErrProtectedSource)
		}
		cancelled, err = l.CancelExpenseTx(ctx, tx, organizationID, expenseID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("expense cancelled",
		"org_id", organizationID,
		"expense_id", expenseID,
		"restored", money.Format(cancelled.PaidAmount),
	)
	return cancelled, nil
}

// CancelExpenseTx cancels an expense inside an existing unit of work. It does
// not check the source type; run orchestrators call it for their own expenses.
func (l *Ledger) CancelExpenseTx(ctx context.Context, tx *sql.Tx, organizationID, expenseID string) (*Expense, error) {
	e, err := getExpense(ctx, tx, organizationID, expenseID)
	if err != nil {
		return nil, err
	}
	effects, err := PlanExpenseCancel(*e)
	if err != nil {
		return nil, err
	}
	if err := l.apply(ctx, tx, organizationID, effects); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE expenses SET status = ?, updated_at = ? WHERE id = ?`,
		string(StatusCancelled), l.now(), expenseID,
	); err != nil {
		return nil, fmt.Errorf("failed to cancel expense: %w", err)
	}

	return getExpense(ctx, tx, organizationID, expenseID)
}

// DeleteExpense hard-deletes a manual expense, crediting back anything paid.
// Run-generated expenses are protected and can only be cancelled by their run.
func (l *Ledger) DeleteExpense(ctx context.Context, organizationID, expenseID string) error {
	var restored decimal.Decimal
	err := l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		e, err := getExpense(ctx, tx, organizationID, expenseID)
		if err != nil {
			return err
		}
		effects, err := PlanExpenseDelete(*e)
		if err != nil {
			return err
		}
		if err := l.apply(ctx, tx, organizationID, effects); err != nil {
			return err
		}
		for _, eff := range effects {
			restored = restored.Add(eff.Amount)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, expenseID); err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("expense deleted", "org_id", organizationID, "expense_id", expenseID, "restored", money.Format(restored))
	return nil
}

// GetExpense returns one expense of the organization.
func (l *Ledger) GetExpense(ctx context.Context, organizationID, expenseID string) (*Expense, error) {
	return getExpense(ctx, l.conn, organizationID, expenseID)
}

// GetExpenseTx returns one expense as seen inside tx.
func (l *Ledger) GetExpenseTx(ctx context.Context, tx *sql.Tx, organizationID, expenseID string) (*Expense, error) {
	return getExpense(ctx, tx, organizationID, expenseID)
}

func getExpense(ctx context.Context, q db.Querier, organizationID, expenseID string) (*Expense, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND organization_id = ?`,
		expenseID, organizationID,
	)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("expense", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns the organization's expenses, newest first.
func (l *Ledger) ListExpenses(ctx context.Context, organizationID string, f ExpenseFilter) ([]Expense, error) {
	var where []string
	args := []interface{}{organizationID}
	where = append(where, "organization_id = ?")

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.AccountID != "" {
		where = append(where, "source_account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.SourceID != "" {
		where = append(where, "source_id = ?")
		args = append(args, f.SourceID)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY expense_date DESC, created_at DESC`

	rows, err := l.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func normalizeExpenseInput(in CreateExpenseInput) CreateExpenseInput {
	if in.Status == "" {
		in.Status = StatusPending
	}
	if in.SourceType == "" {
		in.SourceType = SourceManual
	}
	return in
}

func scanExpense(s rowScanner) (*Expense, error) {
	var e Expense
	var projectID, sourceAccountID, sourceID sql.NullString
	var status, sourceType string
	var amount, paid int64

	if err := s.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.Number,
		&projectID,
		&e.Category,
		&e.Description,
		&e.Date,
		&amount,
		&paid,
		&status,
		&sourceAccountID,
		&sourceType,
		&sourceID,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.ProjectID = projectID.String
	e.SourceAccountID = sourceAccountID.String
	e.SourceID = sourceID.String
	e.Status = Status(status)
	e.SourceType = SourceType(sourceType)
	e.Amount = money.FromMinor(amount)
	e.PaidAmount = money.FromMinor(paid)
	return &e, nil
}
