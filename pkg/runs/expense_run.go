package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
)

// ExpenseRun is a monthly batch of recurring expenses.
type ExpenseRun struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	Number         string           `json:"number"`
	Month          string           `json:"month"`
	Status         RunStatus        `json:"status"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	ItemCount      int              `json:"item_count"`
	Items          []ExpenseRunItem `json:"items"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ExpenseRunItem is one recurring expense's line in an expense run.
type ExpenseRunItem struct {
	ID                 string          `json:"id"`
	RunID              string          `json:"run_id"`
	RecurringExpenseID string          `json:"recurring_expense_id"`
	Description        string          `json:"description"`
	Category           string          `json:"category"`
	Amount             decimal.Decimal `json:"amount"`
	ExpenseID          string          `json:"expense_id,omitempty"`
}

// ExpenseRunItemUpdate edits a DRAFT expense-run item. Nil fields are unchanged.
type ExpenseRunItemUpdate struct {
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
}

// CreateExpenseRun opens a DRAFT expense run for month (YYYY-MM).
func (s *Service) CreateExpenseRun(ctx context.Context, organizationID, month string) (*ExpenseRun, error) {
	id, err := s.createRun(ctx, expenseRuns, organizationID, month)
	if err != nil {
		return nil, err
	}
	return s.GetExpenseRun(ctx, organizationID, id)
}

// PopulateExpenseRun replaces the run's items with one per recurring expense
// due in the run's month. With nothing due it fails with ErrEmptyRun and the
// existing items stay as they were.
func (s *Service) PopulateExpenseRun(ctx context.Context, organizationID, runID string) (*ExpenseRun, error) {
	var count int
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		h, err := draftRun(ctx, tx, expenseRuns, organizationID, runID, "populate")
		if err != nil {
			return err
		}
		first, last, err := MonthBounds(h.month)
		if err != nil {
			return err
		}

		due, err := dueRecurringExpenses(ctx, tx, organizationID, first, last)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return ledger.NewStateError(expenseRuns.entity, runID, string(RunDraft), "populate", ledger.ErrEmptyRun)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM expense_run_items WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear expense run items: %w", err)
		}

		for _, r := range due {
			if !s.categories.HasMapping(r.Category) {
				slog.Debug("recurring category has no mapping", "run_id", runID, "category", r.Category)
			}
			m, err := minors(r.Amount)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO expense_run_items (id, run_id, recurring_expense_id, description, category, amount)
				VALUES (?, ?, ?, ?, ?, ?)
			`, uuid.NewString(), runID, r.ID, r.Description,
				s.categories.ExpenseRunCategory(r.Category), m[0],
			); err != nil {
				return fmt.Errorf("failed to insert expense run item: %w", err)
			}
		}
		count = len(due)

		return s.recomputeTotals(ctx, tx, expenseRuns, runID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("expense run populated", "org_id", organizationID, "run_id", runID, "items", count)
	return s.GetExpenseRun(ctx, organizationID, runID)
}

// UpdateExpenseRunItem edits an item of a DRAFT run and re-aggregates the totals.
func (s *Service) UpdateExpenseRunItem(ctx context.Context, organizationID, runID, itemID string, in ExpenseRunItemUpdate) (*ExpenseRun, error) {
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := draftRun(ctx, tx, expenseRuns, organizationID, runID, "edit item of"); err != nil {
			return err
		}

		item, err := getExpenseRunItem(ctx, tx, runID, itemID)
		if err != nil {
			return err
		}
		if in.Amount != nil {
			if err := ledger.ValidateAmount(*in.Amount); err != nil {
				return err
			}
			item.Amount = *in.Amount
		}
		if in.Category != nil {
			if strings.TrimSpace(*in.Category) == "" {
				return fmt.Errorf("expense run item category is required: %w", ledger.ErrValidation)
			}
			item.Category = *in.Category
		}
		if in.Description != nil {
			item.Description = *in.Description
		}

		m, err := minors(item.Amount)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE expense_run_items SET amount = ?, category = ?, description = ? WHERE id = ?
		`, m[0], item.Category, item.Description, itemID); err != nil {
			return fmt.Errorf("failed to update expense run item: %w", err)
		}

		return s.recomputeTotals(ctx, tx, expenseRuns, runID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("expense run item updated", "org_id", organizationID, "run_id", runID, "item_id", itemID)
	return s.GetExpenseRun(ctx, organizationID, runID)
}

// ApproveExpenseRun creates one PENDING expense per item, links each item to
// its expense and flips the run to APPROVED, all in one unit of work.
func (s *Service) ApproveExpenseRun(ctx context.Context, organizationID, runID string) (*ExpenseRun, error) {
	var total decimal.Decimal
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		h, err := readRunHeader(ctx, tx, expenseRuns, organizationID, runID)
		if err != nil {
			return err
		}
		if err := CheckFinalize(expenseRuns.entity, runID, h.status, expenseRuns.finalOp, h.itemCount); err != nil {
			return err
		}
		_, monthEnd, err := MonthBounds(h.month)
		if err != nil {
			return err
		}

		items, err := listExpenseRunItems(ctx, tx, runID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ledger.NewStateError(expenseRuns.entity, runID, string(h.status), expenseRuns.finalOp, ledger.ErrEmptyRun)
		}

		amounts := make([]decimal.Decimal, 0, len(items))
		for _, item := range items {
			e, err := s.ledger.CreateExpenseTx(ctx, tx, organizationID, ledger.CreateExpenseInput{
				Amount:      item.Amount,
				Category:    item.Category,
				Description: item.Description,
				Date:        monthEnd,
				Status:      ledger.StatusPending,
				SourceType:  expenseRuns.sourceType,
				SourceID:    runID,
			})
			if err != nil {
				return err
			}
			if err := s.linkItem(ctx, tx, expenseRuns, item.ID, e.ID); err != nil {
				return err
			}
			amounts = append(amounts, item.Amount)
		}
		total = money.Sum(amounts...)

		return s.setStatus(ctx, tx, expenseRuns, runID, RunDraft, RunApproved)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("expense run approved", "org_id", organizationID, "run_id", runID, "total_amount", money.Format(total))
	return s.GetExpenseRun(ctx, organizationID, runID)
}

// CancelExpenseRun cancels the run and every linked expense still PENDING.
func (s *Service) CancelExpenseRun(ctx context.Context, organizationID, runID string) (*ExpenseRun, error) {
	if err := s.cancelRun(ctx, expenseRuns, organizationID, runID); err != nil {
		return nil, err
	}
	return s.GetExpenseRun(ctx, organizationID, runID)
}

// GetExpenseRun returns an expense run with its items.
func (s *Service) GetExpenseRun(ctx context.Context, organizationID, runID string) (*ExpenseRun, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, organization_id, number, month, status, total_amount, item_count, created_at, updated_at
		FROM expense_runs WHERE id = ? AND organization_id = ?
	`, runID, organizationID)

	run, err := scanExpenseRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFound(expenseRuns.entity, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense run: %w", err)
	}

	run.Items, err = listExpenseRunItems(ctx, s.conn, runID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListExpenseRuns returns the organization's expense runs without items, newest month first.
func (s *Service) ListExpenseRuns(ctx context.Context, organizationID string) ([]ExpenseRun, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, organization_id, number, month, status, total_amount, item_count, created_at, updated_at
		FROM expense_runs WHERE organization_id = ?
		ORDER BY month DESC, created_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expense runs: %w", err)
	}
	defer rows.Close()

	var result []ExpenseRun
	for rows.Next() {
		run, err := scanExpenseRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense run: %w", err)
		}
		result = append(result, *run)
	}
	return result, rows.Err()
}

func scanExpenseRun(s scanner) (*ExpenseRun, error) {
	var r ExpenseRun
	var status string
	var total int64

	if err := s.Scan(
		&r.ID,
		&r.OrganizationID,
		&r.Number,
		&r.Month,
		&status,
		&total,
		&r.ItemCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.Status = RunStatus(status)
	r.TotalAmount = money.FromMinor(total)
	return &r, nil
}

const expenseRunItemColumns = `id, run_id, recurring_expense_id, description, category, amount, expense_id`

func getExpenseRunItem(ctx context.Context, tx *sql.Tx, runID, itemID string) (*ExpenseRunItem, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+expenseRunItemColumns+` FROM expense_run_items WHERE id = ? AND run_id = ?`,
		itemID, runID,
	)
	item, err := scanExpenseRunItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFound("expense run item", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense run item: %w", err)
	}
	return item, nil
}

func listExpenseRunItems(ctx context.Context, q db.Querier, runID string) ([]ExpenseRunItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+expenseRunItemColumns+` FROM expense_run_items WHERE run_id = ? ORDER BY description, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expense run items: %w", err)
	}
	defer rows.Close()

	items := []ExpenseRunItem{}
	for rows.Next() {
		item, err := scanExpenseRunItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense run item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanExpenseRunItem(s scanner) (*ExpenseRunItem, error) {
	var item ExpenseRunItem
	var amount int64
	var expenseID sql.NullString

	if err := s.Scan(
		&item.ID,
		&item.RunID,
		&item.RecurringExpenseID,
		&item.Description,
		&item.Category,
		&amount,
		&expenseID,
	); err != nil {
		return nil, err
	}

	item.Amount = money.FromMinor(amount)
	item.ExpenseID = expenseID.String
	return &item, nil
}
