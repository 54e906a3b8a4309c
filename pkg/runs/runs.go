// Package runs implements the batch workflows that turn source records into
// ledger obligations: payroll runs (active employees) and expense runs
// (active recurring expenses).
//
// A run moves DRAFT -> POSTED (payroll) or APPROVED (expenses) -> CANCELLED,
// and may be cancelled straight from DRAFT. Line items are regenerated by
// populate and edited only while the run is DRAFT. Posting creates one
// PENDING expense per item in the same unit of work as the status flip.
package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/category"
	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunDraft     RunStatus = "DRAFT"
	RunPosted    RunStatus = "POSTED"
	RunApproved  RunStatus = "APPROVED"
	RunCancelled RunStatus = "CANCELLED"
)

// Service orchestrates payroll and expense runs on top of a ledger.
type Service struct {
	ledger     *ledger.Ledger
	conn       *db.Connection
	categories *category.Mapper
}

// New creates a Service. A nil mapper uses category.Default.
func New(l *ledger.Ledger, categories *category.Mapper) *Service {
	if categories == nil {
		categories = category.Default()
	}
	return &Service{
		ledger:     l,
		conn:       l.Conn(),
		categories: categories,
	}
}

// runKind describes the tables and terminal status of one run family.
type runKind struct {
	entity     string
	table      string
	itemTable  string
	final      RunStatus
	finalOp    string
	sourceType ledger.SourceType
	seq        numbering.Kind
	totals     string
}

var (
	payrollRuns = runKind{
		entity:     "payroll run",
		table:      "payroll_runs",
		itemTable:  "payroll_run_items",
		final:      RunPosted,
		finalOp:    "post",
		sourceType: ledger.SourcePayroll,
		seq:        numbering.KindPayrollRun,
		totals: `
			total_basic = (SELECT COALESCE(SUM(basic_salary), 0) FROM payroll_run_items WHERE run_id = payroll_runs.id),
			total_allowances = (SELECT COALESCE(SUM(allowances), 0) FROM payroll_run_items WHERE run_id = payroll_runs.id),
			total_deductions = (SELECT COALESCE(SUM(deductions), 0) FROM payroll_run_items WHERE run_id = payroll_runs.id),
			total_net = (SELECT COALESCE(SUM(net_salary), 0) FROM payroll_run_items WHERE run_id = payroll_runs.id),
			item_count = (SELECT COUNT(*) FROM payroll_run_items WHERE run_id = payroll_runs.id)`,
	}
	expenseRuns = runKind{
		entity:     "expense run",
		table:      "expense_runs",
		itemTable:  "expense_run_items",
		final:      RunApproved,
		finalOp:    "approve",
		sourceType: ledger.SourceExpenseRun,
		seq:        numbering.KindExpenseRun,
		totals: `
			total_amount = (SELECT COALESCE(SUM(amount), 0) FROM expense_run_items WHERE run_id = expense_runs.id),
			item_count = (SELECT COUNT(*) FROM expense_run_items WHERE run_id = expense_runs.id)`,
	}
)

type runHeader struct {
	status    RunStatus
	month     string
	itemCount int
}

func readRunHeader(ctx context.Context, q db.Querier, kind runKind, organizationID, runID string) (*runHeader, error) {
	var h runHeader
	var status string

	err := q.QueryRowContext(ctx,
		`SELECT status, month, item_count FROM `+kind.table+` WHERE id = ? AND organization_id = ?`,
		runID, organizationID,
	).Scan(&status, &h.month, &h.itemCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFound(kind.entity, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind.entity, err)
	}

	h.status = RunStatus(status)
	return &h, nil
}

// createRun inserts a DRAFT run for month. Only one non-cancelled run per
// organization and month is allowed.
func (s *Service) createRun(ctx context.Context, kind runKind, organizationID, month string) (string, error) {
	if _, _, err := MonthBounds(month); err != nil {
		return "", err
	}

	id := uuid.NewString()
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+kind.table+` WHERE organization_id = ? AND month = ? AND status <> ?`,
			organizationID, month, string(RunCancelled),
		).Scan(&existing); err != nil {
			return fmt.Errorf("failed to check existing %s: %w", kind.entity, err)
		}
		if existing > 0 {
			return ledger.NewInvalidState(kind.entity, "", "", "create a second run for "+month)
		}

		number, err := s.ledger.Sequencer().Next(ctx, organizationID, kind.seq)
		if err != nil {
			return fmt.Errorf("failed to allocate reference number: %w", err)
		}

		now := s.ledger.Now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+kind.table+` (id, organization_id, number, month, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, organizationID, number, month, string(RunDraft), now, now,
		); err != nil {
			return fmt.Errorf("failed to create %s: %w", kind.entity, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Info(kind.entity+" created", "org_id", organizationID, "run_id", id, "month", month)
	return id, nil
}

// recomputeTotals re-aggregates the run's totals from its items in SQL.
func (s *Service) recomputeTotals(ctx context.Context, tx *sql.Tx, kind runKind, runID string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE `+kind.table+` SET `+kind.totals+`, updated_at = ? WHERE id = ?`,
		s.ledger.Now(), runID,
	); err != nil {
		return fmt.Errorf("failed to recompute %s totals: %w", kind.entity, err)
	}
	return nil
}

// setStatus flips the run status only if it is still from.
func (s *Service) setStatus(ctx context.Context, tx *sql.Tx, kind runKind, runID string, from, to RunStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE `+kind.table+` SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), s.ledger.Now(), runID, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update %s status: %w", kind.entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ledger.NewInvalidState(kind.entity, runID, string(from), "change status to "+string(to))
	}
	return nil
}

// draftRun reads the run inside tx and requires it to be DRAFT.
func draftRun(ctx context.Context, tx *sql.Tx, kind runKind, organizationID, runID, op string) (*runHeader, error) {
	h, err := readRunHeader(ctx, tx, kind, organizationID, runID)
	if err != nil {
		return nil, err
	}
	if err := CheckDraft(kind.entity, runID, h.status, op); err != nil {
		return nil, err
	}
	return h, nil
}

// cancelRun cancels a DRAFT or finalized run. Linked expenses still PENDING
// are cancelled with it; COMPLETED ones are left alone.
func (s *Service) cancelRun(ctx context.Context, kind runKind, organizationID, runID string) error {
	var cancelledExpenses int
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		h, err := readRunHeader(ctx, tx, kind, organizationID, runID)
		if err != nil {
			return err
		}
		if err := CheckCancel(kind.entity, runID, h.status); err != nil {
			return err
		}

		expenseIDs, err := linkedExpenses(ctx, tx, kind, runID)
		if err != nil {
			return err
		}
		for _, expenseID := range expenseIDs {
			e, err := s.ledger.GetExpenseTx(ctx, tx, organizationID, expenseID)
			if err != nil {
				return err
			}
			if e.Status != ledger.StatusPending {
				continue
			}
			if _, err := s.ledger.CancelExpenseTx(ctx, tx, organizationID, expenseID); err != nil {
				return err
			}
			cancelledExpenses++
		}

		return s.setStatus(ctx, tx, kind, runID, h.status, RunCancelled)
	})
	if err != nil {
		return err
	}

	slog.Info(kind.entity+" cancelled", "org_id", organizationID, "run_id", runID, "cancelled_expenses", cancelledExpenses)
	return nil
}

func linkedExpenses(ctx context.Context, tx *sql.Tx, kind runKind, runID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT expense_id FROM `+kind.itemTable+` WHERE run_id = ? AND expense_id IS NOT NULL`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked expenses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan linked expense: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Service) linkItem(ctx context.Context, tx *sql.Tx, kind runKind, itemID, expenseID string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE `+kind.itemTable+` SET expense_id = ? WHERE id = ?`,
		expenseID, itemID,
	); err != nil {
		return fmt.Errorf("failed to link %s item: %w", kind.entity, err)
	}
	return nil
}

// MonthBounds returns the first and last day (YYYY-MM-DD) of a YYYY-MM month.
func MonthBounds(month string) (first, last string, err error) {
	start, err := time.Parse(monthLayout, month)
	if err != nil {
		return "", "", fmt.Errorf("invalid month %q, expected YYYY-MM: %w", month, ledger.ErrValidation)
	}
	end := start.AddDate(0, 1, -1)
	return start.Format(dateLayout), end.Format(dateLayout), nil
}

// minors converts amounts to their stored form, failing with
// ledger.ErrInvalidAmount on the first that cannot be stored.
func minors(amounts ...decimal.Decimal) ([]int64, error) {
	out := make([]int64, len(amounts))
	for i, d := range amounts {
		m, err := ledger.ToMinor(d)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}
