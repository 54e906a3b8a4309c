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

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
)

// PayrollRun is a monthly payroll batch.
type PayrollRun struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id"`
	Number          string          `json:"number"`
	Month           string          `json:"month"`
	Status          RunStatus       `json:"status"`
	TotalBasic      decimal.Decimal `json:"total_basic"`
	TotalAllowances decimal.Decimal `json:"total_allowances"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	TotalNet        decimal.Decimal `json:"total_net"`
	ItemCount       int             `json:"item_count"`
	Items           []PayrollItem   `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PayrollItem is one employee's line in a payroll run.
type PayrollItem struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id"`
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name"`
	BasicSalary  decimal.Decimal `json:"basic_salary"`
	Allowances   decimal.Decimal `json:"allowances"`
	Deductions   decimal.Decimal `json:"deductions"`
	NetSalary    decimal.Decimal `json:"net_salary"`
	ExpenseID    string          `json:"expense_id,omitempty"`
}

// PayrollItemUpdate edits a DRAFT payroll item. Nil fields are unchanged.
type PayrollItemUpdate struct {
	BasicSalary *decimal.Decimal `json:"basic_salary"`
	Allowances  *decimal.Decimal `json:"allowances"`
	Deductions  *decimal.Decimal `json:"deductions"`
}

// CreatePayrollRun opens a DRAFT payroll run for month (YYYY-MM).
func (s *Service) CreatePayrollRun(ctx context.Context, organizationID, month string) (*PayrollRun, error) {
	id, err := s.createRun(ctx, payrollRuns, organizationID, month)
	if err != nil {
		return nil, err
	}
	return s.GetPayrollRun(ctx, organizationID, id)
}

// PopulatePayrollRun replaces the run's items with one per active employee
// and re-aggregates the totals. With no active employees it fails with
// ErrEmptyRun and the existing items stay as they were.
func (s *Service) PopulatePayrollRun(ctx context.Context, organizationID, runID string) (*PayrollRun, error) {
	var count int
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := draftRun(ctx, tx, payrollRuns, organizationID, runID, "populate"); err != nil {
			return err
		}

		employees, err := activeEmployees(ctx, tx, organizationID)
		if err != nil {
			return err
		}
		if len(employees) == 0 {
			return ledger.NewStateError(payrollRuns.entity, runID, string(RunDraft), "populate", ledger.ErrEmptyRun)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM payroll_run_items WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear payroll items: %w", err)
		}

		for _, e := range employees {
			net := PayrollNet(e.BasicSalary, e.Allowances, e.Deductions)
			m, err := minors(e.BasicSalary, e.Allowances, e.Deductions, net)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO payroll_run_items (id, run_id, employee_id, employee_name,
					basic_salary, allowances, deductions, net_salary)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, uuid.NewString(), runID, e.ID, e.Name,
				m[0], m[1], m[2], m[3],
			); err != nil {
				return fmt.Errorf("failed to insert payroll item: %w", err)
			}
		}
		count = len(employees)

		return s.recomputeTotals(ctx, tx, payrollRuns, runID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("payroll run populated", "org_id", organizationID, "run_id", runID, "items", count)
	return s.GetPayrollRun(ctx, organizationID, runID)
}

// UpdatePayrollItem edits an item of a DRAFT run, recomputing its net salary
// and the run totals.
func (s *Service) UpdatePayrollItem(ctx context.Context, organizationID, runID, itemID string, in PayrollItemUpdate) (*PayrollRun, error) {
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := draftRun(ctx, tx, payrollRuns, organizationID, runID, "edit item of"); err != nil {
			return err
		}

		item, err := getPayrollItem(ctx, tx, runID, itemID)
		if err != nil {
			return err
		}
		if in.BasicSalary != nil {
			item.BasicSalary = *in.BasicSalary
		}
		if in.Allowances != nil {
			item.Allowances = *in.Allowances
		}
		if in.Deductions != nil {
			item.Deductions = *in.Deductions
		}
		if err := validateComponent("basic salary", item.BasicSalary); err != nil {
			return err
		}
		if err := validateComponent("allowances", item.Allowances); err != nil {
			return err
		}
		if err := validateComponent("deductions", item.Deductions); err != nil {
			return err
		}
		item.NetSalary = PayrollNet(item.BasicSalary, item.Allowances, item.Deductions)
		m, err := minors(item.BasicSalary, item.Allowances, item.Deductions, item.NetSalary)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE payroll_run_items SET basic_salary = ?, allowances = ?, deductions = ?, net_salary = ?
			WHERE id = ?
		`, m[0], m[1], m[2], m[3], itemID); err != nil {
			return fmt.Errorf("failed to update payroll item: %w", err)
		}

		return s.recomputeTotals(ctx, tx, payrollRuns, runID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("payroll item updated", "org_id", organizationID, "run_id", runID, "item_id", itemID)
	return s.GetPayrollRun(ctx, organizationID, runID)
}

// PostPayrollRun creates one PENDING payroll expense per item, links each
// item to its expense and flips the run to POSTED, all in one unit of work.
func (s *Service) PostPayrollRun(ctx context.Context, organizationID, runID string) (*PayrollRun, error) {
	var total decimal.Decimal
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		h, err := readRunHeader(ctx, tx, payrollRuns, organizationID, runID)
		if err != nil {
			return err
		}
		if err := CheckFinalize(payrollRuns.entity, runID, h.status, payrollRuns.finalOp, h.itemCount); err != nil {
			return err
		}
		_, monthEnd, err := MonthBounds(h.month)
		if err != nil {
			return err
		}

		items, err := listPayrollItems(ctx, tx, runID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ledger.NewStateError(payrollRuns.entity, runID, string(h.status), payrollRuns.finalOp, ledger.ErrEmptyRun)
		}

		nets := make([]decimal.Decimal, 0, len(items))
		for _, item := range items {
			if !item.NetSalary.IsPositive() {
				return &ledger.AmountError{Requested: item.NetSalary, Reason: "net salary of " + item.EmployeeName + " must be greater than zero"}
			}
			e, err := s.ledger.CreateExpenseTx(ctx, tx, organizationID, ledger.CreateExpenseInput{
				Amount:      item.NetSalary,
				Category:    s.categories.PayrollCategory(),
				Description: fmt.Sprintf("Salary %s - %s", h.month, item.EmployeeName),
				Date:        monthEnd,
				Status:      ledger.StatusPending,
				SourceType:  payrollRuns.sourceType,
				SourceID:    runID,
			})
			if err != nil {
				return err
			}
			if err := s.linkItem(ctx, tx, payrollRuns, item.ID, e.ID); err != nil {
				return err
			}
			nets = append(nets, item.NetSalary)
		}
		total = money.Sum(nets...)

		return s.setStatus(ctx, tx, payrollRuns, runID, RunDraft, RunPosted)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("payroll run posted", "org_id", organizationID, "run_id", runID, "total_net", money.Format(total))
	return s.GetPayrollRun(ctx, organizationID, runID)
}

// CancelPayrollRun cancels the run and every linked expense still PENDING.
func (s *Service) CancelPayrollRun(ctx context.Context, organizationID, runID string) (*PayrollRun, error) {
	if err := s.cancelRun(ctx, payrollRuns, organizationID, runID); err != nil {
		return nil, err
	}
	return s.GetPayrollRun(ctx, organizationID, runID)
}

// GetPayrollRun returns a payroll run with its items.
func (s *Service) GetPayrollRun(ctx context.Context, organizationID, runID string) (*PayrollRun, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, organization_id, number, month, status, total_basic, total_allowances,
			total_deductions, total_net, item_count, created_at, updated_at
		FROM payroll_runs WHERE id = ? AND organization_id = ?
	`, runID, organizationID)

	run, err := scanPayrollRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFound(payrollRuns.entity, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll run: %w", err)
	}

	run.Items, err = listPayrollItems(ctx, s.conn, runID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListPayrollRuns returns the organization's payroll runs without items, newest month first.
func (s *Service) ListPayrollRuns(ctx context.Context, organizationID string) ([]PayrollRun, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, organization_id, number, month, status, total_basic, total_allowances,
			total_deductions, total_net, item_count, created_at, updated_at
		FROM payroll_runs WHERE organization_id = ?
		ORDER BY month DESC, created_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var result []PayrollRun
	for rows.Next() {
		run, err := scanPayrollRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		result = append(result, *run)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayrollRun(s scanner) (*PayrollRun, error) {
	var r PayrollRun
	var status string
	var basic, allowances, deductions, net int64

	if err := s.Scan(
		&r.ID,
		&r.OrganizationID,
		&r.Number,
		&r.Month,
		&status,
		&basic,
		&allowances,
		&deductions,
		&net,
		&r.ItemCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.Status = RunStatus(status)
	r.TotalBasic = money.FromMinor(basic)
	r.TotalAllowances = money.FromMinor(allowances)
	r.TotalDeductions = money.FromMinor(deductions)
	r.TotalNet = money.FromMinor(net)
	return &r, nil
}

const payrollItemColumns = `id, run_id, employee_id, employee_name, basic_salary, allowances, deductions, net_salary, expense_id`

func getPayrollItem(ctx context.Context, tx *sql.Tx, runID, itemID string) (*PayrollItem, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+payrollItemColumns+` FROM payroll_run_items WHERE id = ? AND run_id = ?`,
		itemID, runID,
	)
	item, err := scanPayrollItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFound("payroll item", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll item: %w", err)
	}
	return item, nil
}

func listPayrollItems(ctx context.Context, q db.Querier, runID string) ([]PayrollItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+payrollItemColumns+` FROM payroll_run_items WHERE run_id = ? ORDER BY employee_name, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll items: %w", err)
	}
	defer rows.Close()

	items := []PayrollItem{}
	for rows.Next() {
		item, err := scanPayrollItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanPayrollItem(s scanner) (*PayrollItem, error) {
	var item PayrollItem
	var basic, allowances, deductions, net int64
	var expenseID sql.NullString

	if err := s.Scan(
		&item.ID,
		&item.RunID,
		&item.EmployeeID,
		&item.EmployeeName,
		&basic,
		&allowances,
		&deductions,
		&net,
		&expenseID,
	); err != nil {
		return nil, err
	}

	item.BasicSalary = money.FromMinor(basic)
	item.Allowances = money.FromMinor(allowances)
	item.Deductions = money.FromMinor(deductions)
	item.NetSalary = money.FromMinor(net)
	item.ExpenseID = expenseID.String
	return &item, nil
}
