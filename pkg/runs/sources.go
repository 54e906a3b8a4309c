package runs

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/money"
)

// Employee is a payroll population source row.
type Employee struct {
	ID          string
	Name        string
	BasicSalary decimal.Decimal
	Allowances  decimal.Decimal
	Deductions  decimal.Decimal
}

// RecurringExpense is an expense-run population source row.
type RecurringExpense struct {
	ID          string
	Description string
	Category    string
	Amount      decimal.Decimal
}

// activeEmployees returns the organization's active employees.
func activeEmployees(ctx context.Context, q db.Querier, organizationID string) ([]Employee, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, basic_salary, allowances, deductions
		FROM employees
		WHERE organization_id = ? AND is_active = 1
		ORDER BY name, id
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var e Employee
		var basic, allowances, deductions int64
		if err := rows.Scan(&e.ID, &e.Name, &basic, &allowances, &deductions); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.BasicSalary = money.FromMinor(basic)
		e.Allowances = money.FromMinor(allowances)
		e.Deductions = money.FromMinor(deductions)
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// dueRecurringExpenses returns active, repeating recurring expenses whose
// date range overlaps [first, last].
func dueRecurringExpenses(ctx context.Context, q db.Querier, organizationID, first, last string) ([]RecurringExpense, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, description, category, amount
		FROM recurring_expenses
		WHERE organization_id = ?
			AND is_active = 1
			AND is_one_time = 0
			AND start_date <= ?
			AND (end_date IS NULL OR end_date >= ?)
		ORDER BY description, id
	`, organizationID, last, first)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring expenses: %w", err)
	}
	defer rows.Close()

	var expenses []RecurringExpense
	for rows.Next() {
		var r RecurringExpense
		var amount int64
		if err := rows.Scan(&r.ID, &r.Description, &r.Category, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan recurring expense: %w", err)
		}
		r.Amount = money.FromMinor(amount)
		expenses = append(expenses, r)
	}
	return expenses, rows.Err()
}
