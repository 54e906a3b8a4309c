package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/money"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

// CreateSubcontractPaymentInput describes money paid to a subcontractor.
type CreateSubcontractPaymentInput struct {
	Amount        decimal.Decimal `json:"amount"`
	AccountID     string          `json:"account_id"`
	SubcontractID string          `json:"subcontract_id"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
	Status        Status          `json:"status"`
}

const subcontractPaymentColumns = `id, organization_id, number, subcontract_id, description, payment_date,
	amount, status, account_id, created_at, updated_at`

// CreateSubcontractPayment records an outgoing subcontract payment. A
// COMPLETED one debits the source account behind both guard layers.
func (l *Ledger) CreateSubcontractPayment(ctx context.Context, organizationID string, in CreateSubcontractPaymentInput) (*SubcontractPayment, error) {
	if in.Status == "" {
		in.Status = StatusCompleted
	}
	if in.SubcontractID == "" {
		return nil, fmt.Errorf("subcontract id is required: %w", ErrValidation)
	}
	if err := l.validatePostingCreate(ctx, subcontractPayments, organizationID, in.Status, in.AccountID, in.Amount); err != nil {
		return nil, err
	}
	date, err := l.normalizeDate(in.Date)
	if err != nil {
		return nil, err
	}

	id := newID()
	err = l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		number, err := l.nextNumber(ctx, organizationID, numbering.KindSubcontractPayment)
		if err != nil {
			return err
		}

		amount, err := ToMinor(in.Amount)
		if err != nil {
			return err
		}
		now := l.now()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subcontract_payments (id, organization_id, number, subcontract_id, description, payment_date,
				amount, status, account_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, organizationID, number, in.SubcontractID, in.Description, date,
			amount, string(in.Status), in.AccountID, now, now)
		if err != nil {
			return fmt.Errorf("failed to create subcontract payment: %w", err)
		}

		return l.settlePostingCreate(ctx, tx, subcontractPayments, organizationID, in.Status, in.AccountID, in.Amount)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("subcontract payment created",
		"org_id", organizationID,
		"subcontract_payment_id", id,
		"subcontract_id", in.SubcontractID,
		"amount", money.Format(in.Amount),
	)
	return l.GetSubcontractPayment(ctx, organizationID, id)
}

// CompleteSubcontractPayment moves a PENDING subcontract payment to COMPLETED.
func (l *Ledger) CompleteSubcontractPayment(ctx context.Context, organizationID, id string) (*SubcontractPayment, error) {
	if err := l.transitionPosting(ctx, subcontractPayments, opComplete, organizationID, id); err != nil {
		return nil, err
	}
	return l.GetSubcontractPayment(ctx, organizationID, id)
}

// CancelSubcontractPayment cancels a subcontract payment, crediting back a COMPLETED one.
func (l *Ledger) CancelSubcontractPayment(ctx context.Context, organizationID, id string) (*SubcontractPayment, error) {
	if err := l.transitionPosting(ctx, subcontractPayments, opCancel, organizationID, id); err != nil {
		return nil, err
	}
	return l.GetSubcontractPayment(ctx, organizationID, id)
}

// DeleteSubcontractPayment removes a subcontract payment, crediting back a COMPLETED one.
func (l *Ledger) DeleteSubcontractPayment(ctx context.Context, organizationID, id string) error {
	return l.transitionPosting(ctx, subcontractPayments, opDelete, organizationID, id)
}

// GetSubcontractPayment returns one subcontract payment of the organization.
func (l *Ledger) GetSubcontractPayment(ctx context.Context, organizationID, id string) (*SubcontractPayment, error) {
	row := l.conn.QueryRowContext(ctx,
		`SELECT `+subcontractPaymentColumns+` FROM subcontract_payments WHERE id = ? AND organization_id = ?`,
		id, organizationID,
	)
	p, err := scanSubcontractPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("subcontract payment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subcontract payment: %w", err)
	}
	return p, nil
}

// ListSubcontractPayments returns the payments made against one subcontract,
// or all of the organization's when subcontractID is empty.
func (l *Ledger) ListSubcontractPayments(ctx context.Context, organizationID, subcontractID string) ([]SubcontractPayment, error) {
	rows, err := l.conn.QueryContext(ctx, `
		SELECT `+subcontractPaymentColumns+` FROM subcontract_payments
		WHERE organization_id = ? AND (? = '' OR subcontract_id = ?)
		ORDER BY payment_date DESC, created_at DESC
	`, organizationID, subcontractID, subcontractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcontract payments: %w", err)
	}
	defer rows.Close()

	var payments []SubcontractPayment
	for rows.Next() {
		p, err := scanSubcontractPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subcontract payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanSubcontractPayment(s rowScanner) (*SubcontractPayment, error) {
	var p SubcontractPayment
	var status string
	var amount int64

	if err := s.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Number,
		&p.SubcontractID,
		&p.Description,
		&p.Date,
		&amount,
		&status,
		&p.AccountID,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Status = Status(status)
	p.Amount = money.FromMinor(amount)
	return &p, nil
}
