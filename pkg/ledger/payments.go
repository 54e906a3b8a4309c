package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/money"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

// CreatePaymentInput describes money received from a client.
type CreatePaymentInput struct {
	Amount      decimal.Decimal `json:"amount"`
	AccountID   string          `json:"account_id"`
	ClientName  string          `json:"client_name"`
	ProjectID   string          `json:"project_id"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Status      Status          `json:"status"`
}

const paymentColumns = `id, organization_id, number, project_id, client_name, description, payment_date,
	amount, status, account_id, created_at, updated_at`

// CreatePayment records an incoming payment. A COMPLETED payment credits the
// destination account in the same unit of work.
func (l *Ledger) CreatePayment(ctx context.Context, organizationID string, in CreatePaymentInput) (*Payment, error) {
	if in.Status == "" {
		in.Status = StatusCompleted
	}
	if err := l.validatePostingCreate(ctx, incomingPayments, organizationID, in.Status, in.AccountID, in.Amount); err != nil {
		return nil, err
	}
	date, err := l.normalizeDate(in.Date)
	if err != nil {
		return nil, err
	}

	id := newID()
	err = l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		number, err := l.nextNumber(ctx, organizationID, numbering.KindPayment)
		if err != nil {
			return err
		}

		amount, err := ToMinor(in.Amount)
		if err != nil {
			return err
		}
		now := l.now()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payments (id, organization_id, number, project_id, client_name, description, payment_date,
				amount, status, account_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, organizationID, number, nullString(in.ProjectID), in.ClientName, in.Description, date,
			amount, string(in.Status), in.AccountID, now, now)
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		return l.settlePostingCreate(ctx, tx, incomingPayments, organizationID, in.Status, in.AccountID, in.Amount)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("payment created", "org_id", organizationID, "payment_id", id, "amount", money.Format(in.Amount), "status", in.Status)
	return l.GetPayment(ctx, organizationID, id)
}

// CompletePayment moves a PENDING payment to COMPLETED and credits its account.
func (l *Ledger) CompletePayment(ctx context.Context, organizationID, paymentID string) (*Payment, error) {
	if err := l.transitionPosting(ctx, incomingPayments, opComplete, organizationID, paymentID); err != nil {
		return nil, err
	}
	return l.GetPayment(ctx, organizationID, paymentID)
}

// CancelPayment cancels a payment; a COMPLETED one has its credit reversed
// through a guarded debit.
func (l *Ledger) CancelPayment(ctx context.Context, organizationID, paymentID string) (*Payment, error) {
	if err := l.transitionPosting(ctx, incomingPayments, opCancel, organizationID, paymentID); err != nil {
		return nil, err
	}
	return l.GetPayment(ctx, organizationID, paymentID)
}

// DeletePayment removes a payment, reversing its credit if it was COMPLETED.
func (l *Ledger) DeletePayment(ctx context.Context, organizationID, paymentID string) error {
	return l.transitionPosting(ctx, incomingPayments, opDelete, organizationID, paymentID)
}

// GetPayment returns one incoming payment of the organization.
func (l *Ledger) GetPayment(ctx context.Context, organizationID, paymentID string) (*Payment, error) {
	return getPayment(ctx, l.conn, organizationID, paymentID)
}

func getPayment(ctx context.Context, q db.Querier, organizationID, paymentID string) (*Payment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ? AND organization_id = ?`,
		paymentID, organizationID,
	)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("payment", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// ListPayments returns the organization's incoming payments, optionally for one account.
func (l *Ledger) ListPayments(ctx context.Context, organizationID, accountID string) ([]Payment, error) {
	rows, err := l.conn.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE organization_id = ? AND (? = '' OR account_id = ?)
		ORDER BY payment_date DESC, created_at DESC
	`, organizationID, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPayment(s rowScanner) (*Payment, error) {
	var p Payment
	var projectID sql.NullString
	var status string
	var amount int64

	if err := s.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Number,
		&projectID,
		&p.ClientName,
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

	p.ProjectID = projectID.String
	p.Status = Status(status)
	p.Amount = money.FromMinor(amount)
	return &p, nil
}
