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

// CreateTransferInput describes a move of money between two accounts.
type CreateTransferInput struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
	Status        Status          `json:"status"`
}

const transferColumns = `id, organization_id, number, description, transfer_date, amount, status,
	from_account_id, to_account_id, created_at, updated_at`

// CreateTransfer records a transfer. A COMPLETED transfer debits the source
// (guarded) and credits the destination inside one unit of work.
func (l *Ledger) CreateTransfer(ctx context.Context, organizationID string, in CreateTransferInput) (*Transfer, error) {
	if in.Status == "" {
		in.Status = StatusCompleted
	}
	if err := ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	draft := Transfer{FromAccountID: in.FromAccountID, ToAccountID: in.ToAccountID, Amount: in.Amount, Status: in.Status}
	effects, err := PlanTransferCreate(draft)
	if err != nil {
		return nil, err
	}
	if err := l.checkTransferAccounts(ctx, l.conn, organizationID, in.FromAccountID, in.ToAccountID); err != nil {
		return nil, err
	}
	if err := l.precheck(ctx, organizationID, effects); err != nil {
		return nil, err
	}
	date, err := l.normalizeDate(in.Date)
	if err != nil {
		return nil, err
	}

	id := newID()
	err = l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		if err := l.checkTransferAccounts(ctx, tx, organizationID, in.FromAccountID, in.ToAccountID); err != nil {
			return err
		}

		number, err := l.nextNumber(ctx, organizationID, numbering.KindTransfer)
		if err != nil {
			return err
		}

		amount, err := ToMinor(in.Amount)
		if err != nil {
			return err
		}
		now := l.now()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transfers (id, organization_id, number, description, transfer_date, amount, status,
				from_account_id, to_account_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, organizationID, number, in.Description, date, amount, string(in.Status),
			in.FromAccountID, in.ToAccountID, now, now)
		if err != nil {
			return fmt.Errorf("failed to create transfer: %w", err)
		}

		return l.apply(ctx, tx, organizationID, effects)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("transfer created",
		"org_id", organizationID,
		"transfer_id", id,
		"from_account_id", in.FromAccountID,
		"to_account_id", in.ToAccountID,
		"amount", money.Format(in.Amount),
		"status", in.Status,
	)
	return l.GetTransfer(ctx, organizationID, id)
}

// CompleteTransfer applies both legs of a PENDING transfer.
func (l *Ledger) CompleteTransfer(ctx context.Context, organizationID, transferID string) (*Transfer, error) {
	return l.transitionTransfer(ctx, organizationID, transferID, StatusCompleted, PlanTransferComplete)
}

// CancelTransfer cancels a transfer, reversing both legs only if it was
// COMPLETED. Cancelling twice fails with ErrAlreadyCancelled.
func (l *Ledger) CancelTransfer(ctx context.Context, organizationID, transferID string) (*Transfer, error) {
	return l.transitionTransfer(ctx, organizationID, transferID, StatusCancelled, PlanTransferCancel)
}

func (l *Ledger) transitionTransfer(ctx context.Context, organizationID, transferID string, next Status, plan func(Transfer) ([]Effect, error)) (*Transfer, error) {
	current, err := l.GetTransfer(ctx, organizationID, transferID)
	if err != nil {
		return nil, err
	}
	effects, err := plan(*current)
	if err != nil {
		return nil, err
	}
	if err := l.precheck(ctx, organizationID, effects); err != nil {
		return nil, err
	}

	err = l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		t, err := getTransfer(ctx, tx, organizationID, transferID)
		if err != nil {
			return err
		}
		effects, err := plan(*t)
		if err != nil {
			return err
		}
		if err := l.apply(ctx, tx, organizationID, effects); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transfers SET status = ?, updated_at = ? WHERE id = ?`,
			string(next), l.now(), transferID,
		); err != nil {
			return fmt.Errorf("failed to update transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("transfer updated", "org_id", organizationID, "transfer_id", transferID, "status", next)
	return l.GetTransfer(ctx, organizationID, transferID)
}

// checkTransferAccounts requires two active accounts of the organization
// that share a currency.
func (l *Ledger) checkTransferAccounts(ctx context.Context, q db.Querier, organizationID, fromID, toID string) error {
	from, err := getAccount(ctx, q, organizationID, fromID)
	if err != nil {
		return err
	}
	to, err := getAccount(ctx, q, organizationID, toID)
	if err != nil {
		return err
	}
	if !from.IsActive {
		return NewInvalidState("account", fromID, "INACTIVE", "transfer from")
	}
	if !to.IsActive {
		return NewInvalidState("account", toID, "INACTIVE", "transfer to")
	}
	if from.Currency != to.Currency {
		return NewInvalidState("transfer", "", "", fmt.Sprintf("transfer %s into %s", from.Currency, to.Currency))
	}
	return nil
}

// GetTransfer returns one transfer of the organization.
func (l *Ledger) GetTransfer(ctx context.Context, organizationID, transferID string) (*Transfer, error) {
	return getTransfer(ctx, l.conn, organizationID, transferID)
}

func getTransfer(ctx context.Context, q db.Querier, organizationID, transferID string) (*Transfer, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = ? AND organization_id = ?`,
		transferID, organizationID,
	)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("transfer", transferID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return t, nil
}

// ListTransfers returns transfers touching accountID, or all of the
// organization's when accountID is empty.
func (l *Ledger) ListTransfers(ctx context.Context, organizationID, accountID string) ([]Transfer, error) {
	rows, err := l.conn.QueryContext(ctx, `
		SELECT `+transferColumns+` FROM transfers
		WHERE organization_id = ? AND (? = '' OR from_account_id = ? OR to_account_id = ?)
		ORDER BY transfer_date DESC, created_at DESC
	`, organizationID, accountID, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

func scanTransfer(s rowScanner) (*Transfer, error) {
	var t Transfer
	var status string
	var amount int64

	if err := s.Scan(
		&t.ID,
		&t.OrganizationID,
		&t.Number,
		&t.Description,
		&t.Date,
		&amount,
		&status,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Amount = money.FromMinor(amount)
	return &t, nil
}
