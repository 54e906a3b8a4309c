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
)

// CreateAccountInput describes a new account.
type CreateAccountInput struct {
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	IsDefault      bool            `json:"is_default"`
}

// balanceCeiling is money.Limit in minor units.
var balanceCeiling = money.Limit.Shift(money.Scale).IntPart()

const accountColumns = `id, organization_id, name, type, currency, opening_balance, balance,
	is_active, is_default, created_at, updated_at`

// CreateAccount creates an account whose balance starts at the opening balance.
// The first account of an organization becomes its default.
func (l *Ledger) CreateAccount(ctx context.Context, organizationID string, in CreateAccountInput) (*Account, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("account name is required: %w", ErrValidation)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("unknown account type %q: %w", in.Type, ErrValidation)
	}
	if in.Currency == "" {
		return nil, fmt.Errorf("account currency is required: %w", ErrValidation)
	}
	if in.OpeningBalance.IsNegative() {
		return nil, invalidAmount(in.OpeningBalance, "opening balance must not be negative")
	}
	opening, err := ToMinor(in.OpeningBalance)
	if err != nil {
		return nil, err
	}

	id := newID()
	now := l.now()

	err = l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE organization_id = ? AND is_default = 1`,
			organizationID,
		).Scan(&existing); err != nil {
			return fmt.Errorf("failed to check default account: %w", err)
		}

		isDefault := in.IsDefault || existing == 0
		if isDefault && existing > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET is_default = 0, updated_at = ? WHERE organization_id = ? AND is_default = 1`,
				now, organizationID,
			); err != nil {
				return fmt.Errorf("failed to clear default account: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, organization_id, name, type, currency, opening_balance, balance,
				is_active, is_default, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		`, id, organizationID, in.Name, string(in.Type), in.Currency, opening, opening, isDefault, now, now)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("account created", "org_id", organizationID, "account_id", id, "opening_balance", money.Format(in.OpeningBalance))
	return l.GetAccount(ctx, organizationID, id)
}

// GetAccount returns one account of the organization.
func (l *Ledger) GetAccount(ctx context.Context, organizationID, accountID string) (*Account, error) {
	return getAccount(ctx, l.conn, organizationID, accountID)
}

func getAccount(ctx context.Context, q db.Querier, organizationID, accountID string) (*Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND organization_id = ?`,
		accountID, organizationID,
	)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("account", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// ListAccounts returns the organization's accounts, default first.
func (l *Ledger) ListAccounts(ctx context.Context, organizationID string) ([]Account, error) {
	rows, err := l.conn.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE organization_id = ? ORDER BY is_default DESC, name`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// SetDefaultAccount makes accountID the organization's single default account.
func (l *Ledger) SetDefaultAccount(ctx context.Context, organizationID, accountID string) error {
	return l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		a, err := getAccount(ctx, tx, organizationID, accountID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return NewInvalidState("account", accountID, "INACTIVE", "set default")
		}

		now := l.now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 0, updated_at = ? WHERE organization_id = ? AND is_default = 1`,
			now, organizationID,
		); err != nil {
			return fmt.Errorf("failed to clear default account: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ?`,
			now, accountID,
		); err != nil {
			return fmt.Errorf("failed to set default account: %w", err)
		}
		return nil
	})
}

// DeactivateAccount closes an empty, non-default account.
func (l *Ledger) DeactivateAccount(ctx context.Context, organizationID, accountID string) error {
	return l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		a, err := getAccount(ctx, tx, organizationID, accountID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return NewInvalidState("account", accountID, "INACTIVE", "deactivate")
		}
		if a.IsDefault {
			return NewInvalidState("account", accountID, "DEFAULT", "deactivate")
		}
		if !a.Balance.IsZero() {
			return NewInvalidState("account", accountID, "NON_ZERO_BALANCE", "deactivate")
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET is_active = 0, updated_at = ? WHERE id = ? AND balance = 0`,
			l.now(), accountID,
		)
		if err != nil {
			return fmt.Errorf("failed to deactivate account: %w", err)
		}
		return nil
	})
}

// EnsureAvailable is debit guard layer 1. It reads the balance outside any
// unit of work to fail fast with a user-facing error; it never replaces the
// conditional decrement performed by Debit.
func (l *Ledger) EnsureAvailable(ctx context.Context, organizationID, accountID string, amount decimal.Decimal) error {
	a, err := l.GetAccount(ctx, organizationID, accountID)
	if err != nil {
		return err
	}
	if !a.IsActive {
		return NewInvalidState("account", accountID, "INACTIVE", "debit")
	}
	if a.Balance.LessThan(amount) {
		return &InsufficientBalanceError{AccountID: accountID, Requested: amount, Available: a.Balance}
	}
	return nil
}

// Credit increases the balance of an active account. It must run in the same
// unit of work as the event that causes it.
func (l *Ledger) Credit(ctx context.Context, tx *sql.Tx, organizationID, accountID string, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	minor, err := ToMinor(amount)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = balance + ?, updated_at = ?
		WHERE id = ? AND organization_id = ? AND is_active = 1 AND balance + ? < ?
	`, minor, l.now(), accountID, organizationID, minor, balanceCeiling)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return l.explainRejected(ctx, tx, organizationID, accountID, amount, "credit")
	}

	slog.Debug("account credited", "org_id", organizationID, "account_id", accountID, "amount", money.Format(amount))
	return nil
}

// Debit is guard layer 2: a conditional decrement that only succeeds while
// balance >= amount. Zero affected rows means another debit won the race
// (or the account is missing or inactive) and the unit of work must abort.
func (l *Ledger) Debit(ctx context.Context, tx *sql.Tx, organizationID, accountID string, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	minor, err := ToMinor(amount)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = balance - ?, updated_at = ?
		WHERE id = ? AND organization_id = ? AND is_active = 1 AND balance >= ?
	`, minor, l.now(), accountID, organizationID, minor)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return l.explainRejected(ctx, tx, organizationID, accountID, amount, "debit")
	}

	slog.Debug("account debited", "org_id", organizationID, "account_id", accountID, "amount", money.Format(amount))
	return nil
}

// explainRejected turns a zero-row balance update into the matching error.
func (l *Ledger) explainRejected(ctx context.Context, tx *sql.Tx, organizationID, accountID string, amount decimal.Decimal, op string) error {
	a, err := getAccount(ctx, tx, organizationID, accountID)
	if err != nil {
		return err
	}
	if !a.IsActive {
		return NewInvalidState("account", accountID, "INACTIVE", op)
	}
	if op != "debit" {
		if !money.InRange(a.Balance.Add(amount)) {
			return invalidAmount(amount, "would push the balance of account "+accountID+" past "+money.Limit.String())
		}
		return fmt.Errorf("failed to %s account %s", op, accountID)
	}

	slog.Warn("debit rejected by balance guard",
		"org_id", organizationID,
		"account_id", accountID,
		"requested", money.Format(amount),
		"available", money.Format(a.Balance),
	)
	return &InsufficientBalanceError{AccountID: accountID, Requested: amount, Available: a.Balance}
}

func scanAccount(s rowScanner) (*Account, error) {
	var a Account
	var accountType string
	var opening, balance int64

	if err := s.Scan(
		&a.ID,
		&a.OrganizationID,
		&a.Name,
		&accountType,
		&a.Currency,
		&opening,
		&balance,
		&a.IsActive,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	a.Type = AccountType(accountType)
	a.OpeningBalance = money.FromMinor(opening)
	a.Balance = money.FromMinor(balance)
	return &a, nil
}
