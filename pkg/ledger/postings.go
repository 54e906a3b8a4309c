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
)

// postingKind describes a single-account payment table. Incoming payments and
// subcontract payments share their lifecycle and differ only in direction.
type postingKind struct {
	entity string
	table  string
	dir    Direction
}

var (
	incomingPayments    = postingKind{entity: "payment", table: "payments", dir: Inflow}
	subcontractPayments = postingKind{entity: "subcontract payment", table: "subcontract_payments", dir: Outflow}
)

type postingOp string

const (
	opComplete postingOp = "complete"
	opCancel   postingOp = "cancel"
	opDelete   postingOp = "delete"
)

type postingHeader struct {
	status    Status
	accountID string
	amount    decimal.Decimal
}

func readPostingHeader(ctx context.Context, q db.Querier, kind postingKind, organizationID, id string) (*postingHeader, error) {
	var h postingHeader
	var status string
	var amount int64

	err := q.QueryRowContext(ctx,
		`SELECT status, account_id, amount FROM `+kind.table+` WHERE id = ? AND organization_id = ?`,
		id, organizationID,
	).Scan(&status, &h.accountID, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound(kind.entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind.entity, err)
	}

	h.status = Status(status)
	h.amount = money.FromMinor(amount)
	return &h, nil
}

func planPosting(kind postingKind, op postingOp, id string, h *postingHeader) ([]Effect, error) {
	switch op {
	case opComplete:
		return PlanPostingComplete(kind.entity, id, kind.dir, h.status, h.accountID, h.amount)
	case opCancel:
		return PlanPostingCancel(kind.entity, id, kind.dir, h.status, h.accountID, h.amount)
	case opDelete:
		return PlanPostingDelete(kind.dir, h.status, h.accountID, h.amount), nil
	}
	return nil, fmt.Errorf("unknown %s operation %q", kind.entity, op)
}

// settlePostingCreate applies the creation effects of a new posting row. The caller
// has already inserted the row inside tx.
func (l *Ledger) settlePostingCreate(ctx context.Context, tx *sql.Tx, kind postingKind, organizationID string, status Status, accountID string, amount decimal.Decimal) error {
	effects, err := PlanPostingCreate(kind.dir, status, accountID, amount)
	if err != nil {
		return err
	}
	return l.apply(ctx, tx, organizationID, effects)
}

// validatePostingCreate runs the checks shared by payment creation, including
// guard layer 1 for completed outflows.
func (l *Ledger) validatePostingCreate(ctx context.Context, kind postingKind, organizationID string, status Status, accountID string, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if status != StatusPending && status != StatusCompleted {
		return NewInvalidState(kind.entity, "", string(status), "create")
	}
	if accountID == "" {
		return fmt.Errorf("%s account is required: %w", kind.entity, ErrValidation)
	}

	effects, err := PlanPostingCreate(kind.dir, status, accountID, amount)
	if err != nil {
		return err
	}
	if len(effects) == 0 {
		_, err := l.GetAccount(ctx, organizationID, accountID)
		return err
	}
	return l.precheck(ctx, organizationID, effects)
}

// transitionPosting completes, cancels or deletes a posting in one unit of work.
func (l *Ledger) transitionPosting(ctx context.Context, kind postingKind, op postingOp, organizationID, id string) error {
	h, err := readPostingHeader(ctx, l.conn, kind, organizationID, id)
	if err != nil {
		return err
	}
	effects, err := planPosting(kind, op, id, h)
	if err != nil {
		return err
	}
	if err := l.precheck(ctx, organizationID, effects); err != nil {
		return err
	}

	err = l.conn.Transaction(ctx, func(tx *sql.Tx) error {
		h, err := readPostingHeader(ctx, tx, kind, organizationID, id)
		if err != nil {
			return err
		}
		effects, err := planPosting(kind, op, id, h)
		if err != nil {
			return err
		}
		if err := l.apply(ctx, tx, organizationID, effects); err != nil {
			return err
		}

		switch op {
		case opDelete:
			_, err = tx.ExecContext(ctx, `DELETE FROM `+kind.table+` WHERE id = ?`, id)
		case opComplete:
			_, err = tx.ExecContext(ctx, `UPDATE `+kind.table+` SET status = ?, updated_at = ? WHERE id = ?`,
				string(StatusCompleted), l.now(), id)
		case opCancel:
			_, err = tx.ExecContext(ctx, `UPDATE `+kind.table+` SET status = ?, updated_at = ? WHERE id = ?`,
				string(StatusCancelled), l.now(), id)
		}
		if err != nil {
			return fmt.Errorf("failed to %s %s: %w", op, kind.entity, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info(kind.entity+" updated",
		"op", string(op),
		"org_id", organizationID,
		"id", id,
		"account_id", h.accountID,
		"amount", money.Format(h.amount),
	)
	return nil
}
