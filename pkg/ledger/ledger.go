package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

const dateLayout = "2006-01-02"

// Ledger records balance-affecting events for organizations.
type Ledger struct {
	conn *db.Connection
	seq  numbering.Sequencer
	now  func() time.Time
}

// New creates a Ledger over conn, drawing reference numbers from seq.
func New(conn *db.Connection, seq numbering.Sequencer) *Ledger {
	return &Ledger{
		conn: conn,
		seq:  seq,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Conn returns the connection the ledger writes through, so callers can
// compose ledger steps into a larger unit of work.
func (l *Ledger) Conn() *db.Connection {
	return l.conn
}

// Sequencer returns the reference number generator.
func (l *Ledger) Sequencer() numbering.Sequencer {
	return l.seq
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// SetClock replaces the ledger clock.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// precheck is guard layer 1: a non-authoritative read of every account the
// effects would debit, so obvious overdrafts fail before any unit of work.
func (l *Ledger) precheck(ctx context.Context, organizationID string, effects []Effect) error {
	for _, e := range effects {
		if e.Kind != EffectDebit {
			continue
		}
		if err := l.EnsureAvailable(ctx, organizationID, e.AccountID, e.Amount); err != nil {
			return err
		}
	}
	return nil
}

// apply executes effects in order inside tx.
func (l *Ledger) apply(ctx context.Context, tx *sql.Tx, organizationID string, effects []Effect) error {
	for _, e := range effects {
		var err error
		switch e.Kind {
		case EffectCredit:
			err = l.Credit(ctx, tx, organizationID, e.AccountID, e.Amount)
		case EffectDebit:
			err = l.Debit(ctx, tx, organizationID, e.AccountID, e.Amount)
		default:
			err = fmt.Errorf("unknown effect kind %q", e.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) nextNumber(ctx context.Context, organizationID string, kind numbering.Kind) (string, error) {
	number, err := l.seq.Next(ctx, organizationID, kind)
	if err != nil {
		return "", fmt.Errorf("failed to allocate reference number: %w", err)
	}
	return number, nil
}

func (l *Ledger) today() string {
	return l.now().Format(dateLayout)
}

// normalizeDate defaults an empty date to today and validates YYYY-MM-DD.
func (l *Ledger) normalizeDate(date string) (string, error) {
	if date == "" {
		return l.today(), nil
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, ErrValidation)
	}
	return date, nil
}

func newID() string {
	return uuid.NewString()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
