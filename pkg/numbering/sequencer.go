// Package numbering generates human-readable reference numbers for ledger records.
package numbering

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Kind identifies the record family a number is generated for.
type Kind string

const (
	KindExpense            Kind = "EXP"
	KindPayment            Kind = "PAY"
	KindTransfer           Kind = "TRF"
	KindSubcontractPayment Kind = "SCP"
	KindPayrollRun         Kind = "PRL"
	KindExpenseRun         Kind = "EXR"
	KindInvoice            Kind = "INV"
	KindCreditNote         Kind = "CRN"
	KindQuotation          Kind = "QUO"
)

// Kinds lists every record family in display order.
var Kinds = []Kind{
	KindExpense, KindPayment, KindTransfer, KindSubcontractPayment,
	KindPayrollRun, KindExpenseRun, KindInvoice, KindCreditNote, KindQuotation,
}

// Sequencer hands out reference numbers. Uniqueness per organization and kind
// is the sequencer's contract; callers persist the value as-is.
type Sequencer interface {
	Next(ctx context.Context, organizationID string, kind Kind) (string, error)
}

// BoltSequencer is a Sequencer backed by a bbolt file, one bucket per
// organization and kind.
type BoltSequencer struct {
	db *bolt.DB
}

// Open opens (or creates) the sequence database at path.
func Open(path string) (*BoltSequencer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sequence directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open sequence database: %w", err)
	}

	return &BoltSequencer{db: db}, nil
}

// Close closes the database.
func (s *BoltSequencer) Close() error {
	return s.db.Close()
}

// Next returns the next number for kind, e.g. "EXP-000042".
func (s *BoltSequencer) Next(ctx context.Context, organizationID string, kind Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(organizationID, kind))
		if err != nil {
			return err
		}

		seq, err = b.NextSequence()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate %s number: %w", kind, err)
	}

	return Format(kind, seq), nil
}

// Current returns the last number handed out for kind, or 0.
func (s *BoltSequencer) Current(organizationID string, kind Kind) (uint64, error) {
	var seq uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketName(organizationID, kind)); b != nil {
			seq = b.Sequence()
		}
		return nil
	})
	return seq, err
}

// Format renders a sequence value as a reference number.
func Format(kind Kind, seq uint64) string {
	return fmt.Sprintf("%s-%06d", kind, seq)
}

func bucketName(organizationID string, kind Kind) []byte {
	return []byte(organizationID + "/" + string(kind))
}
