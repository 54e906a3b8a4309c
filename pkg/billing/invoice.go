package billing

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
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

// InvoiceKind distinguishes invoices from credit notes.
type InvoiceKind string

const (
	KindInvoice    InvoiceKind = "INVOICE"
	KindCreditNote InvoiceKind = "CREDIT_NOTE"
)

// InvoiceStatus is the lifecycle state of an invoice or credit note.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceIssued    InvoiceStatus = "ISSUED"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// Invoice is an invoice or a credit note.
type Invoice struct {
	ID                string         `json:"id"`
	OrganizationID    string         `json:"organization_id"`
	Number            string         `json:"number"`
	Kind              InvoiceKind    `json:"kind"`
	Status            InvoiceStatus  `json:"status"`
	ClientName        string         `json:"client_name"`
	QuotationID       string         `json:"quotation_id,omitempty"`
	OriginalInvoiceID string         `json:"original_invoice_id,omitempty"`
	Amounts
	Items     []DocumentItem `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CreateInvoiceInput describes a new DRAFT invoice.
type CreateInvoiceInput struct {
	ClientName      string           `json:"client_name"`
	Items           []Item           `json:"items"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	VATPercent      *decimal.Decimal `json:"vat_percent,omitempty"`
}

// UpdateItemsInput replaces a DRAFT document's items. Nil percentages keep
// the document's current ones.
type UpdateItemsInput struct {
	Items           []Item           `json:"items"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	VATPercent      *decimal.Decimal `json:"vat_percent,omitempty"`
}

type invoiceHeader struct {
	kind              InvoiceKind
	status            InvoiceStatus
	clientName        string
	quotationID       string
	originalInvoiceID string
}

const invoiceColumns = `id, organization_id, number, kind, status, client_name, quotation_id, original_invoice_id,
	discount_percent, vat_percent, subtotal, discount_amount, vat_amount, total_amount, created_at, updated_at`

// CreateInvoice creates a DRAFT invoice priced by the calculation engine.
func (s *Service) CreateInvoice(ctx context.Context, organizationID string, in CreateInvoiceInput) (*Invoice, error) {
	if err := requireClient(in.ClientName); err != nil {
		return nil, err
	}
	totals, err := s.Calculate(in.Items, in.DiscountPercent, in.VATPercent)
	if err != nil {
		return nil, err
	}

	var id string
	err = s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.insertInvoice(ctx, tx, organizationID, invoiceHeader{
			kind:       KindInvoice,
			status:     InvoiceDraft,
			clientName: in.ClientName,
		}, totals)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("invoice created", "org_id", organizationID, "invoice_id", id, "total", money.Format(totals.TotalAmount))
	return s.GetInvoice(ctx, organizationID, id)
}

func (s *Service) insertInvoice(ctx context.Context, tx *sql.Tx, organizationID string, h invoiceHeader, totals Totals) (string, error) {
	seqKind := numbering.KindInvoice
	if h.kind == KindCreditNote {
		seqKind = numbering.KindCreditNote
	}
	number, err := s.nextNumber(ctx, organizationID, seqKind)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := s.now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (id, organization_id, number, kind, status, client_name, quotation_id, original_invoice_id,
			discount_percent, vat_percent, subtotal, discount_amount, vat_amount, total_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '0', '0', 0, 0, 0, 0, ?, ?)
	`, id, organizationID, number, string(h.kind), string(h.status), h.clientName,
		nullString(h.quotationID), nullString(h.originalInvoiceID), now, now); err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}

	if err := s.replaceItems(ctx, tx, invoiceDocs, id, totals); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateInvoiceItems replaces the items of a DRAFT invoice and reprices it.
func (s *Service) UpdateInvoiceItems(ctx context.Context, organizationID, invoiceID string, in UpdateItemsInput) (*Invoice, error) {
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		inv, err := getInvoiceHeader(ctx, tx, organizationID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Kind != KindInvoice || inv.Status != InvoiceDraft {
			return ledger.NewInvalidState("invoice", invoiceID, string(inv.Status), "edit items of")
		}

		discount, vat := inv.DiscountPercent, inv.VATPercent
		if in.DiscountPercent != nil {
			discount = *in.DiscountPercent
		}
		if in.VATPercent != nil {
			vat = *in.VATPercent
		}
		totals, err := s.Calculate(in.Items, &discount, &vat)
		if err != nil {
			return err
		}
		return s.replaceItems(ctx, tx, invoiceDocs, invoiceID, totals)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("invoice items updated", "org_id", organizationID, "invoice_id", invoiceID, "items", len(in.Items))
	return s.GetInvoice(ctx, organizationID, invoiceID)
}

// IssueInvoice moves a DRAFT invoice with at least one item to ISSUED.
func (s *Service) IssueInvoice(ctx context.Context, organizationID, invoiceID string) (*Invoice, error) {
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		inv, err := getInvoiceHeader(ctx, tx, organizationID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Kind != KindInvoice || inv.Status != InvoiceDraft {
			return ledger.NewInvalidState("invoice", invoiceID, string(inv.Status), "issue")
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM invoice_items WHERE invoice_id = ?`, invoiceID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count invoice items: %w", err)
		}
		if count == 0 {
			return ledger.NewInvalidState("invoice", invoiceID, string(inv.Status), "issue without items")
		}

		return s.setInvoiceStatus(ctx, tx, invoiceID, InvoiceDraft, InvoiceIssued)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("invoice issued", "org_id", organizationID, "invoice_id", invoiceID)
	return s.GetInvoice(ctx, organizationID, invoiceID)
}

// CancelInvoice cancels a DRAFT or ISSUED invoice or credit note.
func (s *Service) CancelInvoice(ctx context.Context, organizationID, invoiceID string) (*Invoice, error) {
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		inv, err := getInvoiceHeader(ctx, tx, organizationID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == InvoiceCancelled {
			return ledger.NewAlreadyCancelled("invoice", invoiceID, "cancel")
		}
		return s.setInvoiceStatus(ctx, tx, invoiceID, inv.Status, InvoiceCancelled)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("invoice cancelled", "org_id", organizationID, "invoice_id", invoiceID)
	return s.GetInvoice(ctx, organizationID, invoiceID)
}

// IssueCreditNote creates an ISSUED credit note mirroring an ISSUED invoice:
// same items and percentages, every derived amount negated. An invoice has at
// most one live credit note.
func (s *Service) IssueCreditNote(ctx context.Context, organizationID, invoiceID string) (*Invoice, error) {
	var id string
	var total decimal.Decimal
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		original, err := getInvoiceHeader(ctx, tx, organizationID, invoiceID)
		if err != nil {
			return err
		}
		if original.Kind != KindInvoice || original.Status != InvoiceIssued {
			return ledger.NewInvalidState("invoice", invoiceID, string(original.Status), "credit")
		}

		var existing int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM invoices
			WHERE original_invoice_id = ? AND kind = ? AND status <> ?
		`, invoiceID, string(KindCreditNote), string(InvoiceCancelled)).Scan(&existing); err != nil {
			return fmt.Errorf("failed to check credit notes: %w", err)
		}
		if existing > 0 {
			return ledger.NewInvalidState("invoice", invoiceID, string(original.Status), "credit twice")
		}

		lines, err := listItems(ctx, tx, invoiceDocs, invoiceID)
		if err != nil {
			return err
		}
		totals := CreditNoteTotals(itemsOf(lines), &original.DiscountPercent, &original.VATPercent)
		total = totals.TotalAmount

		id, err = s.insertInvoice(ctx, tx, organizationID, invoiceHeader{
			kind:              KindCreditNote,
			status:            InvoiceIssued,
			clientName:        original.ClientName,
			originalInvoiceID: invoiceID,
		}, totals)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("credit note issued", "org_id", organizationID, "invoice_id", invoiceID, "credit_note_id", id, "total", money.Format(total))
	return s.GetInvoice(ctx, organizationID, id)
}

// GetInvoice returns an invoice or credit note with its items.
func (s *Service) GetInvoice(ctx context.Context, organizationID, invoiceID string) (*Invoice, error) {
	inv, err := getInvoiceHeader(ctx, s.conn, organizationID, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Items, err = listItems(ctx, s.conn, invoiceDocs, invoiceID)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns the organization's invoices and credit notes without items.
func (s *Service) ListInvoices(ctx context.Context, organizationID string) ([]Invoice, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE organization_id = ? ORDER BY created_at DESC, number DESC`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (s *Service) setInvoiceStatus(ctx context.Context, tx *sql.Tx, invoiceID string, from, to InvoiceStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), s.now(), invoiceID, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ledger.NewInvalidState("invoice", invoiceID, string(from), "change status to "+string(to))
	}
	return nil
}

func getInvoiceHeader(ctx context.Context, q db.Querier, organizationID, invoiceID string) (*Invoice, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ? AND organization_id = ?`,
		invoiceID, organizationID,
	)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFound("invoice", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(s scanner) (*Invoice, error) {
	var inv Invoice
	var kind, status, discount, vat string
	var quotationID, originalID sql.NullString
	var subtotal, discountAmount, vatAmount, total int64

	if err := s.Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.Number,
		&kind,
		&status,
		&inv.ClientName,
		&quotationID,
		&originalID,
		&discount,
		&vat,
		&subtotal,
		&discountAmount,
		&vatAmount,
		&total,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if inv.DiscountPercent, err = parsePercent(discount); err != nil {
		return nil, err
	}
	if inv.VATPercent, err = parsePercent(vat); err != nil {
		return nil, err
	}
	inv.Kind = InvoiceKind(kind)
	inv.Status = InvoiceStatus(status)
	inv.QuotationID = quotationID.String
	inv.OriginalInvoiceID = originalID.String
	inv.Subtotal = money.FromMinor(subtotal)
	inv.DiscountAmount = money.FromMinor(discountAmount)
	inv.VATAmount = money.FromMinor(vatAmount)
	inv.TotalAmount = money.FromMinor(total)
	return &inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
