package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

// QuotationStatus is the lifecycle state of a quotation.
type QuotationStatus string

const (
	QuotationDraft     QuotationStatus = "DRAFT"
	QuotationConverted QuotationStatus = "CONVERTED"
	QuotationCancelled QuotationStatus = "CANCELLED"
)

// Quotation is a priced offer that can be converted into an invoice.
type Quotation struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Number         string          `json:"number"`
	Status         QuotationStatus `json:"status"`
	ClientName     string          `json:"client_name"`
	Amounts
	Items     []DocumentItem `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

const quotationColumns = `id, organization_id, number, status, client_name, discount_percent, vat_percent,
	subtotal, discount_amount, vat_amount, total_amount, created_at, updated_at`

// CreateQuotation creates a DRAFT quotation priced by the calculation engine.
func (s *Service) CreateQuotation(ctx context.Context, organizationID string, in CreateInvoiceInput) (*Quotation, error) {
	if err := requireClient(in.ClientName); err != nil {
		return nil, err
	}
	totals, err := s.Calculate(in.Items, in.DiscountPercent, in.VATPercent)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	err = s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		number, err := s.nextNumber(ctx, organizationID, numbering.KindQuotation)
		if err != nil {
			return err
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO quotations (id, organization_id, number, status, client_name, discount_percent, vat_percent,
				subtotal, discount_amount, vat_amount, total_amount, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, '0', '0', 0, 0, 0, 0, ?, ?)
		`, id, organizationID, number, string(QuotationDraft), in.ClientName, now, now); err != nil {
			return fmt.Errorf("failed to create quotation: %w", err)
		}

		return s.replaceItems(ctx, tx, quotationDocs, id, totals)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("quotation created", "org_id", organizationID, "quotation_id", id, "total", money.Format(totals.TotalAmount))
	return s.GetQuotation(ctx, organizationID, id)
}

// UpdateQuotationItems replaces the items of a DRAFT quotation and reprices it.
func (s *Service) UpdateQuotationItems(ctx context.Context, organizationID, quotationID string, in UpdateItemsInput) (*Quotation, error) {
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		q, err := getQuotationHeader(ctx, tx, organizationID, quotationID)
		if err != nil {
			return err
		}
		if q.Status != QuotationDraft {
			return ledger.NewInvalidState("quotation", quotationID, string(q.Status), "edit items of")
		}

		discount, vat := q.DiscountPercent, q.VATPercent
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
		return s.replaceItems(ctx, tx, quotationDocs, quotationID, totals)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("quotation items updated", "org_id", organizationID, "quotation_id", quotationID, "items", len(in.Items))
	return s.GetQuotation(ctx, organizationID, quotationID)
}

// ConvertQuotation turns a DRAFT quotation into a new DRAFT invoice with the
// same items and percentages, and marks the quotation CONVERTED.
func (s *Service) ConvertQuotation(ctx context.Context, organizationID, quotationID string) (*Invoice, error) {
	var invoiceID string
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		q, err := getQuotationHeader(ctx, tx, organizationID, quotationID)
		if err != nil {
			return err
		}
		switch q.Status {
		case QuotationCancelled:
			return ledger.NewAlreadyCancelled("quotation", quotationID, "convert")
		case QuotationConverted:
			return ledger.NewInvalidState("quotation", quotationID, string(q.Status), "convert")
		}

		lines, err := listItems(ctx, tx, quotationDocs, quotationID)
		if err != nil {
			return err
		}
		totals := CalculateTotals(itemsOf(lines), &q.DiscountPercent, &q.VATPercent)

		invoiceID, err = s.insertInvoice(ctx, tx, organizationID, invoiceHeader{
			kind:        KindInvoice,
			status:      InvoiceDraft,
			clientName:  q.ClientName,
			quotationID: quotationID,
		}, totals)
		if err != nil {
			return err
		}

		return s.setQuotationStatus(ctx, tx, quotationID, QuotationDraft, QuotationConverted)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("quotation converted", "org_id", organizationID, "quotation_id", quotationID, "invoice_id", invoiceID)
	return s.GetInvoice(ctx, organizationID, invoiceID)
}

// CancelQuotation cancels a DRAFT quotation.
func (s *Service) CancelQuotation(ctx context.Context, organizationID, quotationID string) (*Quotation, error) {
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		q, err := getQuotationHeader(ctx, tx, organizationID, quotationID)
		if err != nil {
			return err
		}
		switch q.Status {
		case QuotationCancelled:
			return ledger.NewAlreadyCancelled("quotation", quotationID, "cancel")
		case QuotationConverted:
			return ledger.NewInvalidState("quotation", quotationID, string(q.Status), "cancel")
		}
		return s.setQuotationStatus(ctx, tx, quotationID, QuotationDraft, QuotationCancelled)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("quotation cancelled", "org_id", organizationID, "quotation_id", quotationID)
	return s.GetQuotation(ctx, organizationID, quotationID)
}

// GetQuotation returns a quotation with its items.
func (s *Service) GetQuotation(ctx context.Context, organizationID, quotationID string) (*Quotation, error) {
	q, err := getQuotationHeader(ctx, s.conn, organizationID, quotationID)
	if err != nil {
		return nil, err
	}
	q.Items, err = listItems(ctx, s.conn, quotationDocs, quotationID)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) setQuotationStatus(ctx context.Context, tx *sql.Tx, quotationID string, from, to QuotationStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE quotations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), s.now(), quotationID, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update quotation status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ledger.NewInvalidState("quotation", quotationID, string(from), "change status to "+string(to))
	}
	return nil
}

func getQuotationHeader(ctx context.Context, q db.Querier, organizationID, quotationID string) (*Quotation, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+quotationColumns+` FROM quotations WHERE id = ? AND organization_id = ?`,
		quotationID, organizationID,
	)

	var quote Quotation
	var status, discount, vat string
	var subtotal, discountAmount, vatAmount, total int64
	err := row.Scan(
		&quote.ID,
		&quote.OrganizationID,
		&quote.Number,
		&status,
		&quote.ClientName,
		&discount,
		&vat,
		&subtotal,
		&discountAmount,
		&vatAmount,
		&total,
		&quote.CreatedAt,
		&quote.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFound("quotation", quotationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quotation: %w", err)
	}

	if quote.DiscountPercent, err = parsePercent(discount); err != nil {
		return nil, err
	}
	if quote.VATPercent, err = parsePercent(vat); err != nil {
		return nil, err
	}
	quote.Status = QuotationStatus(status)
	quote.Subtotal = money.FromMinor(subtotal)
	quote.DiscountAmount = money.FromMinor(discountAmount)
	quote.VATAmount = money.FromMinor(vatAmount)
	quote.TotalAmount = money.FromMinor(total)
	return &quote, nil
}
