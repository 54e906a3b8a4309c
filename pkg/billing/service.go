package billing

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

// Service persists invoices, credit notes and quotations. Derived amounts
// are written only from CalculateTotals output.
type Service struct {
	conn       *db.Connection
	seq        numbering.Sequencer
	defaultVAT decimal.Decimal
	now        func() time.Time
}

// New creates a Service using DefaultVATPercent.
func New(conn *db.Connection, seq numbering.Sequencer) *Service {
	return &Service{
		conn:       conn,
		seq:        seq,
		defaultVAT: DefaultVATPercent,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetDefaultVATPercent changes the VAT applied when a document gives none.
func (s *Service) SetDefaultVATPercent(pct decimal.Decimal) {
	s.defaultVAT = pct
}

// DefaultVATPercent returns the VAT applied when a document gives none.
func (s *Service) DefaultVATPercent() decimal.Decimal {
	return s.defaultVAT
}

// Calculate runs the engine with the service's default VAT.
func (s *Service) Calculate(items []Item, discountPercent, vatPercent *decimal.Decimal) (Totals, error) {
	if vatPercent == nil {
		vat := s.defaultVAT
		vatPercent = &vat
	}
	if err := ValidateItems(items, discountPercent, vatPercent); err != nil {
		return Totals{}, err
	}
	return CalculateTotals(items, discountPercent, vatPercent), nil
}

// DocumentItem is a persisted document line.
type DocumentItem struct {
	ID          string          `json:"id"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Amounts are the derived fields shared by every document.
type Amounts struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	VATPercent      decimal.Decimal `json:"vat_percent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// docKind names the tables of one document family.
type docKind struct {
	entity    string
	table     string
	itemTable string
	fk        string
}

var (
	invoiceDocs   = docKind{entity: "invoice", table: "invoices", itemTable: "invoice_items", fk: "invoice_id"}
	quotationDocs = docKind{entity: "quotation", table: "quotations", itemTable: "quotation_items", fk: "quotation_id"}
)

// replaceItems rewrites the document's lines and derived amounts from t.
func (s *Service) replaceItems(ctx context.Context, tx *sql.Tx, kind docKind, docID string, t Totals) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+kind.itemTable+` WHERE `+kind.fk+` = ?`, docID); err != nil {
		return fmt.Errorf("failed to clear %s items: %w", kind.entity, err)
	}

	for i, line := range t.Lines {
		lineTotal, err := ledger.ToMinor(line.LineTotal)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+kind.itemTable+` (id, `+kind.fk+`, position, description, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), docID, i+1, line.Description,
			line.Quantity.String(), line.UnitPrice.String(), lineTotal,
		); err != nil {
			return fmt.Errorf("failed to insert %s item: %w", kind.entity, err)
		}
	}

	subtotal, discount, vat, total, err := storedTotals(t)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE `+kind.table+` SET discount_percent = ?, vat_percent = ?, subtotal = ?, discount_amount = ?,
			vat_amount = ?, total_amount = ?, updated_at = ?
		WHERE id = ?
	`, t.DiscountPercent.String(), t.VATPercent.String(), subtotal, discount,
		vat, total, s.now(), docID); err != nil {
		return fmt.Errorf("failed to update %s totals: %w", kind.entity, err)
	}
	return nil
}

func listItems(ctx context.Context, q db.Querier, kind docKind, docID string) ([]DocumentItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, position, description, quantity, unit_price, line_total
		FROM `+kind.itemTable+` WHERE `+kind.fk+` = ? ORDER BY position`,
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s items: %w", kind.entity, err)
	}
	defer rows.Close()

	items := []DocumentItem{}
	for rows.Next() {
		var item DocumentItem
		var quantity, unitPrice string
		var lineTotal int64
		if err := rows.Scan(&item.ID, &item.Position, &item.Description, &quantity, &unitPrice, &lineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan %s item: %w", kind.entity, err)
		}
		if item.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invalid stored quantity %q: %w", quantity, err)
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("invalid stored unit price %q: %w", unitPrice, err)
		}
		item.LineTotal = money.FromMinor(lineTotal)
		items = append(items, item)
	}
	return items, rows.Err()
}

// itemsOf converts persisted lines back into engine input.
func itemsOf(lines []DocumentItem) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return items
}

func (s *Service) nextNumber(ctx context.Context, organizationID string, kind numbering.Kind) (string, error) {
	number, err := s.seq.Next(ctx, organizationID, kind)
	if err != nil {
		return "", fmt.Errorf("failed to allocate reference number: %w", err)
	}
	return number, nil
}

func requireClient(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("client name is required: %w", ledger.ErrValidation)
	}
	return nil
}

func parsePercent(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid stored percentage %q: %w", s, err)
	}
	return d, nil
}

// storedTotals converts the derived amounts of t to minor units.
func storedTotals(t Totals) (subtotal, discount, vat, total int64, err error) {
	if subtotal, err = ledger.ToMinor(t.Subtotal); err != nil {
		return
	}
	if discount, err = ledger.ToMinor(t.DiscountAmount); err != nil {
		return
	}
	if vat, err = ledger.ToMinor(t.VATAmount); err != nil {
		return
	}
	total, err = ledger.ToMinor(t.TotalAmount)
	return
}
