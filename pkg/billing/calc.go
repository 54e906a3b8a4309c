// Package billing computes invoice and quotation totals and manages the
// invoice, credit note and quotation lifecycle.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
)

// DefaultVATPercent applies when no VAT percentage is given.
var DefaultVATPercent = decimal.NewFromInt(15)

// Item is one priced line of a document.
type Item struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Line is an Item with its rounded total.
type Line struct {
	Item
	LineTotal decimal.Decimal `json:"line_total"`
}

// Totals is the output of the calculation engine. Every derived amount of an
// invoice, credit note or quotation comes from here.
type Totals struct {
	Lines           []Line          `json:"lines"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	VATPercent      decimal.Decimal `json:"vat_percent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	AfterDiscount   decimal.Decimal `json:"after_discount"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// CalculateTotals prices items. Rounding happens at each step: line totals,
// then the discount, then VAT on the discounted amount. A nil discount is 0%
// and a nil VAT is DefaultVATPercent.
func CalculateTotals(items []Item, discountPercent, vatPercent *decimal.Decimal) Totals {
	t := Totals{
		Lines:           make([]Line, 0, len(items)),
		DiscountPercent: money.Zero,
		VATPercent:      DefaultVATPercent,
		Subtotal:        money.Zero,
	}
	if discountPercent != nil {
		t.DiscountPercent = *discountPercent
	}
	if vatPercent != nil {
		t.VATPercent = *vatPercent
	}

	for _, item := range items {
		lineTotal := money.Round2(item.Quantity.Mul(item.UnitPrice))
		t.Lines = append(t.Lines, Line{Item: item, LineTotal: lineTotal})
		t.Subtotal = t.Subtotal.Add(lineTotal)
	}

	t.DiscountAmount = money.Percent(t.Subtotal, t.DiscountPercent)
	t.AfterDiscount = t.Subtotal.Sub(t.DiscountAmount)
	t.VATAmount = money.Percent(t.AfterDiscount, t.VATPercent)
	t.TotalAmount = t.AfterDiscount.Add(t.VATAmount)
	return t
}

// Negate mirrors t for a credit note: every derived amount and line total
// changes sign. Quantities, prices and percentages are unchanged.
func (t Totals) Negate() Totals {
	n := t
	n.Lines = make([]Line, len(t.Lines))
	for i, l := range t.Lines {
		n.Lines[i] = Line{Item: l.Item, LineTotal: l.LineTotal.Neg()}
	}
	n.Subtotal = t.Subtotal.Neg()
	n.DiscountAmount = t.DiscountAmount.Neg()
	n.AfterDiscount = t.AfterDiscount.Neg()
	n.VATAmount = t.VATAmount.Neg()
	n.TotalAmount = t.TotalAmount.Neg()
	return n
}

// CreditNoteTotals is CalculateTotals followed by Negate.
func CreditNoteTotals(items []Item, discountPercent, vatPercent *decimal.Decimal) Totals {
	return CalculateTotals(items, discountPercent, vatPercent).Negate()
}

// ValidateItems rejects inputs the engine would price into nonsense:
// non-positive quantities, negative prices, out-of-range percentages and
// totals too large to store.
func ValidateItems(items []Item, discountPercent, vatPercent *decimal.Decimal) error {
	for i, item := range items {
		if !item.Quantity.IsPositive() {
			return &ledger.AmountError{Requested: item.Quantity, Reason: fmt.Sprintf("item %d quantity must be greater than zero", i+1)}
		}
		if item.UnitPrice.IsNegative() {
			return &ledger.AmountError{Requested: item.UnitPrice, Reason: fmt.Sprintf("item %d unit price must not be negative", i+1)}
		}
	}
	if discountPercent != nil && (discountPercent.IsNegative() || discountPercent.GreaterThan(money.Hundred)) {
		return &ledger.AmountError{Requested: *discountPercent, Reason: "discount percent must be between 0 and 100"}
	}
	if vatPercent != nil && vatPercent.IsNegative() {
		return &ledger.AmountError{Requested: *vatPercent, Reason: "VAT percent must not be negative"}
	}

	t := CalculateTotals(items, discountPercent, vatPercent)
	for i, line := range t.Lines {
		if !money.InRange(line.LineTotal) {
			return &ledger.AmountError{Requested: line.LineTotal, Reason: fmt.Sprintf("item %d total must be below %s", i+1, money.Limit)}
		}
	}
	for _, amount := range []decimal.Decimal{t.Subtotal, t.VATAmount, t.TotalAmount} {
		if !money.InRange(amount) {
			return &ledger.AmountError{Requested: amount, Reason: "document total must be below " + money.Limit.String()}
		}
	}
	return nil
}
