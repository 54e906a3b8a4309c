package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/money"
)

func dec(s string) decimal.Decimal {
	return money.MustParse(s)
}

func pct(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func item(qty, price string) Item {
	return Item{Description: "line", Quantity: dec(qty), UnitPrice: dec(price)}
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "%s = %s, want %s", field, got, want)
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []Item
		discount *decimal.Decimal
		vat      *decimal.Decimal
		subtotal string
		discAmt  string
		vatAmt   string
		total    string
	}{
		{
			name:     "single line with default rates",
			items:    []Item{item("1", "100")},
			subtotal: "100", discAmt: "0", vatAmt: "15", total: "115",
		},
		{
			name:     "vat rounds half up",
			items:    []Item{item("3", "33.33")},
			discount: pct("0"), vat: pct("15"),
			subtotal: "99.99", discAmt: "0", vatAmt: "15.00", total: "114.99",
		},
		{
			name:     "no items",
			items:    nil,
			subtotal: "0", discAmt: "0", vatAmt: "0", total: "0",
		},
		{
			name:     "full discount",
			items:    []Item{item("2", "250")},
			discount: pct("100"),
			subtotal: "500", discAmt: "500", vatAmt: "0", total: "0",
		},
		{
			name:     "vat on discounted amount",
			items:    []Item{item("2", "50"), item("1", "19.999")},
			discount: pct("10"), vat: pct("15"),
			subtotal: "120", discAmt: "12", vatAmt: "16.20", total: "124.20",
		},
		{
			name:     "each step rounds",
			items:    []Item{item("1.5", "0.33")},
			subtotal: "0.50", discAmt: "0", vatAmt: "0.08", total: "0.58",
		},
		{
			name:     "line totals round before summing",
			items:    []Item{item("1", "0.005"), item("1", "0.005")},
			vat:      pct("0"),
			subtotal: "0.02", discAmt: "0", vatAmt: "0", total: "0.02",
		},
		{
			name:     "fractional discount",
			items:    []Item{item("1", "99.99")},
			discount: pct("12.5"), vat: pct("5"),
			subtotal: "99.99", discAmt: "12.50", vatAmt: "4.37", total: "91.86",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTotals(tt.items, tt.discount, tt.vat)
			assertAmount(t, tt.subtotal, got.Subtotal, "subtotal")
			assertAmount(t, tt.discAmt, got.DiscountAmount, "discount")
			assertAmount(t, tt.vatAmt, got.VATAmount, "vat")
			assertAmount(t, tt.total, got.TotalAmount, "total")

			assert.True(t, got.TotalAmount.Equal(got.AfterDiscount.Add(got.VATAmount)))
			assert.True(t, got.VATAmount.Equal(money.Round2(got.AfterDiscount.Mul(got.VATPercent).Div(money.Hundred))))
			assert.Len(t, got.Lines, len(tt.items))
		})
	}
}

func TestCalculateTotalsDefaults(t *testing.T) {
	got := CalculateTotals([]Item{item("1", "10")}, nil, nil)
	assert.True(t, got.DiscountPercent.IsZero())
	assert.True(t, got.VATPercent.Equal(dec("15")))
}

func TestCalculateTotalsIsDeterministic(t *testing.T) {
	items := []Item{item("3", "33.33"), item("0.75", "19.99"), item("12", "1.015")}
	first := CalculateTotals(items, pct("7.5"), pct("15"))
	for i := 0; i < 10; i++ {
		again := CalculateTotals(items, pct("7.5"), pct("15"))
		assert.True(t, first.TotalAmount.Equal(again.TotalAmount))
		assert.True(t, first.VATAmount.Equal(again.VATAmount))
		assert.True(t, first.DiscountAmount.Equal(again.DiscountAmount))
		assert.True(t, first.Subtotal.Equal(again.Subtotal))
	}
}

func TestCreditNoteTotalsMirrorInvoice(t *testing.T) {
	items := []Item{item("3", "33.33"), item("1", "100")}
	invoice := CalculateTotals(items, pct("10"), nil)
	credit := CreditNoteTotals(items, pct("10"), nil)

	assert.True(t, credit.Subtotal.Equal(invoice.Subtotal.Neg()))
	assert.True(t, credit.DiscountAmount.Equal(invoice.DiscountAmount.Neg()))
	assert.True(t, credit.AfterDiscount.Equal(invoice.AfterDiscount.Neg()))
	assert.True(t, credit.VATAmount.Equal(invoice.VATAmount.Neg()))
	assert.True(t, credit.TotalAmount.Equal(invoice.TotalAmount.Neg()))
	require.Len(t, credit.Lines, 2)
	for i := range credit.Lines {
		assert.True(t, credit.Lines[i].LineTotal.Equal(invoice.Lines[i].LineTotal.Neg()))
		assert.True(t, credit.Lines[i].Quantity.Equal(invoice.Lines[i].Quantity))
	}
	assert.True(t, credit.VATPercent.Equal(invoice.VATPercent))

	// Negate must not alias the invoice's lines.
	assert.True(t, invoice.Lines[0].LineTotal.IsPositive())
}

func TestValidateItems(t *testing.T) {
	assert.NoError(t, ValidateItems([]Item{item("1", "0")}, pct("100"), pct("0")))
	assert.NoError(t, ValidateItems(nil, nil, nil))

	tests := []struct {
		name     string
		items    []Item
		discount *decimal.Decimal
		vat      *decimal.Decimal
	}{
		{"zero quantity", []Item{item("0", "1")}, nil, nil},
		{"negative quantity", []Item{item("-1", "1")}, nil, nil},
		{"negative price", []Item{item("1", "-1")}, nil, nil},
		{"discount over 100", nil, pct("100.01"), nil},
		{"negative discount", nil, pct("-1"), nil},
		{"negative vat", nil, nil, pct("-15")},
		{"line total beyond limit", []Item{item("2", "500000000000000")}, nil, pct("0")},
		{"total beyond limit", []Item{item("1", "999999999999999")}, nil, pct("15")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateItems(tt.items, tt.discount, tt.vat), ledger.ErrInvalidAmount)
		})
	}
}
