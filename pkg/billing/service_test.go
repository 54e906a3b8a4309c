package billing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

const testOrg = "org-1"

func newTestService(t *testing.T) *Service {
	t.Helper()

	dir := t.TempDir()
	conn, err := db.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	seq, err := numbering.Open(filepath.Join(dir, "seq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = seq.Close() })

	return New(conn, seq)
}

func TestCreateInvoiceStoresEngineOutput(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	inv, err := s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{
		ClientName: "ACME",
		Items:      []Item{{Description: "Steel beams", Quantity: dec("3"), UnitPrice: dec("33.33")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-000001", inv.Number)
	assert.Equal(t, KindInvoice, inv.Kind)
	assert.Equal(t, InvoiceDraft, inv.Status)
	assertAmount(t, "0", inv.DiscountPercent, "discount percent")
	assertAmount(t, "15", inv.VATPercent, "vat percent")
	assertAmount(t, "99.99", inv.Subtotal, "subtotal")
	assertAmount(t, "15.00", inv.VATAmount, "vat")
	assertAmount(t, "114.99", inv.TotalAmount, "total")

	require.Len(t, inv.Items, 1)
	assert.Equal(t, 1, inv.Items[0].Position)
	assert.Equal(t, "Steel beams", inv.Items[0].Description)
	assertAmount(t, "3", inv.Items[0].Quantity, "quantity")
	assertAmount(t, "33.33", inv.Items[0].UnitPrice, "unit price")
	assertAmount(t, "99.99", inv.Items[0].LineTotal, "line total")
}

func TestCreateInvoiceUsesConfiguredDefaultVAT(t *testing.T) {
	s := newTestService(t)
	s.SetDefaultVATPercent(dec("5"))

	inv, err := s.CreateInvoice(context.Background(), testOrg, CreateInvoiceInput{
		ClientName: "ACME",
		Items:      []Item{item("1", "100")},
	})
	require.NoError(t, err)
	assertAmount(t, "5", inv.VATPercent, "vat percent")
	assertAmount(t, "105", inv.TotalAmount, "total")
}

func TestCreateInvoiceValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{Items: []Item{item("1", "1")}})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{ClientName: "ACME", Items: []Item{item("0", "1")}})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{ClientName: "ACME", DiscountPercent: pct("150")})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestCreateInvoiceRejectsTotalsBeyondLimit(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{
		ClientName: "ACME",
		VATPercent: pct("0"),
		Items:      []Item{item("1", "184467440737095517.16")},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	// Each line fits but the VAT pushes the total over.
	_, err = s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{
		ClientName: "ACME",
		Items:      []Item{item("1", "900000000000000")},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	invoices, err := s.ListInvoices(ctx, testOrg)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestInvoiceLifecycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	inv, err := s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{ClientName: "ACME"})
	require.NoError(t, err)
	assertAmount(t, "0", inv.TotalAmount, "total")

	_, err = s.IssueInvoice(ctx, testOrg, inv.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState, "cannot issue without items")

	inv, err = s.UpdateInvoiceItems(ctx, testOrg, inv.ID, UpdateItemsInput{
		Items:           []Item{item("2", "50"), item("1", "19.999")},
		DiscountPercent: pct("10"),
	})
	require.NoError(t, err)
	require.Len(t, inv.Items, 2)
	assertAmount(t, "10", inv.DiscountPercent, "discount percent")
	assertAmount(t, "124.20", inv.TotalAmount, "total")

	// Percentages persist across later edits that omit them.
	inv, err = s.UpdateInvoiceItems(ctx, testOrg, inv.ID, UpdateItemsInput{Items: []Item{item("1", "100")}})
	require.NoError(t, err)
	assertAmount(t, "10", inv.DiscountPercent, "discount percent")
	assertAmount(t, "103.50", inv.TotalAmount, "total")

	inv, err = s.IssueInvoice(ctx, testOrg, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceIssued, inv.Status)

	_, err = s.UpdateInvoiceItems(ctx, testOrg, inv.ID, UpdateItemsInput{Items: []Item{item("1", "1")}})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
	_, err = s.IssueInvoice(ctx, testOrg, inv.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	inv, err = s.CancelInvoice(ctx, testOrg, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceCancelled, inv.Status)

	_, err = s.CancelInvoice(ctx, testOrg, inv.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyCancelled)
}

func TestIssueCreditNote(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	inv, err := s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{
		ClientName:      "ACME",
		Items:           []Item{item("3", "33.33"), item("1", "100")},
		DiscountPercent: pct("10"),
	})
	require.NoError(t, err)

	_, err = s.IssueCreditNote(ctx, testOrg, inv.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState, "draft invoices cannot be credited")

	inv, err = s.IssueInvoice(ctx, testOrg, inv.ID)
	require.NoError(t, err)

	cn, err := s.IssueCreditNote(ctx, testOrg, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, KindCreditNote, cn.Kind)
	assert.Equal(t, InvoiceIssued, cn.Status)
	assert.Equal(t, "CRN-000001", cn.Number)
	assert.Equal(t, inv.ID, cn.OriginalInvoiceID)
	assert.Equal(t, inv.ClientName, cn.ClientName)

	assert.True(t, cn.Subtotal.Equal(inv.Subtotal.Neg()))
	assert.True(t, cn.DiscountAmount.Equal(inv.DiscountAmount.Neg()))
	assert.True(t, cn.VATAmount.Equal(inv.VATAmount.Neg()))
	assert.True(t, cn.TotalAmount.Equal(inv.TotalAmount.Neg()))
	require.Len(t, cn.Items, len(inv.Items))
	for i := range cn.Items {
		assert.True(t, cn.Items[i].LineTotal.Equal(inv.Items[i].LineTotal.Neg()))
		assert.True(t, cn.Items[i].Quantity.Equal(inv.Items[i].Quantity))
	}

	_, err = s.IssueCreditNote(ctx, testOrg, inv.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState, "one live credit note per invoice")

	_, err = s.IssueCreditNote(ctx, testOrg, cn.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState, "credit notes cannot be credited")

	_, err = s.CancelInvoice(ctx, testOrg, cn.ID)
	require.NoError(t, err)
	_, err = s.IssueCreditNote(ctx, testOrg, inv.ID)
	require.NoError(t, err, "a cancelled credit note frees the invoice")

	list, err := s.ListInvoices(ctx, testOrg)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestQuotationConversion(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	q, err := s.CreateQuotation(ctx, testOrg, CreateInvoiceInput{
		ClientName: "Contoso",
		Items:      []Item{item("1", "100")},
		VATPercent: pct("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "QUO-000001", q.Number)
	assert.Equal(t, QuotationDraft, q.Status)
	assertAmount(t, "105", q.TotalAmount, "total")

	q, err = s.UpdateQuotationItems(ctx, testOrg, q.ID, UpdateItemsInput{
		Items:           []Item{item("2", "100")},
		DiscountPercent: pct("50"),
	})
	require.NoError(t, err)
	assertAmount(t, "105", q.TotalAmount, "total")
	assertAmount(t, "5", q.VATPercent, "vat percent")

	inv, err := s.ConvertQuotation(ctx, testOrg, q.ID)
	require.NoError(t, err)
	assert.Equal(t, KindInvoice, inv.Kind)
	assert.Equal(t, InvoiceDraft, inv.Status)
	assert.Equal(t, q.ID, inv.QuotationID)
	assert.Equal(t, "Contoso", inv.ClientName)
	assert.True(t, inv.TotalAmount.Equal(q.TotalAmount))
	assert.True(t, inv.DiscountPercent.Equal(q.DiscountPercent))
	require.Len(t, inv.Items, 1)

	q, err = s.GetQuotation(ctx, testOrg, q.ID)
	require.NoError(t, err)
	assert.Equal(t, QuotationConverted, q.Status)

	_, err = s.ConvertQuotation(ctx, testOrg, q.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
	_, err = s.UpdateQuotationItems(ctx, testOrg, q.ID, UpdateItemsInput{})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
	_, err = s.CancelQuotation(ctx, testOrg, q.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestCancelledQuotationCannotConvert(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	q, err := s.CreateQuotation(ctx, testOrg, CreateInvoiceInput{ClientName: "Contoso", Items: []Item{item("1", "1")}})
	require.NoError(t, err)
	_, err = s.CancelQuotation(ctx, testOrg, q.ID)
	require.NoError(t, err)

	_, err = s.ConvertQuotation(ctx, testOrg, q.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyCancelled)
	_, err = s.CancelQuotation(ctx, testOrg, q.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyCancelled)
}

func TestDocumentsAreScopedToOrganization(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	inv, err := s.CreateInvoice(ctx, testOrg, CreateInvoiceInput{ClientName: "ACME"})
	require.NoError(t, err)
	q, err := s.CreateQuotation(ctx, testOrg, CreateInvoiceInput{ClientName: "ACME"})
	require.NoError(t, err)

	_, err = s.GetInvoice(ctx, "org-2", inv.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = s.GetQuotation(ctx, "org-2", q.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = s.ConvertQuotation(ctx, "org-2", q.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
