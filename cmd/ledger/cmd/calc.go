package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/masarpro/Masar-sub000/pkg/billing"
	"github.com/masarpro/Masar-sub000/pkg/money"
)

var (
	calcItems    []string
	calcDiscount string
	calcVAT      string
)

// calcCmd represents the calc command.
var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Price invoice lines without storing anything",
	Long: `Run the invoice calculation engine on the given lines.

Each --item is QUANTITYxUNIT_PRICE, optionally followed by :DESCRIPTION.
Line totals, the discount and VAT are each rounded to 2 decimals.

Example:
  ledger calc --item 3x33.33 --discount 0 --vat 15
  ledger calc --item "2x50:Design" --item "1x19.99:Hosting" --discount 10`,
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().StringArrayVar(&calcItems, "item", nil, "Line as QTYxPRICE[:DESCRIPTION] (repeatable)")
	calcCmd.Flags().StringVar(&calcDiscount, "discount", "0", "Discount percent")
	calcCmd.Flags().StringVar(&calcVAT, "vat", billing.DefaultVATPercent.String(), "VAT percent")
}

func runCalc(cmd *cobra.Command, args []string) error {
	items := make([]billing.Item, 0, len(calcItems))
	for _, raw := range calcItems {
		item, err := parseItem(raw)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	discount, err := decimal.NewFromString(calcDiscount)
	if err != nil {
		return fmt.Errorf("invalid --discount %q: %w", calcDiscount, err)
	}
	vat, err := decimal.NewFromString(calcVAT)
	if err != nil {
		return fmt.Errorf("invalid --vat %q: %w", calcVAT, err)
	}

	if err := billing.ValidateItems(items, &discount, &vat); err != nil {
		return err
	}

	printTotals(cmd, billing.CalculateTotals(items, &discount, &vat))
	return nil
}

// parseItem reads QUANTITYxUNIT_PRICE[:DESCRIPTION].
func parseItem(raw string) (billing.Item, error) {
	amounts, description, _ := strings.Cut(raw, ":")
	qty, price, ok := strings.Cut(strings.ToLower(amounts), "x")
	if !ok {
		return billing.Item{}, fmt.Errorf("invalid --item %q, expected QTYxPRICE", raw)
	}

	quantity, err := decimal.NewFromString(strings.TrimSpace(qty))
	if err != nil {
		return billing.Item{}, fmt.Errorf("invalid quantity in --item %q: %w", raw, err)
	}
	unitPrice, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return billing.Item{}, fmt.Errorf("invalid unit price in --item %q: %w", raw, err)
	}

	return billing.Item{
		Description: strings.TrimSpace(description),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}, nil
}

func printTotals(cmd *cobra.Command, t billing.Totals) {
	out := cmd.OutOrStdout()

	for i, line := range t.Lines {
		fmt.Fprintf(out, "%2d. %-24s %8s x %10s = %12s\n",
			i+1, line.Description, line.Quantity.String(), money.Format(line.UnitPrice), money.Format(line.LineTotal))
	}
	fmt.Fprintf(out, "Subtotal:          %12s\n", money.Format(t.Subtotal))
	fmt.Fprintf(out, "Discount (%s%%):  %12s\n", t.DiscountPercent.String(), money.Format(t.DiscountAmount))
	fmt.Fprintf(out, "After discount:    %12s\n", money.Format(t.AfterDiscount))
	fmt.Fprintf(out, "VAT (%s%%):       %12s\n", t.VATPercent.String(), money.Format(t.VATAmount))
	fmt.Fprintf(out, "Total:             %12s\n", money.Format(t.TotalAmount))
}
