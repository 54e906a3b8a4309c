package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
)

var statsOrg string

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display ledger statistics",
	Long: `Display row counts of the ledger, for one organization or all of them.
With --org the last reference number of each record family is shown too.

Example:
  ledger stats
  ledger stats --org org-1`,
	Run: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsOrg, "org", "", "Organization ID (default all)")
}

func runStats(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	stats, err := db.GetStats(context.Background(), a.conn, statsOrg)
	exitOnError(err, "failed to get statistics")

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Ledger Statistics ===")
	fmt.Fprintf(out, "Database:              %s\n", a.conn.GetPath())
	fmt.Fprintf(out, "Accounts:              %d\n", stats.Accounts)
	fmt.Fprintf(out, "Expenses:              %d (%d pending)\n", stats.Expenses, stats.PendingExpenses)
	fmt.Fprintf(out, "Payments:              %d\n", stats.Payments)
	fmt.Fprintf(out, "Subcontract payments:  %d\n", stats.SubcontractPayments)
	fmt.Fprintf(out, "Transfers:             %d\n", stats.Transfers)
	fmt.Fprintf(out, "Payroll runs:          %d\n", stats.PayrollRuns)
	fmt.Fprintf(out, "Expense runs:          %d\n", stats.ExpenseRuns)
	fmt.Fprintf(out, "Invoices:              %d\n", stats.Invoices)
	fmt.Fprintf(out, "Quotations:            %d\n", stats.Quotations)

	if statsOrg != "" {
		fmt.Fprintln(out, "\n=== Last Reference Numbers ===")
		for _, kind := range numbering.Kinds {
			seq, err := a.seq.Current(statsOrg, kind)
			exitOnError(err, "failed to read sequence")
			if seq == 0 {
				fmt.Fprintf(out, "%-22s -\n", string(kind)+":")
				continue
			}
			fmt.Fprintf(out, "%-22s %s\n", string(kind)+":", numbering.Format(kind, seq))
		}
	}

	mappings := a.mapper.GetAllMappings()
	if len(mappings) > 0 {
		keys := make([]string, 0, len(mappings))
		for k := range mappings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(out, "\n=== Category Mapping ===")
		for _, k := range keys {
			fmt.Fprintf(out, "%-22s -> %s\n", k, mappings[k])
		}
	}
	fmt.Fprintln(out)

	slog.Info("Statistics displayed successfully")
}
