package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masarpro/Masar-sub000/pkg/money"
)

var accountsOrg string

// accountsCmd represents the accounts command.
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the accounts of an organization",
	Long: `List the accounts of an organization with their stored balances.

Example:
  ledger accounts --org org-1`,
	Run: runAccounts,
}

func init() {
	accountsCmd.Flags().StringVar(&accountsOrg, "org", "", "Organization ID (required)")

	accountsCmd.MarkFlagRequired("org")
}

func runAccounts(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	accounts, err := a.ledger.ListAccounts(context.Background(), accountsOrg)
	exitOnError(err, "failed to list accounts")

	fmt.Printf("\n%-36s  %-20s  %-8s  %-4s  %14s  %s\n", "ID", "NAME", "TYPE", "CUR", "BALANCE", "FLAGS")
	for _, acct := range accounts {
		flags := ""
		if acct.IsDefault {
			flags += "default "
		}
		if !acct.IsActive {
			flags += "inactive"
		}
		fmt.Printf("%-36s  %-20s  %-8s  %-4s  %14s  %s\n",
			acct.ID, acct.Name, acct.Type, acct.Currency, money.Format(acct.Balance), flags)
	}
	fmt.Println()
}
