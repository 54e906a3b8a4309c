package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/masarpro/Masar-sub000/pkg/money"
	"github.com/masarpro/Masar-sub000/pkg/reconcile"
)

var (
	reconcileOrg     string
	reconcileAccount string
	reconcileSave    bool
)

// reconcileCmd represents the reconcile command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare stored balances with transaction history",
	Long: `Recompute every account balance of an organization from its opening
balance and transactions, and compare it with the stored balance.

Exits with status 2 when any account drifts by more than 0.01.
Nothing is corrected.

Example:
  ledger reconcile --org org-1
  ledger reconcile --org org-1 --account <id> --save`,
	Run: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileOrg, "org", "", "Organization ID (required)")
	reconcileCmd.Flags().StringVar(&reconcileAccount, "account", "", "Reconcile a single account")
	reconcileCmd.Flags().BoolVar(&reconcileSave, "save", false, "Save the report as JSON under the reports directory")

	reconcileCmd.MarkFlagRequired("org")
}

func runReconcile(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	ctx := context.Background()

	var reports []reconcile.Report
	if reconcileAccount != "" {
		report, err := a.reconcile.Reconcile(ctx, reconcileOrg, reconcileAccount)
		exitOnError(err, "failed to reconcile account")
		reports = []reconcile.Report{*report}
	} else {
		var err error
		reports, err = a.reconcile.ReconcileAll(ctx, reconcileOrg)
		exitOnError(err, "failed to reconcile accounts")
	}

	drifted := 0
	fmt.Println("\n=== Reconciliation ===")
	fmt.Printf("%-36s  %-20s  %14s  %14s  %10s  %s\n", "ACCOUNT", "NAME", "EXPECTED", "STORED", "DELTA", "STATUS")
	for _, r := range reports {
		status := "OK"
		if !r.IsBalanced {
			status = "DRIFT"
			drifted++
		}
		fmt.Printf("%-36s  %-20s  %14s  %14s  %10s  %s\n",
			r.AccountID, r.AccountName, money.Format(r.Expected), money.Format(r.Stored), money.Format(r.Delta), status)
	}
	fmt.Printf("\nAccounts: %d, drifted: %d\n\n", len(reports), drifted)

	if reconcileSave {
		path, err := saveReport(a, reports)
		exitOnError(err, "failed to save report")
		slog.Info("Report saved", "path", path)
	}

	if drifted > 0 {
		a.Close()
		os.Exit(2)
	}
}

func saveReport(a *app, reports []reconcile.Report) (string, error) {
	path, err := a.paths.GetReconcileReportPath(reconcileOrg, time.Now().Format("2006-01-02"))
	if err != nil {
		return "", err
	}
	if err := a.paths.EnsureParentDir(path); err != nil {
		return "", err
	}
	if a.paths.FileExists(path) {
		slog.Warn("Replacing earlier report from today", "path", path)
	}

	data, err := json.MarshalIndent(map[string]interface{}{
		"organization_id": reconcileOrg,
		"generated_at":    time.Now().UTC(),
		"reports":         reports,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
