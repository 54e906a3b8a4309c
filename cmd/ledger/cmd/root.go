// Package cmd provides CLI commands for the ledger.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/masarpro/Masar-sub000/pkg/billing"
	"github.com/masarpro/Masar-sub000/pkg/category"
	"github.com/masarpro/Masar-sub000/pkg/config"
	"github.com/masarpro/Masar-sub000/pkg/db"
	"github.com/masarpro/Masar-sub000/pkg/ledger"
	"github.com/masarpro/Masar-sub000/pkg/numbering"
	"github.com/masarpro/Masar-sub000/pkg/pathutil"
	"github.com/masarpro/Masar-sub000/pkg/reconcile"
	"github.com/masarpro/Masar-sub000/pkg/runs"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Organization financial ledger",
	Long: `ledger keeps organization-scoped money accounts and the transactions
that move money in and out of them.

It supports:
- Expenses, incoming payments, subcontract payments and transfers
- Monthly payroll and recurring expense runs
- Balance reconciliation against transaction history
- Invoice and quotation totals

Example:
  ledger serve
  ledger reconcile --org org-1
  ledger calc --item 3x33.33 --vat 15`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(calcCmd)
}

// Helper function to get config file path.
func getConfigFile() string {
	return cfgFile
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}

// app holds the opened stores and the services built on them.
type app struct {
	cfg       *config.Config
	paths     *pathutil.PathResolver
	conn      *db.Connection
	seq       *numbering.BoltSequencer
	mapper    *category.Mapper
	ledger    *ledger.Ledger
	runs      *runs.Service
	reconcile *reconcile.Engine
	billing   *billing.Service
}

// openApp loads configuration and opens the ledger database and sequence store.
func openApp() *app {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate([]string{"ledger", "dataDir"}, []string{"ledger", "currency"}); err != nil {
		exitOnError(err, "invalid configuration")
	}

	paths := pathutil.New(pathutil.Config{
		DataDir:      cfg.Ledger.DataDir,
		DatabasePath: cfg.Ledger.DBPath,
		SequencePath: cfg.Ledger.SequencePath,
		ReportsDir:   cfg.Ledger.ReportsDir,
	})

	slog.Debug("Opening database", "path", paths.GetDatabasePath())
	conn, err := db.Open(paths.GetDatabasePath())
	exitOnError(err, "failed to open database")

	slog.Debug("Opening sequence store", "path", paths.GetSequencePath())
	seq, err := numbering.Open(paths.GetSequencePath())
	if err != nil {
		conn.Close()
		exitOnError(err, "failed to open sequence store")
	}

	mapper, err := category.Load(cfg.Ledger.CategoryMapping)
	if err != nil {
		seq.Close()
		conn.Close()
		exitOnError(err, "failed to load category mapping")
	}

	l := ledger.New(conn, seq)
	bill := billing.New(conn, seq)
	bill.SetDefaultVATPercent(cfg.Ledger.DefaultVATPercent)

	return &app{
		cfg:       cfg,
		paths:     paths,
		conn:      conn,
		seq:       seq,
		mapper:    mapper,
		ledger:    l,
		runs:      runs.New(l, mapper),
		reconcile: reconcile.New(conn),
		billing:   bill,
	}
}

func (a *app) Close() {
	if err := a.seq.Close(); err != nil {
		slog.Error("failed to close sequence store", "error", err)
	}
	if err := a.conn.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}
