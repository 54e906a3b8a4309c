package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/masarpro/Masar-sub000/internal/api"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger HTTP API",
	Long: `Serve the ledger over HTTP on PORT (default 8080).

Every /api/v1 request must carry an X-Organization-ID header.

Example:
  PORT=9090 ledger serve`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		// Structured JSON logging for the server.
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	slog.Info("database initialized", "db_path", a.paths.GetDatabasePath())

	router := api.NewRouter(api.Services{
		Ledger:          a.ledger,
		Runs:            a.runs,
		Reconcile:       a.reconcile,
		Billing:         a.billing,
		DefaultCurrency: a.cfg.Ledger.Currency,
	})

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	slog.Info("starting ledger API", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		slog.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Close()
		exitOnError(err, "server error")
	}

	<-done
	slog.Info("server stopped")
}
