package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/config"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/server"
	"github.com/spf13/cobra"
)

var port string

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sync endpoint over HTTP",
	Long: `Start an HTTP server exposing POST /sync and GET /health.

The request body of POST /sync is a JSON sync request:
  {"action":"statement","tenantId":"t1","internalAccountId":"acc-1",
   "bankId":"756","branchCode":"0001","accountNumber":"123456",
   "dateFrom":"2024-05-01","dateTo":"2024-05-31"}

Example:
  statement-sync serve --port 8080`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&port, "port", "", "Listen port (default is $PORT or 8080)")
}

func runServe(cmd *cobra.Command, args []string) {
	// Setup structured JSON logging.
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	// Bank secrets are checked per request so a misconfigured deployment still answers /health.
	if err := cfg.Bank.Validate(); err != nil {
		slog.Warn("Bank configuration incomplete; sync requests will fail", "error", err)
	}

	svc, conn, err := newService(cfg)
	exitOnError(err, "failed to initialize sync service")
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if port == "" {
		port = cfg.Port
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server.New(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", port, "db_path", conn.GetPath())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		exitOnError(err, "server failed")
	}

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
