// Package main runs a local bank API sandbox for exercising statement-sync
// without real bank credentials.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shunichi-ikebuchi/bank-statement-sync/internal/sandbox"
)

const (
	defaultPort   = "8443"
	defaultDBPath = "./data/sandbox.db"
)

func main() {
	// Setup structured JSON logging.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Get configuration from environment variables.
	port := getEnvOrDefault("SANDBOX_PORT", defaultPort)
	dbPath := getEnvOrDefault("SANDBOX_DB_PATH", defaultDBPath)
	certFile := os.Getenv("SANDBOX_TLS_CERT")
	keyFile := os.Getenv("SANDBOX_TLS_KEY")
	clientCAFile := os.Getenv("SANDBOX_CLIENT_CA")

	creds := sandbox.Credentials{
		ClientID:     os.Getenv("SANDBOX_CLIENT_ID"),
		ClientSecret: os.Getenv("SANDBOX_CLIENT_SECRET"),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || certFile == "" || keyFile == "" {
		slog.Error("missing configuration",
			"required", []string{"SANDBOX_CLIENT_ID", "SANDBOX_CLIENT_SECRET", "SANDBOX_TLS_CERT", "SANDBOX_TLS_KEY"})
		os.Exit(1)
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ClientAuth: tls.RequireAnyClientCert,
	}
	if clientCAFile != "" {
		pem, err := os.ReadFile(clientCAFile)
		if err != nil {
			slog.Error("failed to read client CA", "error", err, "path", clientCAFile)
			os.Exit(1)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			slog.Error("client CA contains no certificates", "path", clientCAFile)
			os.Exit(1)
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	// Initialize store.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err, "db_path", dbPath)
		os.Exit(1)
	}
	st, err := sandbox.OpenStore(dbPath)
	if err != nil {
		slog.Error("failed to initialize store", "error", err, "db_path", dbPath)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	slog.Info("database initialized", "db_path", dbPath)

	handler := sandbox.NewHandler(st, sandbox.NewTokenManager(st, creds))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine.
	go func() {
		slog.Info("starting sandbox", "port", port, "verify_client_ca", clientCAFile != "")
		if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down sandbox")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("sandbox stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
