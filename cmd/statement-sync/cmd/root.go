// Package cmd provides CLI commands for statement-sync.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/config"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/db"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/pathutil"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/statement"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncer"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "statement-sync",
	Short: "Sync bank balances and statements into the ledger",
	Long: `statement-sync authenticates against the bank's API with a client
certificate and OAuth2 client credentials, then fetches balances or
statement pages and records new statement entries in a SQLite ledger.

It supports:
- One-shot balance and statement syncs from the command line
- An HTTP endpoint (POST /sync) for schedulers and other services
- Idempotent re-runs over overlapping date windows
- Ledger statistics

Example:
  statement-sync statement --tenant t1 --internal-account acc-1 \
    --bank 756 --branch-code 0001 --account 123456 \
    --from 2024-05-01 --to 2024-05-31
  statement-sync serve
  statement-sync stats`,
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
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(statementCmd)
	rootCmd.AddCommand(statsCmd)
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}

func newPathResolver(cfg *config.Config) *pathutil.PathResolver {
	return pathutil.New(pathutil.Config{
		Root:         cfg.Ledger.Root,
		DatabasePath: cfg.Ledger.DBPath,
		AliasesPath:  cfg.Ledger.AliasesPath,
	})
}

// newService wires the ledger database and alias tables into a sync service.
// The caller owns the returned connection.
func newService(cfg *config.Config) (*syncer.Service, *db.Connection, error) {
	pathResolver := newPathResolver(cfg)
	slog.Debug("Using data root", "path", pathResolver.GetRoot())

	var opts []syncer.Option
	if aliasesPath, ok := pathResolver.GetAliasesPath(); ok {
		if !pathResolver.FileExists(aliasesPath) {
			return nil, nil, fmt.Errorf("field alias file not found: %s", aliasesPath)
		}
		slog.Debug("Loading field aliases", "path", aliasesPath)
		aliases, err := statement.LoadAliases(aliasesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load field aliases: %w", err)
		}
		opts = append(opts, syncer.WithAliases(aliases))
	}

	dbPath := pathResolver.GetDatabasePath()
	if err := pathResolver.EnsureParentDir(dbPath); err != nil {
		return nil, nil, err
	}
	slog.Debug("Opening database", "path", dbPath)
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	return syncer.NewService(cfg.Bank, db.NewLedgerStore(conn), opts...), conn, nil
}
