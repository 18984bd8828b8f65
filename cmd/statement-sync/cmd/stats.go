package cmd

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/config"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/db"
	"github.com/spf13/cobra"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display ledger statistics",
	Long: `Display statistics about recorded ledger entries and sync runs.

Shows:
- Total number of ledger entries
- Number of entries not yet reconciled
- Total number of statement sync runs
- Last sync timestamp

Example:
  statement-sync stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	slog.Info("Loading configuration")

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	// Validate required fields
	if err := cfg.Validate([]string{"ledger", "root"}); err != nil {
		exitOnError(err, "invalid configuration")
	}

	// Open database connection
	dbPath := newPathResolver(cfg).GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)

	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")
	defer conn.Close()

	// Get statistics
	stats, err := db.NewLedgerStore(conn).GetStats(cmd.Context())
	exitOnError(err, "failed to get statistics")

	// Display statistics
	fmt.Println()
	color.New(color.Bold).Println("=== Ledger Statistics ===")
	fmt.Printf("Total entries:     %d\n", stats.TotalEntries)
	if stats.Unreconciled > 0 {
		color.Yellow("Unreconciled:      %d", stats.Unreconciled)
	} else {
		fmt.Printf("Unreconciled:      %d\n", stats.Unreconciled)
	}
	fmt.Printf("Total sync runs:   %d\n", stats.TotalRuns)

	if stats.LastSync.Valid {
		fmt.Printf("Last sync:         %s\n", stats.LastSync.String)
	} else {
		fmt.Printf("Last sync:         (never)\n")
	}

	fmt.Println()

	slog.Info("Statistics displayed successfully")
}
