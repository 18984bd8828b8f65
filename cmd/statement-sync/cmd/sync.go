package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/config"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncer"
	"github.com/spf13/cobra"
)

var (
	tenantID          string
	branchID          string
	internalAccountID string
	bankID            string
	branchCode        string
	accountNumber     string
	dateFrom          string
	dateTo            string
	pageOffset        int
	pageLimit         int
)

// balanceCmd represents the balance command.
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Fetch an account balance",
	Long: `Fetch the current balance of a bank account and print the raw payload.

Example:
  statement-sync balance --tenant t1 --bank 756 --branch-code 0001 --account 123456`,
	Run: runBalance,
}

// statementCmd represents the statement command.
var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Sync one statement page into the ledger",
	Long: `Fetch one page of an account statement and record new entries in the ledger.

This command:
1. Fetches one statement page from the bank API
2. Normalizes the entries into ledger transactions
3. Filters out entries already recorded for the account
4. Inserts the remaining entries in a single transaction

Only one page is fetched per run. When the bank reports more pages,
re-run with a higher --offset.

Example:
  statement-sync statement --tenant t1 --internal-account acc-1 \
    --bank 756 --branch-code 0001 --account 123456 \
    --from 2024-05-01 --to 2024-05-31
  statement-sync statement ... --offset 2 --limit 100`,
	Run: runStatement,
}

func init() {
	for _, c := range []*cobra.Command{balanceCmd, statementCmd} {
		c.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
		c.Flags().StringVar(&bankID, "bank", "", "Bank ID (required)")
		c.Flags().StringVar(&branchCode, "branch-code", "", "Bank branch code (required)")
		c.Flags().StringVar(&accountNumber, "account", "", "Bank account number (required)")

		c.MarkFlagRequired("tenant")
		c.MarkFlagRequired("bank")
		c.MarkFlagRequired("branch-code")
		c.MarkFlagRequired("account")
	}

	statementCmd.Flags().StringVar(&branchID, "branch", "", "Tenant branch ID")
	statementCmd.Flags().StringVar(&internalAccountID, "internal-account", "", "Internal ledger account ID (required)")
	statementCmd.Flags().StringVar(&dateFrom, "from", "", "Start date (YYYY-MM-DD) (required)")
	statementCmd.Flags().StringVar(&dateTo, "to", "", "End date (YYYY-MM-DD) (required)")
	statementCmd.Flags().IntVar(&pageOffset, "offset", 0, "Statement page offset (default 1)")
	statementCmd.Flags().IntVar(&pageLimit, "limit", 0, "Statement page size (default 50)")

	statementCmd.MarkFlagRequired("internal-account")
	statementCmd.MarkFlagRequired("from")
	statementCmd.MarkFlagRequired("to")
}

func runBalance(cmd *cobra.Command, args []string) {
	result := runSync(cmd.Context(), syncer.Request{
		Action:        syncer.ActionBalance,
		TenantID:      tenantID,
		BankID:        bankID,
		BranchCode:    branchCode,
		AccountNumber: accountNumber,
	})

	fmt.Println(string(result.Balance))
}

func runStatement(cmd *cobra.Command, args []string) {
	result := runSync(cmd.Context(), syncer.Request{
		Action:            syncer.ActionStatement,
		TenantID:          tenantID,
		BranchID:          branchID,
		InternalAccountID: internalAccountID,
		BankID:            bankID,
		BranchCode:        branchCode,
		AccountNumber:     accountNumber,
		DateFrom:          dateFrom,
		DateTo:            dateTo,
		PageOffset:        pageOffset,
		PageLimit:         pageLimit,
	})

	printSummary(result.Summary)
}

func runSync(ctx context.Context, req syncer.Request) *syncer.Result {
	slog.Info("Starting sync", "action", req.Action, "tenant_id", req.TenantID, "from", req.DateFrom, "to", req.DateTo)

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := req.Validate(); err != nil {
		exitOnError(err, "invalid request")
	}

	// Validate required fields
	if err := cfg.Validate(
		[]string{"bank", "clientId"},
		[]string{"bank", "clientSecret"},
		[]string{"bank", "certBundle"},
		[]string{"bank", "certPassphrase"},
		[]string{"bank", "apiUrl"},
		[]string{"bank", "tokenUrl"},
	); err != nil {
		exitOnError(err, "invalid configuration")
	}

	svc, conn, err := newService(cfg)
	exitOnError(err, "failed to initialize sync service")
	defer conn.Close()

	result, err := svc.Sync(ctx, req)
	if err != nil {
		conn.Close()
		exitOnError(err, "sync failed")
	}

	return result
}

func printSummary(summary *syncer.Summary) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	bold.Println("=== Statement Sync ===")
	fmt.Printf("Received: %d\n", summary.Received)
	green.Printf("Inserted: %d\n", summary.Inserted)
	if summary.Ignored > 0 {
		yellow.Printf("Ignored:  %d\n", summary.Ignored)
	} else {
		fmt.Printf("Ignored:  %d\n", summary.Ignored)
	}
	fmt.Println()
}
