// Package ledger filters canonical transactions against what was already
// ingested and persists the rest.
package ledger

import (
	"context"
	"time"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/statement"
)

// Scope partitions ledger rows by tenant, branch and internal account.
// BranchID is empty when the tenant has no branches.
type Scope struct {
	TenantID  string
	BranchID  string
	AccountID string
}

// Window is an inclusive calendar-date range.
type Window struct {
	From time.Time
	To   time.Time
}

// Entry is a canonical transaction ready to be written to the ledger.
type Entry struct {
	statement.Transaction
	Scope      Scope
	DedupeKey  string
	Reconciled bool
}

// Run describes one statement sync reaching the persistence step.
type Run struct {
	ID       string
	Scope    Scope
	Window   Window
	Received int
}

// Store is the relational ledger collaborator.
//
// InsertEntries must be all-or-nothing: either every new row and the run record
// are committed, or nothing is. Rows whose dedupe key already exists in scope
// are skipped by the store, and the returned count covers only rows written.
type Store interface {
	ExistingKeys(ctx context.Context, scope Scope, window Window) (map[string]struct{}, error)
	InsertEntries(ctx context.Context, run Run, entries []Entry) (int, error)
}
