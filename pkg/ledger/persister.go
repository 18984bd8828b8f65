package ledger

import (
	"context"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/statement"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
)

// Persister writes deduplicated transactions as unreconciled ledger entries.
type Persister struct {
	store Store
}

// NewPersister creates a new Persister.
func NewPersister(store Store) *Persister {
	return &Persister{store: store}
}

// Persist writes txns in one batch and returns the number of rows inserted.
// A failed batch is reported once and never retried.
func (p *Persister) Persist(ctx context.Context, run Run, txns []statement.Transaction) (int, error) {
	entries := make([]Entry, 0, len(txns))
	for _, txn := range txns {
		entries = append(entries, Entry{
			Transaction: txn,
			Scope:       run.Scope,
			DedupeKey:   txn.DedupeKey(),
			Reconciled:  false,
		})
	}

	inserted, err := p.store.InsertEntries(ctx, run, entries)
	if err != nil {
		return 0, syncerr.Storage("failed to insert ledger entries", err)
	}

	return inserted, nil
}
