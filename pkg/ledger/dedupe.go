package ledger

import (
	"context"
	"log/slog"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/statement"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
)

// DedupeFilter drops transactions already persisted for the same scope and window.
type DedupeFilter struct {
	store Store
}

// NewDedupeFilter creates a new DedupeFilter.
func NewDedupeFilter(store Store) *DedupeFilter {
	return &DedupeFilter{store: store}
}

// Filter returns the transactions whose dedupe key is neither stored in scope
// within window nor repeated earlier in txns. Input order is preserved.
func (f *DedupeFilter) Filter(ctx context.Context, scope Scope, window Window, txns []statement.Transaction) ([]statement.Transaction, error) {
	existing, err := f.store.ExistingKeys(ctx, scope, window)
	if err != nil {
		return nil, syncerr.Storage("failed to read existing ledger keys", err)
	}

	seen := make(map[string]struct{}, len(existing)+len(txns))
	for key := range existing {
		seen[key] = struct{}{}
	}

	var result []statement.Transaction
	for _, txn := range txns {
		key := txn.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, txn)
	}

	slog.Debug("Deduplicated statement entries",
		"account_id", scope.AccountID,
		"existing_keys", len(existing),
		"candidates", len(txns),
		"new", len(result),
	)

	return result, nil
}
