package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/ledger"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/statement"
)

// LedgerStore manages ledger entries and sync run history.
type LedgerStore struct {
	conn *Connection
}

// NewLedgerStore creates a new LedgerStore instance.
func NewLedgerStore(conn *Connection) *LedgerStore {
	return &LedgerStore{conn: conn}
}

var _ ledger.Store = (*LedgerStore)(nil)

// ExistingKeys retrieves the dedupe keys stored for scope with an entry date
// inside window (inclusive).
func (s *LedgerStore) ExistingKeys(ctx context.Context, scope ledger.Scope, window ledger.Window) (map[string]struct{}, error) {
	query := `
		SELECT dedupe_key FROM ledger_entries
		WHERE tenant_id = ? AND branch_id = ? AND account_id = ?
		  AND entry_date BETWEEN ? AND ?
	`

	rows, err := s.conn.QueryContext(ctx, query,
		scope.TenantID,
		scope.BranchID,
		scope.AccountID,
		window.From.Format(statement.DateLayout),
		window.To.Format(statement.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan dedupe key: %w", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dedupe keys: %w", err)
	}

	return keys, nil
}

// InsertEntries writes entries and the run record in a single transaction.
// Entries whose dedupe key is already stored in scope are skipped, which also
// closes the window between ExistingKeys and the write for concurrent runs.
func (s *LedgerStore) InsertEntries(ctx context.Context, run ledger.Run, entries []ledger.Entry) (int, error) {
	inserted := 0

	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO ledger_entries (
				tenant_id, branch_id, account_id, entry_date, description, amount,
				balance, external_document_id, direction, reconciled, dedupe_key, run_id
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant_id, branch_id, account_id, dedupe_key) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			result, err := stmt.ExecContext(ctx,
				e.Scope.TenantID,
				e.Scope.BranchID,
				e.Scope.AccountID,
				e.Date.Format(statement.DateLayout),
				e.Description,
				e.Amount.String(),
				nullDecimal(e.Balance),
				nullString(e.ExternalDocumentID),
				string(e.Direction),
				e.Reconciled,
				e.DedupeKey,
				run.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert ledger entry %s: %w", e.DedupeKey, err)
			}

			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			inserted += int(n)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sync_runs (run_id, tenant_id, branch_id, account_id, date_from, date_to, received, inserted, ignored)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			run.Scope.TenantID,
			run.Scope.BranchID,
			run.Scope.AccountID,
			run.Window.From.Format(statement.DateLayout),
			run.Window.To.Format(statement.DateLayout),
			run.Received,
			inserted,
			run.Received-inserted,
		)
		if err != nil {
			return fmt.Errorf("failed to record sync run: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// ListEntries retrieves all ledger entries for a scope, oldest first.
func (s *LedgerStore) ListEntries(ctx context.Context, scope ledger.Scope) ([]ledger.Entry, error) {
	query := `
		SELECT entry_date, description, amount, balance, external_document_id, direction, reconciled, dedupe_key
		FROM ledger_entries
		WHERE tenant_id = ? AND branch_id = ? AND account_id = ?
		ORDER BY entry_date, id
	`

	rows, err := s.conn.QueryContext(ctx, query, scope.TenantID, scope.BranchID, scope.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			date, amount, direction string
			balance, documentID     sql.NullString
			e                       ledger.Entry
		)

		if err := rows.Scan(
			&date,
			&e.Description,
			&amount,
			&balance,
			&documentID,
			&direction,
			&e.Reconciled,
			&e.DedupeKey,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		if e.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		if balance.Valid {
			b, err := decimal.NewFromString(balance.String)
			if err != nil {
				return nil, fmt.Errorf("invalid stored balance %q: %w", balance.String, err)
			}
			e.Balance = &b
		}
		e.ExternalDocumentID = documentID.String
		e.Direction = statement.Direction(direction)
		e.Scope = scope

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

// Stats represents ledger statistics.
type Stats struct {
	TotalEntries int
	Unreconciled int
	TotalRuns    int
	LastSync     sql.NullString
}

// GetStats retrieves ledger statistics.
func (s *LedgerStore) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry count: %w", err)
	}

	err = s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE reconciled = 0`).Scan(&stats.Unreconciled)
	if err != nil {
		return nil, fmt.Errorf("failed to get unreconciled count: %w", err)
	}

	err = s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_runs`).Scan(&stats.TotalRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to get run count: %w", err)
	}

	err = s.conn.QueryRowContext(ctx, `SELECT MAX(synced_at) FROM sync_runs`).Scan(&stats.LastSync)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return &stats, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseStoredDate(s string) (time.Time, error) {
	t, err := time.Parse(statement.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t, nil
}
