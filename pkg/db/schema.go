// Package db provides SQLite storage for ledger entries and sync run history.
package db

import "context"

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Ledger entries
-- One row per bank statement transaction, scoped to tenant/branch/account.
-- branch_id is '' when the tenant has no branch, so the UNIQUE scope still applies.
CREATE TABLE IF NOT EXISTS ledger_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id TEXT NOT NULL,
    branch_id TEXT NOT NULL DEFAULT '',
    account_id TEXT NOT NULL,          -- internal account id
    entry_date TEXT NOT NULL,          -- YYYY-MM-DD
    description TEXT NOT NULL,
    amount TEXT NOT NULL,              -- signed decimal
    balance TEXT,                      -- decimal, NULL when absent
    external_document_id TEXT,         -- NULL when absent
    direction TEXT NOT NULL,           -- 'credit' or 'debit'
    reconciled INTEGER NOT NULL DEFAULT 0,
    dedupe_key TEXT NOT NULL,
    run_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(tenant_id, branch_id, account_id, dedupe_key)
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_scope_date
    ON ledger_entries(tenant_id, branch_id, account_id, entry_date);

-- Sync runs
-- One row per statement sync that reached the persistence step.
CREATE TABLE IF NOT EXISTS sync_runs (
    run_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    branch_id TEXT NOT NULL DEFAULT '',
    account_id TEXT NOT NULL,
    date_from TEXT NOT NULL,
    date_to TEXT NOT NULL,
    received INTEGER NOT NULL,
    inserted INTEGER NOT NULL,
    ignored INTEGER NOT NULL,
    synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_scope
    ON sync_runs(tenant_id, branch_id, account_id);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.ExecContext(context.Background(), Schema); err != nil {
		return err
	}
	return nil
}
