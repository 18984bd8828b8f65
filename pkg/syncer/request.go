// Package syncer runs one bank statement synchronization per request: validate,
// authenticate over mutual TLS, fetch, normalize, deduplicate and persist.
package syncer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/bankapi"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/ledger"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/statement"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
)

// Action selects the flow of a sync request.
type Action string

const (
	ActionBalance   Action = "balance"
	ActionStatement Action = "statement"
)

// Request is a single sync invocation.
// InternalAccountID, DateFrom and DateTo are required for statement only.
// Zero PageOffset/PageLimit select the defaults (1 and 50).
type Request struct {
	Action            Action `json:"action"`
	TenantID          string `json:"tenantId"`
	BranchID          string `json:"branchId,omitempty"`
	InternalAccountID string `json:"internalAccountId,omitempty"`
	BankID            string `json:"bankId"`
	BranchCode        string `json:"branchCode"`
	AccountNumber     string `json:"accountNumber"`
	DateFrom          string `json:"dateFrom,omitempty"`
	DateTo            string `json:"dateTo,omitempty"`
	PageOffset        int    `json:"pageOffset,omitempty"`
	PageLimit         int    `json:"pageLimit,omitempty"`
}

// Validate checks the request shape for its action.
func (r Request) Validate() error {
	_, err := r.window()
	return err
}

// Account returns the bank-side account reference.
func (r Request) Account() bankapi.AccountRef {
	return bankapi.AccountRef{
		BankID:        r.BankID,
		BranchCode:    r.BranchCode,
		AccountNumber: r.AccountNumber,
	}
}

// Scope returns the ledger scope of a statement request.
func (r Request) Scope() ledger.Scope {
	return ledger.Scope{
		TenantID:  r.TenantID,
		BranchID:  r.BranchID,
		AccountID: r.InternalAccountID,
	}
}

// Query returns the statement query with pagination defaults applied.
func (r Request) Query() bankapi.StatementQuery {
	q := bankapi.StatementQuery{
		DateFrom:   r.DateFrom,
		DateTo:     r.DateTo,
		PageOffset: r.PageOffset,
		PageLimit:  r.PageLimit,
	}
	if q.PageOffset == 0 {
		q.PageOffset = bankapi.DefaultPageOffset
	}
	if q.PageLimit == 0 {
		q.PageLimit = bankapi.DefaultPageLimit
	}
	return q
}

// window validates the request and, for statement requests, returns the parsed date window.
func (r Request) window() (ledger.Window, error) {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	switch r.Action {
	case ActionBalance, ActionStatement:
	case "":
		return ledger.Window{}, syncerr.Validation("missing required field: action")
	default:
		return ledger.Window{}, syncerr.Validation(fmt.Sprintf("unsupported action %q (expected balance or statement)", r.Action))
	}

	require("tenantId", r.TenantID)
	require("bankId", r.BankID)
	require("branchCode", r.BranchCode)
	require("accountNumber", r.AccountNumber)
	if r.Action == ActionStatement {
		require("internalAccountId", r.InternalAccountID)
		require("dateFrom", r.DateFrom)
		require("dateTo", r.DateTo)
	}
	if len(missing) > 0 {
		return ledger.Window{}, syncerr.Validation(fmt.Sprintf("missing required fields for %s: %s", r.Action, strings.Join(missing, ", ")))
	}

	if r.PageOffset < 0 || r.PageLimit < 0 {
		return ledger.Window{}, syncerr.Validation("pageOffset and pageLimit must be positive")
	}

	if r.Action != ActionStatement {
		return ledger.Window{}, nil
	}

	from, err := time.Parse(statement.DateLayout, r.DateFrom)
	if err != nil {
		return ledger.Window{}, syncerr.Validation(fmt.Sprintf("invalid dateFrom %q (expected YYYY-MM-DD)", r.DateFrom))
	}
	to, err := time.Parse(statement.DateLayout, r.DateTo)
	if err != nil {
		return ledger.Window{}, syncerr.Validation(fmt.Sprintf("invalid dateTo %q (expected YYYY-MM-DD)", r.DateTo))
	}
	if to.Before(from) {
		return ledger.Window{}, syncerr.Validation("dateTo is before dateFrom")
	}

	return ledger.Window{From: from, To: to}, nil
}
