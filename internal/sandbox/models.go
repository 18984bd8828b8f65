package sandbox

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry represents a booked statement line of a sandbox account.
type Entry struct {
	ID            int64           `json:"id"`
	PostingDate   string          `json:"postingDate"` // YYYY-MM-DD
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	TransactionID string          `json:"transactionId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// CreateEntryRequest represents the request to book a statement line.
type CreateEntryRequest struct {
	PostingDate   string          `json:"postingDate"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	TransactionID string          `json:"transactionId"`
}

// StatementPage represents the response for GET .../statement.
type StatementPage struct {
	Transactions []Entry `json:"transactions"`
	Page         int     `json:"page"`
	PageSize     int     `json:"pageSize"`
	TotalPages   int     `json:"totalPages"`
}

// Balance represents the response for GET .../balance.
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Blocked   decimal.Decimal `json:"blocked"`
	AsOf      string          `json:"asOf"`
}
