// Package statement normalizes loosely-typed bank statement payloads into
// canonical transactions.
package statement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a transaction, derived from the sign of its amount.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// DateLayout is the calendar-date format used for dates and dedupe keys.
const DateLayout = "2006-01-02"

// Transaction is a canonical statement transaction.
// Date carries no time component (midnight UTC).
type Transaction struct {
	Date               time.Time
	Description        string
	Amount             decimal.Decimal
	Balance            *decimal.Decimal
	ExternalDocumentID string // empty when the upstream record has none
	Direction          Direction
}

// DirectionOf returns Debit for negative amounts and Credit otherwise.
func DirectionOf(amount decimal.Decimal) Direction {
	if amount.IsNegative() {
		return Debit
	}
	return Credit
}

// DedupeKey identifies a transaction across overlapping sync runs:
// date, amount and the document id (or the description when there is none).
// The amount keeps full precision with trailing zeros trimmed, so -150 and
// -150.00 match while sub-cent differences stay apart. Two distinct
// transactions sharing all three collapse to one key.
func (t Transaction) DedupeKey() string {
	ref := t.ExternalDocumentID
	if ref == "" {
		ref = t.Description
	}
	return t.Date.Format(DateLayout) + "|" + t.Amount.String() + "|" + ref
}
