package statement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
)

// dateLayouts are tried in order; only the calendar date is kept.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// Normalizer maps upstream statement payloads onto canonical transactions.
type Normalizer struct {
	aliases Aliases
}

// NewNormalizer creates a new Normalizer using the given alias tables.
func NewNormalizer(aliases Aliases) *Normalizer {
	return &Normalizer{aliases: aliases}
}

// Normalize locates the transaction array in raw and maps each element.
// Elements whose date or amount cannot be parsed are dropped, so the result
// is never longer than the upstream array.
func (n *Normalizer) Normalize(raw json.RawMessage) ([]Transaction, error) {
	records, err := n.Locate(raw)
	if err != nil {
		return nil, err
	}

	txns := make([]Transaction, 0, len(records))
	for _, record := range records {
		obj, ok := record.(map[string]any)
		if !ok {
			continue
		}
		if txn, ok := n.MapRecord(obj); ok {
			txns = append(txns, txn)
		}
	}

	if dropped := len(records) - len(txns); dropped > 0 {
		slog.Debug("Dropped unparseable statement entries", "dropped", dropped, "kept", len(txns))
	}

	return txns, nil
}

// Locate returns the first array-valued field among the known container keys.
func (n *Normalizer) Locate(raw json.RawMessage) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, syncerr.Shape(fmt.Sprintf("statement payload is not JSON: %v", err), raw)
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil, syncerr.Shape("statement payload is not a JSON object", raw)
	}

	for _, key := range n.aliases.Containers {
		if arr, ok := obj[key].([]any); ok {
			return arr, nil
		}
	}

	return nil, syncerr.Shape(
		fmt.Sprintf("no transaction array found (looked for %s)", strings.Join(n.aliases.Containers, ", ")),
		raw,
	)
}

// MapRecord maps a single upstream record. ok is false when the record has no
// parseable date or amount.
func (n *Normalizer) MapRecord(record map[string]any) (Transaction, bool) {
	dateValue, _ := lookup(record, n.aliases.Date)
	date, ok := parseDate(dateValue)
	if !ok {
		return Transaction{}, false
	}

	amountValue, _ := lookup(record, n.aliases.Amount)
	amount, ok := parseDecimal(amountValue)
	if !ok {
		return Transaction{}, false
	}

	txn := Transaction{
		Date:      date,
		Amount:    amount,
		Direction: DirectionOf(amount),
	}

	if v, found := lookup(record, n.aliases.Description); found {
		txn.Description = asText(v)
	}
	if v, found := lookup(record, n.aliases.DocumentID); found {
		txn.ExternalDocumentID = asText(v)
	}
	if v, found := lookup(record, n.aliases.Balance); found {
		if balance, ok := parseDecimal(v); ok {
			txn.Balance = &balance
		}
	}

	return txn, true
}

// lookup returns the first non-null field among names.
func lookup(record map[string]any, names []string) (any, bool) {
	for _, name := range names {
		if v, ok := record[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func parseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parseDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return decimal.Decimal{}, false
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d, true
		}
		// "150,00": comma as decimal separator, only when unambiguous.
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
			return d, err == nil
		}
	}
	return decimal.Decimal{}, false
}

func asText(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return decimal.NewFromFloat(val).String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	}
	return ""
}
