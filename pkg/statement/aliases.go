package statement

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Aliases lists, per canonical attribute, the upstream field names accepted for it.
// Order matters: the first present field wins.
type Aliases struct {
	Containers  []string `yaml:"containers"`
	Date        []string `yaml:"date"`
	Amount      []string `yaml:"amount"`
	Description []string `yaml:"description"`
	Balance     []string `yaml:"balance"`
	DocumentID  []string `yaml:"document_id"`
}

// DefaultAliases returns the built-in alias tables.
func DefaultAliases() Aliases {
	return Aliases{
		Containers:  []string{"transactions", "items", "entries", "statement", "data", "result"},
		Date:        []string{"postingDate", "transactionDate", "date"},
		Amount:      []string{"amount", "value"},
		Description: []string{"description", "memo", "history"},
		Balance:     []string{"balance", "runningBalance"},
		DocumentID:  []string{"transactionId", "fileTransferId", "reference", "id"},
	}
}

// LoadAliases reads alias overrides from a YAML file. Lists left empty in the
// file keep their defaults.
func LoadAliases(path string) (Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Aliases{}, fmt.Errorf("failed to read alias file: %w", err)
	}

	var override Aliases
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Aliases{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return DefaultAliases().merge(override), nil
}

func (a Aliases) merge(override Aliases) Aliases {
	pick := func(def, o []string) []string {
		if len(o) > 0 {
			return o
		}
		return def
	}

	return Aliases{
		Containers:  pick(a.Containers, override.Containers),
		Date:        pick(a.Date, override.Date),
		Amount:      pick(a.Amount, override.Amount),
		Description: pick(a.Description, override.Description),
		Balance:     pick(a.Balance, override.Balance),
		DocumentID:  pick(a.DocumentID, override.DocumentID),
	}
}
