// Package config provides configuration management for the statement sync service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Bank   BankConfig
	Ledger LedgerConfig
	Port   string
	Debug  bool
}

// BankConfig represents the banking API credentials and endpoints.
// Values are resolved once per process and never mutated afterwards.
type BankConfig struct {
	ClientID       string
	ClientSecret   string
	CertBundle     string // base64-encoded PKCS#12 bundle
	CertPassphrase string
	APIURL         string
	TokenURL       string
	Scopes         []string
	Timeout        time.Duration
}

// LedgerConfig represents ledger storage configuration.
type LedgerConfig struct {
	Root        string
	DBPath      string
	AliasesPath string
}

// String hides secrets when a BankConfig is printed or logged.
func (b BankConfig) String() string {
	return fmt.Sprintf("BankConfig{ClientID:%q APIURL:%q TokenURL:%q Scopes:%v Timeout:%s}",
		b.ClientID, b.APIURL, b.TokenURL, b.Scopes, b.Timeout)
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	timeoutSeconds, err := parseIntEnv("BANK_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	if timeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid BANK_TIMEOUT_SECONDS: must be positive, got %d", timeoutSeconds)
	}

	config := &Config{
		Bank: BankConfig{
			ClientID:       os.Getenv("BANK_CLIENT_ID"),
			ClientSecret:   os.Getenv("BANK_CLIENT_SECRET"),
			CertBundle:     os.Getenv("BANK_CERT_PFX_BASE64"),
			CertPassphrase: os.Getenv("BANK_CERT_PASSWORD"),
			APIURL:         strings.TrimSuffix(os.Getenv("BANK_API_URL"), "/"),
			TokenURL:       os.Getenv("BANK_TOKEN_URL"),
			Scopes:         strings.Fields(os.Getenv("BANK_SCOPES")),
			Timeout:        time.Duration(timeoutSeconds) * time.Second,
		},
		Ledger: LedgerConfig{
			Root:        getEnvOrDefault("LEDGER_ROOT", "./data"),
			DBPath:      os.Getenv("LEDGER_DB_PATH"),
			AliasesPath: os.Getenv("FIELD_ALIASES_PATH"),
		},
		Port:  getEnvOrDefault("PORT", "8080"),
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "bank":
			value = c.Bank.lookup(path[1])
		case "ledger":
			switch path[1] {
			case "root":
				value = c.Ledger.Root
			case "dbPath":
				value = c.Ledger.DBPath
			case "aliasesPath":
				value = c.Ledger.AliasesPath
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}

	return nil
}

// Validate checks that every secret and endpoint needed to talk to the bank is present.
func (b BankConfig) Validate() error {
	var missing []string
	for _, key := range []string{"clientId", "clientSecret", "certBundle", "certPassphrase", "apiUrl", "tokenUrl"} {
		if b.lookup(key) == "" {
			missing = append(missing, "bank."+key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}

func (b BankConfig) lookup(key string) string {
	switch key {
	case "clientId":
		return b.ClientID
	case "clientSecret":
		return b.ClientSecret
	case "certBundle":
		return b.CertBundle
	case "certPassphrase":
		return b.CertPassphrase
	case "apiUrl":
		return b.APIURL
	case "tokenUrl":
		return b.TokenURL
	}
	return ""
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}
