package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearBankEnv(t *testing.T) {
	for _, key := range []string{
		"BANK_CLIENT_ID", "BANK_CLIENT_SECRET", "BANK_CERT_PFX_BASE64", "BANK_CERT_PASSWORD",
		"BANK_API_URL", "BANK_TOKEN_URL", "BANK_SCOPES", "BANK_TIMEOUT_SECONDS",
		"LEDGER_ROOT", "LEDGER_DB_PATH", "FIELD_ALIASES_PATH", "PORT", "DEBUG",
	} {
		// Setenv registers the restore; godotenv only fills unset keys.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	clearBankEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"BANK_CLIENT_ID=client-1",
		"BANK_CLIENT_SECRET=s3cret",
		"BANK_CERT_PFX_BASE64=Zm9v",
		"BANK_CERT_PASSWORD=pw",
		"BANK_API_URL=https://api.bank.test/",
		"BANK_TOKEN_URL=https://auth.bank.test/token",
		"BANK_SCOPES=balance statement",
		"BANK_TIMEOUT_SECONDS=10",
	}, "\n")
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "client-1", cfg.Bank.ClientID)
	assert.Equal(t, "https://api.bank.test", cfg.Bank.APIURL)
	assert.Equal(t, []string{"balance", "statement"}, cfg.Bank.Scopes)
	assert.Equal(t, 10*time.Second, cfg.Bank.Timeout)
	assert.Equal(t, "./data", cfg.Ledger.Root)
	assert.Equal(t, "8080", cfg.Port)
	assert.NoError(t, cfg.Bank.Validate())
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	clearBankEnv(t)
	t.Setenv("BANK_TIMEOUT_SECONDS", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestBankConfigValidate(t *testing.T) {
	cfg := BankConfig{ClientID: "id", APIURL: "https://api"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bank.clientSecret")
	assert.Contains(t, err.Error(), "bank.certBundle")
	assert.NotContains(t, err.Error(), "bank.clientId")
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Ledger: LedgerConfig{Root: "./data"}}

	assert.NoError(t, cfg.Validate([]string{"ledger", "root"}))

	err := cfg.Validate([]string{"ledger", "root"}, []string{"bank", "clientId"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bank.clientId")
}

func TestBankConfigStringHidesSecrets(t *testing.T) {
	cfg := BankConfig{ClientID: "id", ClientSecret: "topsecret", CertPassphrase: "pfxpass", CertBundle: "bundle"}

	s := cfg.String()
	assert.NotContains(t, s, "topsecret")
	assert.NotContains(t, s, "pfxpass")
	assert.NotContains(t, s, "bundle")
}
