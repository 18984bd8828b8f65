// Package pathutil provides centralized path management for the ledger database and mapping files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathResolver manages paths for the ledger database and field alias file.
type PathResolver struct {
	root         string
	databasePath string
	aliasesPath  string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// Root is the data directory (e.g., ./data)
	Root string
	// DatabasePath is the path to the SQLite ledger database
	DatabasePath string
	// AliasesPath is an optional YAML file overriding statement field aliases
	AliasesPath string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {Root}/.sync/ledger.db
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.Root, ".sync", "ledger.db")
	}

	return &PathResolver{
		root:         config.Root,
		databasePath: dbPath,
		aliasesPath:  config.AliasesPath,
	}
}

// GetRoot returns the data root directory.
func (p *PathResolver) GetRoot() string {
	return p.root
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetAliasesPath returns the alias file path, resolved against the root when relative.
// The second result is false when no alias file is configured.
func (p *PathResolver) GetAliasesPath() (string, bool) {
	if p.aliasesPath == "" {
		return "", false
	}
	if filepath.IsAbs(p.aliasesPath) {
		return p.aliasesPath, true
	}
	if p.FileExists(p.aliasesPath) {
		return p.aliasesPath, true
	}
	return filepath.Join(p.root, p.aliasesPath), true
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	return p.EnsureDir(filepath.Dir(filePath))
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
