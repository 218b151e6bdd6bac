package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the synopsis home directory.
	DefaultDirName = ".synopsis"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// LedgerFileName is the SQLite run ledger.
	LedgerFileName = "ledger.db"

	// PromptsDirName holds user prompt overrides shared by all books.
	PromptsDirName = "prompts"
)

// Dir represents the synopsis home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.synopsis).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// LedgerPath returns the path to the run ledger database.
func (d *Dir) LedgerPath() string {
	return filepath.Join(d.path, LedgerFileName)
}

// PromptsDir returns the directory searched for global prompt overrides.
func (d *Dir) PromptsDir() string {
	return filepath.Join(d.path, PromptsDirName)
}

// EnsureExists creates the home directory if it doesn't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
