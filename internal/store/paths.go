package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/georgeberry/thresholds/internal/constants"
)

// GlobalPath returns the path to the global .thresholds directory.
// On Unix: ~/.thresholds
// On Windows: %USERPROFILE%\.thresholds
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DirName), nil
}

// DefaultSQLitePath returns the default location of the run database.
func DefaultSQLitePath() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.DefaultSQLiteFileName), nil
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
