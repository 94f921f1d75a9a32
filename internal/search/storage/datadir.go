package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dataDirName is the subdirectory within the user's data directory where saved query files are stored
	dataDirName = "saved-queries"
)

// SavedQueriesDataDir returns the data directory path for saved-query storage
func SavedQueriesDataDir() (string, error) {
	var dataDir string

	// Try XDG_DATA_HOME first, then fallback to ~/.local/share
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		dataDir = xdgDataHome
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot obtain user home dir: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "taiga-query", dataDirName), nil
}
