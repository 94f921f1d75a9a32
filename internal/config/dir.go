package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// configDirName is a directory in the user's config directory where taiga-query configuration is stored
	configDirName string = "taiga-query"
)

func MustConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		panic(fmt.Errorf("cannot obtain user config dir: %w", err))
	}

	return filepath.Join(configDir, configDirName)
}
