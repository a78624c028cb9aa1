package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables (a leading "~" is expanded):
//   - FWBOT_CONFIG_PATH: config file location (default: ~/.config/fwbot.toml)
//   - FWBOT_HOME: base directory for fwbot data (default: ~/.local/share/fwbot)
func GetDefaults() (map[string]string, error) {
	configPath, err := envPath("FWBOT_CONFIG_PATH", ".config", "fwbot.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envPath("FWBOT_HOME", ".local", "share", "fwbot")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"work_dir":    filepath.Join(baseDir, "work"),
	}, nil
}

// envPath returns the expanded value of key, or fallback joined under the
// home directory when key is unset.
func envPath(key string, fallback ...string) (string, error) {
	if v := os.Getenv(key); v != "" {
		p, err := homedir.Expand(v)
		if err != nil {
			return "", fmt.Errorf("expanding %s: %w", key, err)
		}
		return p, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}
