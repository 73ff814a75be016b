package config

import (
	"os"
	"path/filepath"
)

// configDir resolves the directory holding qlog's config file and,
// by default, its data directory: CONFIG_DIR if set, otherwise
// ~/.qlog. This mirrors the teacher's configFile helper, generalized
// from a fixed set of PKI filenames to the single config.yaml this
// core reads.
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".qlog"
	}
	return filepath.Join(homeDir, ".qlog")
}

// ConfigFile returns the path to the YAML config file Load reads.
func ConfigFile() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDataDir returns the default data directory: a "data"
// subdirectory under the resolved config directory.
func DefaultDataDir() string {
	return filepath.Join(configDir(), "data")
}
