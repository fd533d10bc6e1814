package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the cadre configuration file.
const ConfigFileName = "cadre.toml"

// FindConfigFile walks up from the given directory to find cadre.toml.
// Returns the absolute path to the config file, or an empty string if not found.
// Stops at the filesystem root.
func FindConfigFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root.
			return "", nil
		}
		dir = parent
	}
}

// LoadFromFile parses the TOML file at path, overlaying it onto the default
// RuntimeConfig, and returns the result plus TOML metadata (useful for
// detecting unknown keys via MetaData.Undecoded()).
func LoadFromFile(path string) (*RuntimeConfig, toml.MetaData, error) {
	cfg := NewDefaults()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, md, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, md, nil
}
