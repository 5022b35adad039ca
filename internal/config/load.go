package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNewConfig is returned by LoadOrCreate when no configuration existed and
// a default one has just been written for the operator to edit.
var ErrNewConfig = errors.New("new config created")

// LoadFromFile loads configuration from a YAML file with env overrides.
// Keys missing from the file keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	// Clean the path to prevent directory traversal attacks
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - config path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config file: %w", ErrInvalidConfig, err)
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("%w: apply env overrides: %w", ErrInvalidConfig, err)
	}

	// Set defaults
	ApplyDefaults(cfg)

	return cfg, nil
}

// LoadOrCreate loads path, or writes the default configuration there and
// returns ErrNewConfig (wrapped in ErrInvalidConfig) when it does not exist.
func LoadOrCreate(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if werr := WriteDefault(path); werr != nil {
		return nil, fmt.Errorf("%w: write default config: %w", ErrInvalidConfig, werr)
	}
	return nil, fmt.Errorf("%w: %w: edit %q and run again", ErrInvalidConfig, ErrNewConfig, path)
}

// WriteDefault writes Default() as YAML to path, creating parent directories.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}
