package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Config is the dmctl config file.
type Config struct {
	DBPath   string `yaml:"db_path" json:"db_path"`
	Identity string `yaml:"identity" json:"identity"`
	PageSize int    `yaml:"page_size" json:"page_size"`
}

// DefaultConfigPath returns $HOME/.dmctl.yaml, or "" without a home dir.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dmctl.yaml")
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// loadOptional reads path when it exists. A missing default file is not
// an error; a missing explicit file is.
func loadOptional(path string, explicit bool) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

func (c *Config) MissingFields() []string {
	var missing []string
	if c.DBPath == "" {
		missing = append(missing, "db_path")
	}
	if c.Identity == "" {
		missing = append(missing, "identity")
	}
	return missing
}
